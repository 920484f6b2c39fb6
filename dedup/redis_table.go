package dedup

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	pkgerrors "github.com/pkg/errors"

	"github.com/postmux/postmux/model"
)

const (
	// Redis only has string type, there is no boolean or int, so we use "1"
	// to represent an admitted fingerprint.
	redisTrue            = "1"
	fingerprintKeyPrefix = "admitted_fingerprint__"
)

var ctx = context.Background()

// RedisAdmissionTable persists admitted fingerprints in redis so that the
// at-most-once admission guarantee survives process restarts. SETNX gives us
// the atomic check-and-insert.
type RedisAdmissionTable struct {
	inner *redis.Client
}

func GetRedisAdmissionTable() (*RedisAdmissionTable, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return NewRedisAdmissionTable(redisClient), nil
}

func NewRedisAdmissionTable(client *redis.Client) *RedisAdmissionTable {
	return &RedisAdmissionTable{inner: client}
}

func (t *RedisAdmissionTable) Admit(article *model.Article) error {
	fingerprint, err := Fingerprint(article.Title, article.SourceName)
	if err != nil {
		return err
	}
	article.Fingerprint = fingerprint

	inserted, err := t.inner.SetNX(ctx, fingerprintKeyPrefix+fingerprint, redisTrue, 0).Result()
	if err != nil {
		return pkgerrors.Wrap(err, "fail to check-and-insert fingerprint")
	}
	if !inserted {
		return pkgerrors.Wrap(ErrDuplicateArticle, article.Title)
	}
	return nil
}
