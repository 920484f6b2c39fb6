package enrich

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	recentTitlesKey = "similarity_recent_titles"
	// Number of recently processed titles kept for the novelty check. About
	// a few hundred articles enter the pipeline per day, so a window of this
	// size covers several days of history.
	recentTitlesWindow = 1000
	// Above this token overlap ratio the article is flagged as likely
	// covered already.
	duplicateThreshold = 0.8
)

// SimilarityLookupTool checks an article against recently processed titles
// to judge novelty. Titles are kept in a capped redis list, the lookup
// computes the max Jaccard token overlap against the window. The query
// passed to Invoke is the article's title.
type SimilarityLookupTool struct {
	inner *redis.Client
}

func GetSimilarityLookupTool() (*SimilarityLookupTool, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return NewSimilarityLookupTool(redisClient), nil
}

func NewSimilarityLookupTool(client *redis.Client) *SimilarityLookupTool {
	return &SimilarityLookupTool{inner: client}
}

func (t *SimilarityLookupTool) Id() string {
	return ToolSimilarityLookup
}

func (t *SimilarityLookupTool) Invoke(ctx context.Context, title string) (string, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	if normalized == "" {
		return "", errors.New("similarity-lookup requires a non-empty title")
	}

	recent, err := t.inner.LRange(ctx, recentTitlesKey, 0, recentTitlesWindow-1).Result()
	if err != nil {
		return "", errors.Wrap(err, "fail to load recent titles")
	}

	maxOverlap := 0.0
	for _, seen := range recent {
		if overlap := tokenOverlap(normalized, seen); overlap > maxOverlap {
			maxOverlap = overlap
		}
	}

	// Record the title for future lookups, trimming the window.
	pipe := t.inner.TxPipeline()
	pipe.LPush(ctx, recentTitlesKey, normalized)
	pipe.LTrim(ctx, recentTitlesKey, 0, recentTitlesWindow-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errors.Wrap(err, "fail to record title")
	}

	verdict := "novel"
	if maxOverlap >= duplicateThreshold {
		verdict = "likely covered already"
	}
	return fmt.Sprintf("novelty check: max overlap %.2f against %d recent titles, %s", maxOverlap, len(recent), verdict), nil
}

// tokenOverlap computes the Jaccard similarity of the token sets of two
// normalized titles.
func tokenOverlap(a string, b string) float64 {
	tokensA := map[string]bool{}
	for _, tok := range strings.Fields(a) {
		tokensA[tok] = true
	}
	tokensB := map[string]bool{}
	for _, tok := range strings.Fields(b) {
		tokensB[tok] = true
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range tokensA {
		if tokensB[tok] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}
