package generator

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
	Logger "github.com/postmux/postmux/utils/log"
)

// PostSink hands committed posts over to the external post store. The
// pipeline does not manage their persistence or deletion beyond the push.
type PostSink interface {
	Push(post *model.GeneratedPost) error
}

// StdErrSink dumps generated posts to the log. Debug/dev only.
type StdErrSink struct{}

func NewStdErrSink() *StdErrSink {
	return &StdErrSink{}
}

func (s *StdErrSink) Push(post *model.GeneratedPost) error {
	if post == nil {
		Logger.Log.Warn("push empty post into sink")
		return nil
	}
	Logger.Log.Infof("[%s] %s", post.Platform, post.Content)
	return nil
}

// GormSink stores generated posts in postgres.
type GormSink struct {
	db *gorm.DB
}

// GetGormSink connects to the database specified by env and migrates the
// generated post schema.
func GetGormSink() (*GormSink, error) {
	db, err := utils.GetDBConnection()
	if err != nil {
		return nil, errors.Wrap(err, "fail to connect to post store DB")
	}
	if err := db.AutoMigrate(&model.GeneratedPost{}); err != nil {
		return nil, errors.Wrap(err, "fail to migrate post store schema")
	}
	return NewGormSink(db), nil
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Push(post *model.GeneratedPost) error {
	return s.db.Create(post).Error
}

// FakeSink records pushed posts in memory for tests. Fail makes every push
// return an error.
type FakeSink struct {
	Posts []model.GeneratedPost
	Fail  bool
}

func (s *FakeSink) Push(post *model.GeneratedPost) error {
	if s.Fail {
		return errors.New("sink unavailable")
	}
	s.Posts = append(s.Posts, *post)
	return nil
}
