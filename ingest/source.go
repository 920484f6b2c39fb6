package ingest

import (
	"context"

	"github.com/pkg/errors"

	"github.com/postmux/postmux/model"
)

// ErrUnavailable is returned when the source cannot produce candidates at
// all. A run triggered against an unavailable source terminates as failed.
var ErrUnavailable = errors.New("ingestion source unavailable")

// Source supplies candidate articles for a run. The pipeline admits every
// candidate through the dedup table before queueing it.
type Source interface {
	Fetch(ctx context.Context) ([]model.Article, error)
}

// StaticSource serves a fixed candidate list, or Err when set. Used in
// tests and as the empty default when no feed is configured.
type StaticSource struct {
	Articles []model.Article
	Err      error
}

func (s *StaticSource) Fetch(ctx context.Context) ([]model.Article, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Article, len(s.Articles))
	copy(out, s.Articles)
	return out, nil
}
