package ingest

import (
	"context"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"

	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

// RssSource pulls candidate articles from a set of RSS/Atom feeds. Items
// older than maxAge are dropped so stale stories don't re-enter the
// pipeline on every trigger.
type RssSource struct {
	feedUrls []string
	maxAge   time.Duration
	parser   *gofeed.Parser
}

func NewRssSource(feedUrls []string, maxAge time.Duration) *RssSource {
	return &RssSource{
		feedUrls: feedUrls,
		maxAge:   maxAge,
		parser:   gofeed.NewParser(),
	}
}

// Fetch parses every configured feed and returns the fresh candidates. It
// only fails when no feed could be read at all, a partially degraded feed
// set still produces a run.
func (s *RssSource) Fetch(ctx context.Context) ([]model.Article, error) {
	articles := []model.Article{}
	failed := 0

	for _, url := range s.feedUrls {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			Logger.Log.Errorf("fail to parse feed %s: %v", url, err)
			failed++
			continue
		}
		for _, item := range feed.Items {
			article, ok := s.articleFromItem(feed, item)
			if ok {
				articles = append(articles, article)
			}
		}
	}

	if len(s.feedUrls) > 0 && failed == len(s.feedUrls) {
		return nil, errors.Wrap(ErrUnavailable, "all feeds failed")
	}
	return articles, nil
}

func (s *RssSource) articleFromItem(feed *gofeed.Feed, item *gofeed.Item) (model.Article, bool) {
	publishedAt := time.Now()
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.Published != "" {
		parsed, err := dateparse.ParseAny(item.Published)
		if err == nil {
			publishedAt = parsed
		}
	}

	if s.maxAge > 0 && time.Since(publishedAt) > s.maxAge {
		return model.Article{}, false
	}

	return model.Article{
		Id:          uuid.New().String(),
		Title:       item.Title,
		Snippet:     item.Description,
		SourceName:  feed.Title,
		OriginUrl:   item.Link,
		PublishedAt: publishedAt,
	}, true
}
