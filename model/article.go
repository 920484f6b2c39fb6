package model

import (
	"time"
)

/*

Article is one piece of news pulled from an ingestion source

Id: primary key, uuid assigned at ingestion time
Title: article's title in plain text
Snippet: short teaser text shipped by the source, used as the baseline
	enrichment input before any tool is consulted
SourceName: human readable name of the publisher, e.g. "AP"
OriginUrl: canonical url of the article, used by the content-fetch tool
PublishedAt: publish time reported by the source
Fingerprint: sha256 of the normalized title|source pair, computed by the
	dedup admission table. Two articles with the same fingerprint are the
	same logical article and at most one of them is ever admitted.
*/

type Article struct {
	Id          string    `gorm:"primaryKey" json:"id"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	SourceName  string    `json:"source_name"`
	OriginUrl   string    `json:"origin_url"`
	PublishedAt time.Time `json:"published_at"`
	Fingerprint string    `json:"fingerprint"`
}

// QueueItemState tracks the processing state of one queued article within
// the run that owns it.
type QueueItemState string

const (
	QueueItemStatePending    QueueItemState = "pending"
	QueueItemStateInProgress QueueItemState = "in_progress"
	QueueItemStateDone       QueueItemState = "done"
	QueueItemStateFailed     QueueItemState = "failed"
)

// QueueItem wraps an admitted article while it sits in the processing queue.
// A QueueItem is owned exclusively by the active run, nothing else mutates it.
type QueueItem struct {
	Article Article        `json:"article"`
	State   QueueItemState `json:"state"`
}
