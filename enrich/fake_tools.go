package enrich

import (
	"context"
	"time"
)

// FakeTool is a canned enrichment tool for tests and local debugging. It
// returns Output after an optional Delay, or Err when set.
type FakeTool struct {
	ToolId string
	Output string
	Err    error
	Delay  time.Duration

	// Number of times Invoke has been called. Not synchronized, only read
	// after the exercised code path has finished.
	InvokeCount int
}

func (t *FakeTool) Id() string {
	return t.ToolId
}

func (t *FakeTool) Invoke(ctx context.Context, query string) (string, error) {
	t.InvokeCount++
	if t.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.Delay):
		}
	}
	if t.Err != nil {
		return "", t.Err
	}
	return t.Output, nil
}
