package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/postmux/postmux/utils"
)

// Canonical identifiers of the enrichment tools the decision engine may
// consult. Anything outside this set is rejected at the request boundary and
// never invoked.
const (
	ToolContentFetch     = "content-fetch"
	ToolWebSearch        = "web-search"
	ToolSimilarityLookup = "similarity-lookup"
)

var KnownToolIds = []string{ToolContentFetch, ToolWebSearch, ToolSimilarityLookup}

var (
	ErrUnknownTool = errors.New("unknown enrichment tool")
	ErrEmptyResult = errors.New("tool returned empty result")
)

// ToolError wraps a failed tool invocation with the id of the tool that
// failed. Timeout is set when the call exceeded its time budget.
type ToolError struct {
	Tool    string
	Timeout bool
	Err     error
}

func (e *ToolError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("tool %s timed out: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Tool is one external enrichment capability. Invoke must respect ctx
// cancellation, the registry additionally enforces a hard per-call budget so
// a stalled tool can never block the pipeline.
type Tool interface {
	Id() string
	Invoke(ctx context.Context, query string) (string, error)
}

// Registry validates tool identifiers and runs every invocation under a
// bounded time budget. A call that does not finish within the budget is
// reported as a timed out ToolError and the tool goroutine is left to drain
// on its own.
type Registry struct {
	budget time.Duration
	tools  map[string]Tool
}

func NewRegistry(budget time.Duration, tools ...Tool) (*Registry, error) {
	r := &Registry{
		budget: budget,
		tools:  make(map[string]Tool),
	}
	for _, tool := range tools {
		if !utils.ContainsString(KnownToolIds, tool.Id()) {
			return nil, errors.Wrap(ErrUnknownTool, tool.Id())
		}
		r.tools[tool.Id()] = tool
	}
	return r, nil
}

// Has returns true iff the registry carries an implementation for the tool.
func (r *Registry) Has(toolId string) bool {
	_, ok := r.tools[toolId]
	return ok
}

type invokeResult struct {
	output string
	err    error
}

// Invoke runs the identified tool within the registry budget. An unknown
// identifier, a tool failure, an empty result and a budget overrun all
// surface as *ToolError.
func (r *Registry) Invoke(ctx context.Context, toolId string, query string) (string, error) {
	tool, ok := r.tools[toolId]
	if !ok {
		return "", &ToolError{Tool: toolId, Err: ErrUnknownTool}
	}

	ctx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	ch := make(chan invokeResult, 1)
	go func() {
		output, err := tool.Invoke(ctx, query)
		ch <- invokeResult{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", &ToolError{Tool: toolId, Timeout: true, Err: ctx.Err()}
	case res := <-ch:
		if res.err != nil {
			return "", &ToolError{Tool: toolId, Err: res.err}
		}
		if strings.TrimSpace(res.output) == "" {
			return "", &ToolError{Tool: toolId, Err: ErrEmptyResult}
		}
		return res.output, nil
	}
}
