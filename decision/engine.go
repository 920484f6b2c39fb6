package decision

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/postmux/postmux/enrich"
	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

// Default sufficiency thresholds, see DefaultPolicies. An article whose
// enrichment is shorter than snippetSufficientChars is not confidently
// generatable from the snippet alone; below verifiedSufficientChars we also
// want search context to disambiguate.
const (
	snippetSufficientChars  = 280
	verifiedSufficientChars = 800
)

// Words in a title that flag a developing or second-hand story, which we
// always run through the novelty check before generating posts.
var noveltyCheckMarkers = []string{"breaking", "rumor", "rumour", "report:", "exclusive"}

// EnrichmentResult is the decision engine's verdict for one article.
type EnrichmentResult struct {
	// Highest tier whose tool succeeded, in [1, 4].
	TierUsed int
	// Identifiers of the tools that were successfully consulted, in
	// escalation order. Never contains an unrecognized identifier.
	ToolsUsed []string
	// The article text accumulated across the consulted tools, starting
	// from the snippet.
	EnrichedText string
	// Identifiers of tools that were consulted but failed. A failed tool
	// stops escalation, it never bumps the tier.
	FailedTools []string
}

// EntryPredicate reports whether the tier it guards should be entered given
// the enrichment accumulated so far. Returning false means the current
// output is already sufficient and escalation short-circuits.
type EntryPredicate func(article *model.Article, enriched string) bool

// TierPolicy is one row of the ordered escalation table: entering Tier
// consults Tool on top of everything the previous tiers produced.
type TierPolicy struct {
	Tier  int
	Tool  string
	Enter EntryPredicate
}

// Engine walks the tier policy table for one article at a time. It is pure
// policy: all external effects go through the tool registry.
type Engine struct {
	registry *enrich.Registry
	policies []TierPolicy
}

// NewEngine validates the policy table: tiers must be 1..N in strictly
// increasing order, tier 1 consults no tool, and every tool identifier must
// be recognized.
func NewEngine(registry *enrich.Registry, policies []TierPolicy) (*Engine, error) {
	if len(policies) == 0 {
		return nil, errors.New("policy table must not be empty")
	}
	for idx, policy := range policies {
		if policy.Tier != idx+1 {
			return nil, errors.Errorf("policy table out of order at tier %d", policy.Tier)
		}
		if idx == 0 {
			if policy.Tool != "" {
				return nil, errors.New("tier 1 must not consult any tool")
			}
			continue
		}
		if !registry.Has(policy.Tool) {
			return nil, errors.Wrap(enrich.ErrUnknownTool, policy.Tool)
		}
	}
	return &Engine{registry: registry, policies: policies}, nil
}

// DefaultPolicies returns the standard four tier escalation table.
//
// The sufficiency heuristic is intentionally simple and documented here:
// enter T2 (content-fetch) when the accumulated text is below
// snippetSufficientChars; enter T3 (web-search) when it is still below
// verifiedSufficientChars; enter T4 (similarity-lookup) when the title
// carries a developing-story marker. Callers that need a different
// heuristic supply their own table.
func DefaultPolicies() []TierPolicy {
	return []TierPolicy{
		{Tier: 1, Tool: "", Enter: func(article *model.Article, enriched string) bool {
			return true
		}},
		{Tier: 2, Tool: enrich.ToolContentFetch, Enter: func(article *model.Article, enriched string) bool {
			return len(enriched) < snippetSufficientChars
		}},
		{Tier: 3, Tool: enrich.ToolWebSearch, Enter: func(article *model.Article, enriched string) bool {
			return len(enriched) < verifiedSufficientChars
		}},
		{Tier: 4, Tool: enrich.ToolSimilarityLookup, Enter: func(article *model.Article, enriched string) bool {
			title := strings.ToLower(article.Title)
			for _, marker := range noveltyCheckMarkers {
				if strings.Contains(title, marker) {
					return true
				}
			}
			return false
		}},
	}
}

// Decide walks the escalation table for one article. Escalation only moves
// forward: each tier's entry predicate is evaluated once, in increasing
// order, short-circuiting at the first tier whose output is judged
// sufficient. A tool failure is recorded and processing continues with the
// enrichment already at hand, it is never a reason to escalate.
func (e *Engine) Decide(ctx context.Context, article *model.Article, snippet string) EnrichmentResult {
	result := EnrichmentResult{
		TierUsed:     1,
		ToolsUsed:    []string{},
		EnrichedText: snippet,
		FailedTools:  []string{},
	}

	for _, policy := range e.policies[1:] {
		if !policy.Enter(article, result.EnrichedText) {
			break
		}

		output, err := e.registry.Invoke(ctx, policy.Tool, e.queryForTool(policy.Tool, article, result.EnrichedText))
		if err != nil {
			Logger.Log.Warnf("tool %s failed for article %s: %v", policy.Tool, article.Id, err)
			result.FailedTools = append(result.FailedTools, policy.Tool)
			break
		}

		result.ToolsUsed = append(result.ToolsUsed, policy.Tool)
		if result.EnrichedText == "" {
			result.EnrichedText = output
		} else {
			result.EnrichedText = result.EnrichedText + "\n\n" + output
		}
		result.TierUsed = policy.Tier
	}

	return result
}

func (e *Engine) queryForTool(toolId string, article *model.Article, enriched string) string {
	switch toolId {
	case enrich.ToolContentFetch:
		return article.OriginUrl
	case enrich.ToolWebSearch:
		return article.Title
	case enrich.ToolSimilarityLookup:
		return article.Title
	}
	return enriched
}
