package generator

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/postmux/postmux/model"
)

const (
	xMaxRunes         = 280
	facebookBodyChars = 400
	maxHashtags       = 3
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"for": true, "with": true, "into": true, "over": true, "after": true,
	"from": true, "this": true, "that": true, "its": true, "has": true,
	"have": true, "will": true, "are": true, "was": true, "were": true,
}

var platformEmoji = map[model.Platform]string{
	model.PlatformX:         "📰",
	model.PlatformInstagram: "📸",
	model.PlatformFacebook:  "📣",
}

var platformQuestion = map[model.Platform]string{
	model.PlatformX:         "What's your take?",
	model.PlatformInstagram: "What do you think?",
	model.PlatformFacebook:  "How do you see this playing out?",
}

// PostGenerator renders one post per platform for a processed article. By
// construction every post carries at least one hashtag, one emoji glyph and
// one engagement question.
type PostGenerator struct{}

func NewPostGenerator() *PostGenerator {
	return &PostGenerator{}
}

// Generate renders the platform specific posts for the article, using the
// enriched text accumulated by the decision engine.
func (g *PostGenerator) Generate(runId string, article *model.Article, enriched string) []model.GeneratedPost {
	tags := hashtagsFromTitle(article.Title)

	posts := []model.GeneratedPost{}
	for _, platform := range model.AllPlatforms {
		posts = append(posts, model.GeneratedPost{
			Id:        uuid.New().String(),
			RunId:     runId,
			ArticleId: article.Id,
			Platform:  platform,
			Content:   g.renderContent(platform, article, enriched, tags),
			Hashtags:  strings.Join(tags, ","),
			CreatedAt: time.Now(),
		})
	}
	return posts
}

func (g *PostGenerator) renderContent(platform model.Platform, article *model.Article, enriched string, tags []string) string {
	emoji := platformEmoji[platform]
	question := platformQuestion[platform]

	switch platform {
	case model.PlatformX:
		tail := fmt.Sprintf(" %s\n%s\n%s", emoji, question, strings.Join(tags, " "))
		return truncateRunes(article.Title, xMaxRunes-len([]rune(tail))) + tail
	case model.PlatformInstagram:
		// Instagram leans on a longer caption and an extra tag block.
		allTags := append([]string{}, tags...)
		allTags = append(allTags, "#news", "#today")
		return fmt.Sprintf("%s %s\n\n%s\n\n%s\n%s",
			article.Title, emoji, summarize(enriched, facebookBodyChars), question, strings.Join(allTags, " "))
	default:
		return fmt.Sprintf("%s %s\n\n%s\n\n%s\n%s",
			article.Title, emoji, summarize(enriched, facebookBodyChars), question, strings.Join(tags, " "))
	}
}

// hashtagsFromTitle derives up to maxHashtags camel-cased hashtags from the
// longest meaningful words of the title. Always returns at least one tag.
func hashtagsFromTitle(title string) []string {
	words := []string{}
	for _, word := range strings.Fields(title) {
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, word)
		if len(cleaned) < 4 || stopWords[strings.ToLower(cleaned)] {
			continue
		}
		words = append(words, cleaned)
		if len(words) == maxHashtags {
			break
		}
	}

	if len(words) == 0 {
		return []string{"#News"}
	}

	tags := []string{}
	for _, word := range words {
		tags = append(tags, "#"+strings.Title(strings.ToLower(word)))
	}
	return tags
}

// summarize returns the first maxChars runes of the text, cut at a word
// boundary.
func summarize(text string, maxChars int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return "Full story at the link."
	}
	return truncateRunes(collapsed, maxChars)
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 1 {
		return "…"
	}
	truncated := strings.TrimRightFunc(string(runes[:max-1]), unicode.IsSpace)
	return truncated + "…"
}
