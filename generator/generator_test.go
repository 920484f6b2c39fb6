package generator

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmux/postmux/model"
)

func containsEmoji(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.So, r) || r >= 0x1F300 {
			return true
		}
	}
	return false
}

func TestGenerate_OnePostPerPlatform(t *testing.T) {
	g := NewPostGenerator()

	posts := g.Generate("run-1", &model.Article{Id: "article-1", Title: "Storm hits city"}, "a long enriched body")
	require.Len(t, posts, 3)

	platforms := []model.Platform{}
	for _, post := range posts {
		platforms = append(platforms, post.Platform)
		assert.Equal(t, "run-1", post.RunId)
		assert.Equal(t, "article-1", post.ArticleId)
		assert.NotEmpty(t, post.Id)
	}
	assert.Equal(t, []model.Platform{model.PlatformX, model.PlatformInstagram, model.PlatformFacebook}, platforms)
}

// Construction policy: every post has at least one hashtag, one emoji glyph
// and one engagement question.
func TestGenerate_ConstructionInvariants(t *testing.T) {
	g := NewPostGenerator()

	posts := g.Generate("run-1", &model.Article{Id: "article-1", Title: "Storm hits coastal city overnight"}, "details")
	for _, post := range posts {
		assert.Contains(t, post.Content, "#", "platform %s is missing a hashtag", post.Platform)
		assert.Contains(t, post.Content, "?", "platform %s is missing an engagement question", post.Platform)
		assert.True(t, containsEmoji(post.Content), "platform %s is missing an emoji", post.Platform)
		assert.NotEmpty(t, post.HashtagList())
	}
}

func TestGenerate_XPostFitsCharacterLimit(t *testing.T) {
	g := NewPostGenerator()

	longTitle := strings.Repeat("Very long headline segment ", 30)
	posts := g.Generate("run-1", &model.Article{Id: "article-1", Title: longTitle}, "details")

	x := posts[0]
	require.Equal(t, model.PlatformX, x.Platform)
	assert.LessOrEqual(t, len([]rune(x.Content)), 280)
	assert.Contains(t, x.Content, "#")
	assert.Contains(t, x.Content, "?")
}

func TestHashtagsFromTitle(t *testing.T) {
	tags := hashtagsFromTitle("Storm hits coastal city overnight")
	assert.Equal(t, []string{"#Storm", "#Hits", "#Coastal"}, tags)

	// Stop words and short words never become hashtags.
	tags = hashtagsFromTitle("The and a or")
	assert.Equal(t, []string{"#News"}, tags)

	// Punctuation is stripped.
	tags = hashtagsFromTitle("Breaking: markets rally!")
	assert.Equal(t, []string{"#Breaking", "#Markets", "#Rally"}, tags)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Full story at the link.", summarize("   ", 100))

	long := strings.Repeat("word ", 200)
	assert.LessOrEqual(t, len([]rune(summarize(long, 100))), 100)
}

func TestFakeSink(t *testing.T) {
	sink := &FakeSink{}
	require.NoError(t, sink.Push(&model.GeneratedPost{Id: "post-1"}))
	assert.Len(t, sink.Posts, 1)

	sink.Fail = true
	assert.Error(t, sink.Push(&model.GeneratedPost{Id: "post-2"}))
	assert.Len(t, sink.Posts, 1)
}
