package enrich

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// ContentFetchTool downloads the article page and extracts its body text.
// The query passed to Invoke is the article's origin url.
type ContentFetchTool struct {
	client *HttpClient
}

func NewContentFetchTool() *ContentFetchTool {
	return &ContentFetchTool{client: NewDefaultHttpClient()}
}

func NewContentFetchToolWithClient(client *HttpClient) *ContentFetchTool {
	return &ContentFetchTool{client: client}
}

func (t *ContentFetchTool) Id() string {
	return ToolContentFetch
}

func (t *ContentFetchTool) Invoke(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("content-fetch requires a non-empty url")
	}

	res, err := t.client.Get(ctx, url)
	if err != nil {
		return "", errors.Wrap(err, "fail to fetch article page")
	}
	defer res.Body.Close()

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", errors.Wrap(err, "fail to parse article page")
	}

	// Prefer semantic article markup, fall back to all paragraphs.
	selection := doc.Find("article p")
	if selection.Length() == 0 {
		selection = doc.Find("p")
	}

	paragraphs := []string{}
	selection.Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return strings.Join(paragraphs, "\n"), nil
}
