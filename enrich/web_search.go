package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const maxSearchResults = 5

// WebSearchTool queries an external search API for additional context on an
// article. The query passed to Invoke is the article's title. The API is
// expected to return a JSON body of the shape
// {"results": [{"title": ..., "snippet": ...}, ...]}.
type WebSearchTool struct {
	endpoint string
	client   *HttpClient
}

type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		endpoint: os.Getenv("SEARCH_API_URL"),
		client:   NewDefaultHttpClient(),
	}
}

func NewWebSearchToolWithEndpoint(endpoint string, client *HttpClient) *WebSearchTool {
	return &WebSearchTool{endpoint: endpoint, client: client}
}

func (t *WebSearchTool) Id() string {
	return ToolWebSearch
}

func (t *WebSearchTool) Invoke(ctx context.Context, query string) (string, error) {
	if t.endpoint == "" {
		return "", errors.New("search api endpoint is not configured")
	}

	res, err := t.client.GetWithQueryParams(ctx, t.endpoint, map[string]string{"q": query})
	if err != nil {
		return "", errors.Wrap(err, "fail to query search api")
	}
	defer res.Body.Close()

	response := searchResponse{}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return "", errors.Wrap(err, "fail to decode search api response")
	}

	lines := []string{}
	for idx, result := range response.Results {
		if idx >= maxSearchResults {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s", result.Title, result.Snippet))
	}

	return strings.Join(lines, "\n"), nil
}
