package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Snippet is one search result the summariser is allowed to cite.
type Snippet struct {
	Text string
	URL  string
}

// SearchClient issues a bounded-timeout web search (§4.H step 2).
type SearchClient interface {
	Search(ctx context.Context, query string, country string) ([]Snippet, error)
	Name() string
}

// TavilyClient implements SearchClient against the Tavily search API, the
// credential named by §6's optional search.credential.
type TavilyClient struct {
	httpClient *http.Client
	credential string
}

// NewTavilyClient builds a search client using httpClient (the shared
// SOCKS-proxied client from internal/proxy) and the Tavily API credential.
func NewTavilyClient(httpClient *http.Client, credential string) *TavilyClient {
	return &TavilyClient{httpClient: httpClient, credential: credential}
}

func (c *TavilyClient) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	Country       string `json:"country,omitempty"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Results []struct {
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Search issues one POST request to the Tavily search endpoint and returns
// the top results as snippets.
func (c *TavilyClient) Search(ctx context.Context, query string, country string) ([]Snippet, error) {
	reqBody := tavilyRequest{
		APIKey:        c.credential,
		Query:         query,
		Country:       country,
		MaxResults:    5,
		IncludeAnswer: false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	snippets := make([]Snippet, 0, len(out.Results))
	for _, r := range out.Results {
		snippets = append(snippets, Snippet{Text: r.Content, URL: r.URL})
	}

	return snippets, nil
}
