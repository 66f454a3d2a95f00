// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

const googleSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleSearchClient is the primary SearchClient backing SPEC_FULL
// §4.2: Google Programmable Search Engine over its JSON API, one
// request per query, ten hits per page.
type GoogleSearchClient struct {
	httpClient *http.Client
}

// NewGoogleSearchClient builds a client over a shared http.Client so
// callers can attach timeouts/transports the way the rest of the
// engine does for outbound hosts.
func NewGoogleSearchClient(httpClient *http.Client) *GoogleSearchClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleSearchClient{httpClient: httpClient}
}

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (c *GoogleSearchClient) Search(ctx context.Context, apiKey, searchEngineID, query string) ([]SearchHit, error) {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("cx", searchEngineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleSearchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &SearchError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SearchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("discovery: google search returned %d", resp.StatusCode)}
	}

	var body googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &SearchError{StatusCode: resp.StatusCode, Err: err}
	}

	hits := make([]SearchHit, 0, len(body.Items))
	for _, item := range body.Items {
		hits = append(hits, SearchHit{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return hits, nil
}
