// Package openlibrary fetches work metadata from the OpenLibrary API, used
// by the Sort Pipeline's strict mode to obtain an authoritative title.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sortbook/src/internal/httpx"
)

var client httpx.Doer = &http.Client{Timeout: 10 * time.Second}

// SetHTTPClient allows tests to inject a fake HTTP client.
func SetHTTPClient(c httpx.Doer) { client = c }

// WorkDoc is the subset of the OpenLibrary work-JSON document this package
// consumes.
type WorkDoc struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Authors []struct {
		Key string `json:"key"`
	} `json:"authors"`
}

// FetchWork retrieves https://openlibrary.org/works/<workID>.json and
// decodes it into a WorkDoc. Only Title is consumed by the core; the rest
// of the document is kept for completeness.
func FetchWork(ctx context.Context, workID string) (WorkDoc, error) {
	req := buildWorkRequest(ctx, workID)
	resp, err := client.Do(req)
	if err != nil {
		return WorkDoc{}, fmt.Errorf("openlibrary: request work %s: %w", workID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return WorkDoc{}, fmt.Errorf("openlibrary: http %d fetching work %s: %s", resp.StatusCode, workID, string(b))
	}
	var doc WorkDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return WorkDoc{}, fmt.Errorf("openlibrary: decode work %s: %w", workID, err)
	}
	return doc, nil
}

func buildWorkRequest(ctx context.Context, workID string) *http.Request {
	id := strings.TrimPrefix(strings.TrimSpace(workID), "/works/")
	endpoint := "https://openlibrary.org/works/" + id + ".json"
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	req.Header.Set("Accept", "application/json")
	httpx.SetUA(req)
	return req
}
