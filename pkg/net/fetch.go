package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxFetchBytes caps the size of a fetched document.
const MaxFetchBytes = 4 << 20

var ErrorURLNotFound = errors.New("URL not found")

// Fetch downloads the content at url.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = GetHTTPClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := client.Do(req) //nolint:gosec // URL comes from operator config
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	PrintHTTPResponse(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s (status: %d - %s)", url, resp.StatusCode, resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(b) > MaxFetchBytes {
		return nil, fmt.Errorf("content of %s exceeds %d bytes", url, MaxFetchBytes)
	}
	return b, nil
}
