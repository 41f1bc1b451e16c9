package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxDocumentSize bounds how much of a metadata response is read.
const maxDocumentSize = 1 << 20

// Fetcher downloads metadata documents, consulting an optional cache first.
type Fetcher struct {
	httpClient *http.Client
	cache      *Cache
	log        *slog.Logger
}

// NewFetcher creates a Fetcher. cache may be nil.
func NewFetcher(cache *Cache, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		cache:      cache,
		log:        log,
	}
}

// Fetch returns the document stored at uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*Metadata, error) {
	if f.cache != nil {
		m, err := f.cache.Get(uri)
		if err != nil {
			f.log.WarnContext(ctx, "metadata cache read failed", "uri", uri, "err", err)
		} else if m != nil {
			return m, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch metadata: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", uri, err)
	}

	if f.cache != nil {
		if err := f.cache.Put(uri, &m); err != nil {
			f.log.WarnContext(ctx, "metadata cache write failed", "uri", uri, "err", err)
		}
	}
	return &m, nil
}
