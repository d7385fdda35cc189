package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LatestVersionURL publishes the newest stable release as plain text.
const LatestVersionURL = "https://openrazer.github.io/api/latest_version.txt"

const maxMarkerSize = 1024

// Fetcher downloads the latest-version marker.
type Fetcher struct {
	URL    string
	Client *http.Client
}

// NewFetcher returns a Fetcher whose requests give up after timeout.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Latest fetches and validates the remote marker. Any network failure, a
// non-200 status or a body that is not a three-part version is an error.
func (f *Fetcher) Latest(ctx context.Context) (Triple, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return Triple{}, fmt.Errorf("build request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Triple{}, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Triple{}, fmt.Errorf("fetch %s: unexpected status %d", f.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMarkerSize))
	if err != nil {
		return Triple{}, fmt.Errorf("read %s: %w", f.URL, err)
	}

	return Parse(string(body))
}
