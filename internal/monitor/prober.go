package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Prober performs one reachability check.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber issues a HEAD request and treats any 2xx response as reachable.
type HTTPProber struct {
	client *http.Client
	target string
}

func NewHTTPProber(client *http.Client, target string) *HTTPProber {
	return &HTTPProber{client: client, target: strings.TrimSpace(target)}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// The URL carries the Plex token; keep it out of the error text.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}
