package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrFetch wraps every failure to acquire the raw catalog.
var ErrFetch = errors.New("catalog fetch failed")

// DefaultMaxBytes bounds how much of the catalog is read (32MB).
const DefaultMaxBytes = 32 << 20

// Source locates the raw catalog. Path wins over URL when both are set.
type Source struct {
	URL      string
	Path     string
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
}

// Describe returns the location used for logging.
func (s Source) Describe() string {
	if s.Path != "" {
		return s.Path
	}
	return s.URL
}

// Fetch returns the raw catalog bytes.
func (s Source) Fetch(ctx context.Context) ([]byte, error) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	switch {
	case strings.TrimSpace(s.Path) != "":
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		defer f.Close()
		return readLimited(f, limit)

	case strings.TrimSpace(s.URL) != "":
		return s.fetchHTTP(ctx, limit)

	default:
		return nil, fmt.Errorf("%w: no catalog URL or path configured", ErrFetch)
	}
}

func (s Source) fetchHTTP(ctx context.Context, limit int64) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrFetch, s.URL, resp.StatusCode)
	}
	return readLimited(resp.Body, limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: catalog exceeds %d bytes", ErrFetch, limit)
	}
	return data, nil
}
