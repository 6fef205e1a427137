package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// HTTPConfig configures a remote catalog.
type HTTPConfig struct {
	// BaseURL serves GET /services and GET /addons.
	BaseURL string

	// TTL is how long a fetched snapshot is served before refreshing.
	// Default: 5 minutes.
	TTL time.Duration

	// Timeout bounds each refresh. Default: 10 seconds.
	Timeout time.Duration
}

// HTTPProvider fetches the catalog from a remote JSON API and caches it.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	sfg       singleflight.Group
	mu        sync.RWMutex
	snapshot  *Snapshot
	fetchedAt time.Time
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a remote catalog provider.
func NewHTTPProvider(cfg HTTPConfig, client *http.Client, logger *slog.Logger) *HTTPProvider {
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &HTTPProvider{cfg: cfg, client: client, logger: logger, now: time.Now}
}

// Snapshot returns the cached catalog, refreshing it when the TTL has passed.
// If a refresh fails and an older snapshot exists, the older one is served.
func (p *HTTPProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	p.mu.RLock()
	snap, fetchedAt := p.snapshot, p.fetchedAt
	p.mu.RUnlock()

	if snap != nil && p.now().Sub(fetchedAt) < p.cfg.TTL {
		return snap, nil
	}

	// The refresh is shared by every waiting caller, so it must not die with
	// whichever request happened to start it. refresh bounds it by Timeout.
	ch := p.sfg.DoChan("catalog", func() (any, error) {
		return p.refresh(context.WithoutCancel(ctx))
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		if snap != nil {
			p.logger.Warn("catalog refresh failed, serving stale snapshot",
				"error", err,
				"age", p.now().Sub(fetchedAt),
			)
			return snap, nil
		}
		return nil, domain.WrapError(err, domain.EUNAVAILABLE, "catalog.snapshot", ErrCatalogUnavailable.Message)
	}

	return v.(*Snapshot), nil
}

func (p *HTTPProvider) refresh(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var (
		services []domain.ServiceDefinition
		addons   []domain.AddonDefinition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.getJSON(gctx, "/services", &services)
	})
	g.Go(func() error {
		return p.getJSON(gctx, "/addons", &addons)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap, err := NewSnapshot(services, addons)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.snapshot = snap
	p.fetchedAt = p.now()
	p.mu.Unlock()

	p.logger.Debug("catalog refreshed", "services", len(services), "addons", len(addons))
	return snap, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
