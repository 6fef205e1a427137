package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleServices() []domain.ServiceDefinition {
	return []domain.ServiceDefinition{
		{ID: "basic", Title: "Basic", Price: decimal.NewFromInt(120)},
		{ID: "plus", Title: "Plus", Price: decimal.NewFromInt(250)},
	}
}

func sampleAddons() []domain.AddonDefinition {
	return []domain.AddonDefinition{
		{ID: "addon-rush", Name: "rush-delivery", Title: "Rush delivery", Price: decimal.NewFromInt(30)},
		{ID: "addon-captions", Name: "captions", Title: "Captions", Price: decimal.NewFromInt(15)},
	}
}

func TestNewSnapshot(t *testing.T) {
	t.Run("indexes services and addons", func(t *testing.T) {
		snap, err := NewSnapshot(sampleServices(), sampleAddons())
		require.NoError(t, err)

		svc, ok := snap.Service("plus")
		require.True(t, ok)
		assert.Equal(t, "Plus", svc.Title)

		_, ok = snap.Service("missing")
		assert.False(t, ok)
	})

	t.Run("addons resolve by id then name", func(t *testing.T) {
		snap, err := NewSnapshot(sampleServices(), sampleAddons())
		require.NoError(t, err)

		byID, ok := snap.Addon("addon-rush")
		require.True(t, ok)
		byName, ok := snap.Addon("rush-delivery")
		require.True(t, ok)
		assert.Equal(t, byID.ID, byName.ID)

		_, ok = snap.Addon("nope")
		assert.False(t, ok)
	})

	t.Run("duplicate service id is rejected", func(t *testing.T) {
		services := append(sampleServices(), domain.ServiceDefinition{ID: "plus"})
		_, err := NewSnapshot(services, nil)
		assert.ErrorIs(t, err, ErrDuplicateDefinition)
	})

	t.Run("duplicate addon id is rejected", func(t *testing.T) {
		addons := append(sampleAddons(), domain.AddonDefinition{ID: "addon-rush"})
		_, err := NewSnapshot(nil, addons)
		assert.ErrorIs(t, err, ErrDuplicateDefinition)
	})

	t.Run("duplicate addon name keeps the first", func(t *testing.T) {
		addons := append(sampleAddons(), domain.AddonDefinition{ID: "addon-rush-2", Name: "rush-delivery"})
		snap, err := NewSnapshot(nil, addons)
		require.NoError(t, err)

		a, ok := snap.Addon("rush-delivery")
		require.True(t, ok)
		assert.Equal(t, "addon-rush", a.ID)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	doc := `{
		"services": [{"id": "plus", "title": "Plus", "price": "250"}],
		"addons": [{"id": "addon-rush", "name": "rush-delivery", "price": "30"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	svc, ok := snap.Service("plus")
	require.True(t, ok)
	assert.True(t, svc.Price.Equal(decimal.NewFromInt(250)))

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

type catalogServer struct {
	*httptest.Server
	hits atomic.Int32
	fail atomic.Bool

	// gate, when set, holds /services until closed.
	gate chan struct{}
}

func newCatalogServer(t *testing.T) *catalogServer {
	t.Helper()
	cs := &catalogServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /services", func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		if cs.gate != nil {
			select {
			case <-cs.gate:
			case <-r.Context().Done():
				return
			}
		}
		if cs.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"plus","title":"Plus","price":"250"}]`))
	})
	mux.HandleFunc("GET /addons", func(w http.ResponseWriter, r *http.Request) {
		if cs.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"addon-rush","name":"rush-delivery","price":"30"}]`))
	})
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func TestHTTPProvider_CachesWithinTTL(t *testing.T) {
	srv := newCatalogServer(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL + "/", TTL: time.Minute}, srv.Client(), nil)
	p.now = func() time.Time { return now }

	first, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	second, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), srv.hits.Load())

	now = now.Add(2 * time.Minute)
	third, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), srv.hits.Load())

	_, ok := third.Addon("rush-delivery")
	assert.True(t, ok)
}

func TestHTTPProvider_ServesStaleOnFailure(t *testing.T) {
	srv := newCatalogServer(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, TTL: time.Minute}, srv.Client(), nil)
	p.now = func() time.Time { return now }

	first, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	srv.fail.Store(true)
	now = now.Add(time.Hour)

	stale, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, stale)
}

func TestHTTPProvider_UnavailableWithoutSnapshot(t *testing.T) {
	srv := newCatalogServer(t)
	srv.fail.Store(true)

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL}, srv.Client(), nil)

	_, err := p.Snapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, ErrCatalogUnavailable.Message, derr.Message)
}

func TestHTTPProvider_RefreshOutlivesCancelledCaller(t *testing.T) {
	srv := newCatalogServer(t)
	srv.gate = make(chan struct{})

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, srv.Client(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := p.Snapshot(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return srv.hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan *Snapshot, 1)
	go func() {
		snap, err := p.Snapshot(context.Background())
		if err != nil {
			snap = nil
		}
		second <- snap
	}()

	cancel()
	select {
	case err := <-first:
		require.Error(t, err, "the cancelled caller stops waiting")
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on the refresh")
	}

	close(srv.gate)
	select {
	case snap := <-second:
		require.NotNil(t, snap, "the shared refresh completes for the other caller")
		_, ok := snap.Service("plus")
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never completed")
	}
	assert.Equal(t, int32(1), srv.hits.Load())
}
