package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukerupert/cutroom/internal/domain"
)

// StaticProvider serves a catalog fixed at construction time.
type StaticProvider struct {
	snapshot *Snapshot
}

// Compile-time check that StaticProvider implements Provider.
var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider from in-memory definitions.
func NewStaticProvider(services []domain.ServiceDefinition, addons []domain.AddonDefinition) (*StaticProvider, error) {
	snap, err := NewSnapshot(services, addons)
	if err != nil {
		return nil, err
	}
	return &StaticProvider{snapshot: snap}, nil
}

// LoadFile reads a JSON catalog of the form {"services": [...], "addons": [...]}.
func LoadFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var doc struct {
		Services []domain.ServiceDefinition `json:"services"`
		Addons   []domain.AddonDefinition   `json:"addons"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, err)
	}

	return NewStaticProvider(doc.Services, doc.Addons)
}

// Snapshot returns the fixed catalog.
func (p *StaticProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	return p.snapshot, nil
}
