// Package catalog supplies the read-only service and addon definitions the
// cart and pricing code look items up in.
package catalog

import (
	"context"

	"github.com/dukerupert/cutroom/internal/domain"
)

var (
	ErrServiceNotFound     = &domain.Error{Code: domain.ENOTFOUND, Message: "Service not found"}
	ErrCatalogUnavailable  = &domain.Error{Code: domain.EUNAVAILABLE, Message: "The service catalog is temporarily unavailable"}
	ErrDuplicateDefinition = &domain.Error{Code: domain.EINVALID, Message: "Catalog contains duplicate identifiers"}
)

// Provider returns the current catalog snapshot.
// Implementations must return snapshots that are never mutated afterwards.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Snapshot is an immutable view of the catalog at one point in time.
type Snapshot struct {
	Services []domain.ServiceDefinition `json:"services"`
	Addons   []domain.AddonDefinition   `json:"addons"`

	servicesByID map[string]int
	addonsByID   map[string]int
	addonsByName map[string]int
}

// NewSnapshot indexes services and addons. Service IDs and addon IDs must be unique.
func NewSnapshot(services []domain.ServiceDefinition, addons []domain.AddonDefinition) (*Snapshot, error) {
	s := &Snapshot{
		Services:     services,
		Addons:       addons,
		servicesByID: make(map[string]int, len(services)),
		addonsByID:   make(map[string]int, len(addons)),
		addonsByName: make(map[string]int, len(addons)),
	}

	for i, svc := range services {
		if _, dup := s.servicesByID[svc.ID]; dup {
			return nil, domain.WrapError(ErrDuplicateDefinition, domain.EINVALID, "catalog.index", "duplicate service id "+svc.ID)
		}
		s.servicesByID[svc.ID] = i
	}

	for i, addon := range addons {
		if _, dup := s.addonsByID[addon.ID]; dup {
			return nil, domain.WrapError(ErrDuplicateDefinition, domain.EINVALID, "catalog.index", "duplicate addon id "+addon.ID)
		}
		s.addonsByID[addon.ID] = i
		// First name wins; names are only a fallback key.
		if _, seen := s.addonsByName[addon.Name]; !seen && addon.Name != "" {
			s.addonsByName[addon.Name] = i
		}
	}

	return s, nil
}

// Service looks up a service by ID.
func (s *Snapshot) Service(id string) (domain.ServiceDefinition, bool) {
	i, ok := s.servicesByID[id]
	if !ok {
		return domain.ServiceDefinition{}, false
	}
	return s.Services[i], true
}

// Addon resolves an addon reference. IDs are tried first; names are accepted
// for carts and orders written before addons were referenced by ID.
func (s *Snapshot) Addon(ref string) (domain.AddonDefinition, bool) {
	if i, ok := s.addonsByID[ref]; ok {
		return s.Addons[i], true
	}
	if i, ok := s.addonsByName[ref]; ok {
		return s.Addons[i], true
	}
	return domain.AddonDefinition{}, false
}
