package reporting

import (
	"context"
	"log/slog"
	"strings"
)

const (
	keyLocations  = "reporting:locations"
	keyConditions = "reporting:conditions"
)

// Reader is the query surface of the reporting database.
type Reader interface {
	VenioSONumber(ctx context.Context, netsuiteID string) (string, error)
	Locations(ctx context.Context) ([]Location, error)
	Conditions(ctx context.Context) ([]Condition, error)
	Items(ctx context.Context, ids []string) ([]Item, error)
}

// Service serves reference data for order views, caching the static lists.
type Service struct {
	repo   Reader
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the reporting service.
func NewService(repo Reader, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// VenioSONumber resolves the order-entry number for a NetSuite order.
func (s *Service) VenioSONumber(ctx context.Context, netsuiteID string) (string, error) {
	return s.repo.VenioSONumber(ctx, netsuiteID)
}

// Locations returns the cached location list.
func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	var out []Location
	err := s.cache.FetchJSON(ctx, keyLocations, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Locations(ctx)
	})
	return out, err
}

// Conditions returns the cached condition list.
func (s *Service) Conditions(ctx context.Context) ([]Condition, error) {
	var out []Condition
	err := s.cache.FetchJSON(ctx, keyConditions, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Conditions(ctx)
	})
	return out, err
}

// RefreshReferenceLists drops the cached lists so the next read reloads them.
func (s *Service) RefreshReferenceLists(ctx context.Context) error {
	return s.cache.Invalidate(ctx, keyLocations, keyConditions)
}

// ItemMap returns item details keyed by item id for the distinct non-empty ids.
func (s *Service) ItemMap(ctx context.Context, itemIDs []string) (map[string]Item, error) {
	seen := make(map[string]struct{}, len(itemIDs))
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	out := make(map[string]Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.repo.Items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}
