package service

import (
	"context"
	"fmt"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/config"
	"github.com/go-resty/resty/v2"
)

const cacheKeyDiseaseList = "disease_list"

// CatalogService resolves the canonical list of disease labels from the
// external classification taxonomy. The list is cache-fronted; a taxonomy
// fetch failure propagates to the caller.
type CatalogService struct {
	client  *resty.Client
	listURL string
	cache   *cache.Store
}

// NewCatalogService creates a catalog resolver reading through store.
func NewCatalogService(cfg *config.TaxonomyConfig, store *cache.Store) *CatalogService {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)

	return &CatalogService{
		client:  client,
		listURL: cfg.ListURL,
		cache:   store,
	}
}

// taxonomyResponse mirrors the taxonomy endpoint's stats payload.
type taxonomyResponse struct {
	Stats struct {
		Classes []struct {
			Name string `json:"name"`
		} `json:"classes"`
	} `json:"stats"`
}

// Labels returns the ordered disease label list, including "Healthy" if
// the taxonomy carries it. Callers that must exclude the healthy label
// filter it themselves.
func (s *CatalogService) Labels(ctx context.Context) ([]string, error) {
	if v, ok := s.cache.Get(cacheKeyDiseaseList); ok {
		if labels, ok := v.([]string); ok {
			return labels, nil
		}
	}

	var out taxonomyResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(s.listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch disease taxonomy: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("disease taxonomy returned HTTP %d", resp.StatusCode())
	}

	labels := make([]string, 0, len(out.Stats.Classes))
	for _, cls := range out.Stats.Classes {
		labels = append(labels, cls.Name)
	}

	s.cache.Set(cacheKeyDiseaseList, labels)
	return labels, nil
}
