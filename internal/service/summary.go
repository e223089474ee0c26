package service

import (
	"context"

	"github.com/agrilens/leafsight/internal/cache"
	"github.com/agrilens/leafsight/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Cache keys the write path invalidates. The summary is one key; history
// pages are a keyspace, one entry per (page, limit) pair, cleared by
// prefix.
const (
	summaryCacheKey   = "disease_summary"
	historyPagePrefix = "history_page_"
)

// DiseaseInfoProvider supplies the combined disease catalog.
type DiseaseInfoProvider interface {
	DiseaseInfo(ctx context.Context) ([]domain.DiseaseInfo, error)
}

// SummaryService serves the read-side reports: the per-disease frequency
// summary and paginated diagnosis history.
type SummaryService struct {
	knowledge DiseaseInfoProvider
	store     DiagnosisStore
	cache     *cache.Store
}

func NewSummaryService(knowledge DiseaseInfoProvider, store DiagnosisStore, cacheStore *cache.Store) *SummaryService {
	return &SummaryService{knowledge: knowledge, store: store, cache: cacheStore}
}

// Summary joins the disease catalog with grouped history counts. Entries
// follow catalog order; catalog diseases with no history show a zero
// count. Labels present only in history rows (retired taxonomy entries)
// are dropped rather than shown without catalog context.
func (s *SummaryService) Summary(ctx context.Context) ([]domain.SummaryEntry, error) {
	if v, ok := s.cache.Get(summaryCacheKey); ok {
		if entries, ok := v.([]domain.SummaryEntry); ok {
			return entries, nil
		}
	}

	var (
		infos  []domain.DiseaseInfo
		counts []domain.DiseaseCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		infos, err = s.knowledge.DiseaseInfo(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.store.CountByDisease(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	countByLabel := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByLabel[c.DiseaseType] = c.Count
	}

	entries := make([]domain.SummaryEntry, len(infos))
	for i, info := range infos {
		entries[i] = domain.SummaryEntry{
			DiseaseType: info.DiseaseType,
			Image:       info.Image,
			Count:       countByLabel[info.DiseaseType],
		}
	}

	s.cache.Set(summaryCacheKey, entries)
	return entries, nil
}

// History returns one page of diagnosis records, newest first, with the
// total row count. page is 1-based.
func (s *SummaryService) History(ctx context.Context, page, limit int) (*domain.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	key := cache.Key("history_page", page, "limit", limit)
	if v, ok := s.cache.Get(key); ok {
		if hp, ok := v.(*domain.HistoryPage); ok {
			return hp, nil
		}
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Page(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	hp := &domain.HistoryPage{Data: records, Total: total}
	s.cache.Set(key, hp)
	return hp, nil
}
