package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/metrics"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/jengzang/civic-map/internal/reportsapi"
	"github.com/jengzang/civic-map/internal/repository"
	"github.com/jengzang/civic-map/internal/spatial"
)

// ReportStore persists report snapshots
type ReportStore interface {
	SaveSnapshot(ctx context.Context, source string, reports []models.Report) (*models.ReportSnapshot, error)
	LatestSnapshot(ctx context.Context) (*models.ReportSnapshot, error)
	Query(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
}

// ReportService keeps the current report list, refreshing it from the
// upstream API and falling back to the cached snapshot while the API is
// unreachable.
type ReportService struct {
	source     reportsapi.Source
	sourceName string
	store      ReportStore
	metrics    *metrics.Metrics
	log        logging.Logger

	mu          sync.RWMutex
	current     []models.Report
	lastRefresh time.Time
	subscribers []func([]models.Report)
}

// NewReportService creates a report service. store and m may be nil.
func NewReportService(source reportsapi.Source, sourceName string, store ReportStore, m *metrics.Metrics, log logging.Logger) *ReportService {
	return &ReportService{
		source:     source,
		sourceName: sourceName,
		store:      store,
		metrics:    m,
		log:        log.Named("reports"),
		current:    []models.Report{},
	}
}

// Subscribe registers fn to receive every new report list
func (s *ReportService) Subscribe(fn func([]models.Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Current returns the current report list. Callers must not modify it.
func (s *ReportService) Current() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastRefresh is when the list was last replaced
func (s *ReportService) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// Refresh fetches the report list. When the fetch fails and nothing has
// been loaded yet, the cached snapshot is published instead; the fetch
// error is returned either way.
func (s *ReportService) Refresh(ctx context.Context) error {
	reports, err := s.source.Fetch(ctx)
	if err != nil {
		s.record("error", 0)
		if s.empty() {
			s.loadCached(ctx)
		}
		return err
	}

	if s.store != nil {
		if _, serr := s.store.SaveSnapshot(ctx, s.sourceName, reports); serr != nil {
			s.log.Warn("report snapshot not cached", logging.Err(serr))
		}
	}
	s.publish(reports)
	s.record("ok", len(reports))
	s.log.Info("reports refreshed", logging.Int("count", len(reports)))
	return nil
}

func (s *ReportService) loadCached(ctx context.Context) {
	if s.store == nil {
		return
	}
	snap, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNoSnapshot) {
			s.log.Warn("cached reports unavailable", logging.Err(err))
		}
		return
	}
	s.publish(snap.Reports)
	s.record("cache", len(snap.Reports))
	s.log.Info("serving cached reports",
		logging.Int("count", len(snap.Reports)),
		logging.String("fetched_at", snap.FetchedAt.Format(time.RFC3339)),
	)
}

func (s *ReportService) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current) == 0
}

func (s *ReportService) publish(reports []models.Report) {
	if reports == nil {
		reports = []models.Report{}
	}
	s.mu.Lock()
	s.current = reports
	s.lastRefresh = time.Now()
	subs := append([]func([]models.Report){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(reports)
	}
}

func (s *ReportService) record(result string, count int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReportFetches.WithLabelValues(result).Inc()
	if result != "error" {
		s.metrics.ReportsCached.Set(float64(count))
	}
}

// RunRefresher refreshes immediately and then every interval until ctx
// is done.
func (s *ReportService) RunRefresher(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("report refresh failed", logging.Err(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn("report refresh failed", logging.Err(err))
			}
		}
	}
}

// List returns reports matching filter. The cached snapshot answers
// filtered queries when present; otherwise the in-memory list is filtered.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if s.store != nil && filtered(filter) {
		reports, err := s.store.Query(ctx, filter)
		if err == nil {
			return reports, nil
		}
		if !errors.Is(err, repository.ErrNoSnapshot) {
			return nil, err
		}
	}
	return filterReports(s.Current(), filter), nil
}

// Heat summarizes the reports matching filter as heat points
func (s *ReportService) Heat(ctx context.Context, filter models.ReportFilter) (models.HeatmapResponse, error) {
	reports, err := s.List(ctx, filter)
	if err != nil {
		return models.HeatmapResponse{}, err
	}
	return mapview.Summarize(reports), nil
}

// Categories tallies the current reports by category
func (s *ReportService) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	if s.store != nil {
		counts, err := s.store.CategoryCounts(ctx)
		if err == nil {
			return counts, nil
		}
		if !errors.Is(err, repository.ErrNoSnapshot) {
			return nil, err
		}
	}

	tally := make(map[string]int)
	for _, r := range s.Current() {
		tally[r.Category]++
	}
	counts := make([]models.CategoryCount, 0, len(tally))
	for c, n := range tally {
		counts = append(counts, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Category < counts[j].Category
	})
	return counts, nil
}

// ErrInvalidFilter is returned for malformed bounding boxes
var ErrInvalidFilter = errors.New("service: invalid report filter")

func validateFilter(f models.ReportFilter) error {
	set := 0
	for _, v := range []*float64{f.MinLat, f.MinLng, f.MaxLat, f.MaxLng} {
		if v != nil {
			set++
		}
	}
	if set != 0 && set != 4 {
		return fmt.Errorf("%w: bounding box needs minLat, minLng, maxLat and maxLng", ErrInvalidFilter)
	}
	if b, ok := f.Box(); ok {
		if !mapview.ValidLocation(&models.Location{Lat: b.MinLat, Lng: b.MinLng}) ||
			!mapview.ValidLocation(&models.Location{Lat: b.MaxLat, Lng: b.MaxLng}) || b.MinLat > b.MaxLat {
			return fmt.Errorf("%w: bounding box out of range", ErrInvalidFilter)
		}
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	return nil
}

func filtered(f models.ReportFilter) bool {
	_, box := f.Box()
	return box || f.Category != "" || f.Limit > 0
}

func filterReports(reports []models.Report, f models.ReportFilter) []models.Report {
	if !filtered(f) {
		return reports
	}
	box, hasBox := f.Box()
	out := []models.Report{}
	for _, r := range reports {
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if hasBox {
			if !mapview.ValidLocation(r.Location) ||
				!spatial.BoxContains(box.MinLat, box.MinLng, box.MaxLat, box.MaxLng, r.Location.Lat, r.Location.Lng) {
				continue
			}
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}
