package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/database"
)

// Observer receives report timings and cache hits
type Observer interface {
	ReportQueried(report, result string, duration time.Duration)
	ReportCacheHit(report string)
}

type nopObserver struct{}

func (nopObserver) ReportQueried(string, string, time.Duration) {}
func (nopObserver) ReportCacheHit(string)                       {}

// Options configures a Service
type Options struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	QueryTimeout    time.Duration
	Observer        Observer
}

// Service runs catalogue reports and dropdown lookups against the statistics tables
type Service struct {
	db           *database.DB
	cache        *Cache
	queryTimeout time.Duration
	observer     Observer
}

// NewService creates a report service
func NewService(db *database.DB, opts Options) *Service {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Service{
		db:           db,
		cache:        NewCache(opts.CacheTTL, opts.CacheMaxEntries),
		queryTimeout: opts.QueryTimeout,
		observer:     opts.Observer,
	}
}

// Cache exposes the result cache for maintenance
func (s *Service) Cache() *Cache {
	return s.cache
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// Run validates params and executes the report with the given ID
func (s *Service) Run(ctx context.Context, id string, p Params) (*Table, error) {
	r, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReport, id)
	}
	if err := r.Validate(p); err != nil {
		return nil, err
	}

	key := r.ID + "|" + p.cacheKey()
	if !r.noCache {
		if table, ok := s.cache.Get(key); ok {
			s.observer.ReportCacheHit(r.ID)
			return table, nil
		}
	}

	query, args := r.build(s.db.Driver(), p)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	var table *Table
	if err == nil {
		table, err = scanTable(rows, r.TitleFor(p), r.Columns)
	}
	elapsed := time.Since(start)

	if err != nil {
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
		s.observer.ReportQueried(r.ID, result, elapsed)
		log.Error().Err(err).Str("report", r.ID).Msg("Report query failed")
		return nil, fmt.Errorf("failed to run report %s: %w", r.ID, err)
	}

	s.observer.ReportQueried(r.ID, "ok", elapsed)
	log.Debug().
		Str("report", r.ID).
		Int("rows", len(table.Rows)).
		Dur("duration", elapsed).
		Msg("Report executed")

	if !r.noCache {
		s.cache.Set(key, table)
	}
	return table, nil
}

// Years returns the distinct match years in ascending order
func (s *Service) Years(ctx context.Context) ([]int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var years []int
	query := fmt.Sprintf(`
		SELECT DISTINCT %s AS match_year
		FROM matches
		ORDER BY match_year`, s.db.Driver().YearOf("match_date"))
	if err := s.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	return years, nil
}

// MatchIDs returns the distinct match ids present in the batting or bowling table
func (s *Service) MatchIDs(ctx context.Context, source string) ([]int, error) {
	var query string
	switch source {
	case "batting":
		query = "SELECT DISTINCT match_id FROM batting ORDER BY match_id"
	case "bowling":
		query = "SELECT DISTINCT match_id FROM bowling ORDER BY match_id"
	default:
		return nil, invalid("source", "%q is not batting or bowling", source)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ids []int
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list match ids: %w", err)
	}
	return ids, nil
}

// BattingPlayerNames returns the sorted names of every player with batting rows
func (s *Service) BattingPlayerNames(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var names []string
	err := s.db.SelectContext(ctx, &names, `
		SELECT DISTINCT p.player_name
		FROM batting b
		JOIN players p ON p.player_id = b.player_id
		ORDER BY p.player_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return names, nil
}

// SweepCache drops expired results and returns how many were removed
func (s *Service) SweepCache() int {
	return s.cache.CleanupExpired()
}
