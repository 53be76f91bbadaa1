package maintenance

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Default schedules
const (
	SessionCleanupSchedule = "@every 15m"
	CacheSweepSchedule     = "@every 5m"
	OptimizeSchedule       = "@daily"
)

// SessionCleaner deletes expired login sessions
type SessionCleaner interface {
	CleanupExpiredSessions() (int64, error)
}

// CacheSweeper drops expired report results
type CacheSweeper interface {
	SweepCache() int
}

// Optimizer refreshes database planner statistics
type Optimizer interface {
	Optimize() error
}

// JobStatus is the outcome of the last run of a job
type JobStatus struct {
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
	LastErr  string
}

type job struct {
	name     string
	schedule string
	run      func() error
	entryID  cron.EntryID
	lastRun  time.Time
	lastErr  error
}

// Manager runs periodic housekeeping on a cron scheduler
type Manager struct {
	cron    *cron.Cron
	mu      sync.RWMutex
	jobs    map[string]*job
	running bool
}

// NewManager creates a manager with the standard jobs registered
func NewManager(sessions SessionCleaner, cache CacheSweeper, db Optimizer) (*Manager, error) {
	m := &Manager{
		cron: cron.New(),
		jobs: make(map[string]*job),
	}

	err := m.add("sessions", SessionCleanupSchedule, func() error {
		removed, err := sessions.CleanupExpiredSessions()
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Debug().Int64("removed", removed).Msg("Expired sessions removed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = m.add("cache", CacheSweepSchedule, func() error {
		if removed := cache.SweepCache(); removed > 0 {
			log.Debug().Int("removed", removed).Msg("Expired report results removed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.add("optimize", OptimizeSchedule, db.Optimize); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) add(name, schedule string, run func() error) error {
	j := &job{name: name, schedule: schedule, run: run}
	id, err := m.cron.AddFunc(schedule, func() { m.execute(j) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	j.entryID = id
	m.jobs[name] = j
	return nil
}

func (m *Manager) execute(j *job) {
	err := j.run()

	m.mu.Lock()
	j.lastRun = time.Now()
	j.lastErr = err
	m.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("job", j.name).Msg("Maintenance job failed")
	}
}

// Start starts the scheduler
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.cron.Start()
	m.running = true

	log.Info().Int("jobs", len(m.jobs)).Msg("Maintenance scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	ctx := m.cron.Stop()
	<-ctx.Done()

	log.Info().Msg("Maintenance scheduler stopped")
}

// RunNow runs a job immediately, outside its schedule
func (m *Manager) RunNow(name string) error {
	m.mu.RLock()
	j, ok := m.jobs[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown maintenance job %q", name)
	}

	m.execute(j)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return j.lastErr
}

// Status returns every job with its last outcome, sorted by name
func (m *Manager) Status() []JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]JobStatus, 0, len(m.jobs))
	for _, j := range m.jobs {
		status := JobStatus{
			Name:     j.name,
			Schedule: j.schedule,
			LastRun:  j.lastRun,
			NextRun:  m.cron.Entry(j.entryID).Next,
		}
		if j.lastErr != nil {
			status.LastErr = j.lastErr.Error()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
