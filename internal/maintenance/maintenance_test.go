package maintenance

import (
	"errors"
	"testing"
)

type fakeSessions struct {
	calls int
	err   error
}

func (f *fakeSessions) CleanupExpiredSessions() (int64, error) {
	f.calls++
	return 2, f.err
}

type fakeCache struct{ calls int }

func (f *fakeCache) SweepCache() int {
	f.calls++
	return 1
}

type fakeDB struct{ calls int }

func (f *fakeDB) Optimize() error {
	f.calls++
	return nil
}

func TestManager_RunNow(t *testing.T) {
	sessions := &fakeSessions{}
	cache := &fakeCache{}
	db := &fakeDB{}

	m, err := NewManager(sessions, cache, db)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	for _, name := range []string{"sessions", "cache", "optimize"} {
		if err := m.RunNow(name); err != nil {
			t.Errorf("RunNow(%s) error: %v", name, err)
		}
	}
	if sessions.calls != 1 || cache.calls != 1 || db.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/1/1", sessions.calls, cache.calls, db.calls)
	}

	if err := m.RunNow("vacuum"); err == nil {
		t.Error("RunNow(vacuum) should fail for an unknown job")
	}
}

func TestManager_StatusRecordsFailures(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("database is locked")}
	m, err := NewManager(sessions, &fakeCache{}, &fakeDB{})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	if err := m.RunNow("sessions"); err == nil {
		t.Fatal("RunNow(sessions) should return the job error")
	}

	m.Start()
	defer m.Stop()

	status := m.Status()
	if len(status) != 3 {
		t.Fatalf("Status() has %d jobs, want 3", len(status))
	}
	if status[0].Name != "cache" || status[2].Name != "sessions" {
		t.Errorf("Status() order = %s, %s, %s", status[0].Name, status[1].Name, status[2].Name)
	}
	if status[2].LastErr != "database is locked" {
		t.Errorf("sessions LastErr = %q", status[2].LastErr)
	}
	if status[2].LastRun.IsZero() {
		t.Error("sessions LastRun should be set")
	}
	if status[0].NextRun.IsZero() {
		t.Error("NextRun should be set once the scheduler is running")
	}
}
