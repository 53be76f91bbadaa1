package stats

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func mustLookup(t *testing.T, id string) *Report {
	t.Helper()
	r, ok := Lookup(id)
	if !ok {
		t.Fatalf("report %q not in catalogue", id)
	}
	return r
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		values  url.Values
		want    Params
		wantErr bool
	}{
		{
			name:   "records default to all years and default limit",
			report: "batting-records",
			values: url.Values{},
			want:   Params{Limit: 20},
		},
		{
			name:   "records with year and limit",
			report: "bowling-records",
			values: url.Values{"year": {"2019"}, "limit": {"60"}},
			want:   Params{Year: 2019, Limit: 60},
		},
		{
			name:    "records reject unlisted limit",
			report:  "batting-records",
			values:  url.Values{"limit": {"25"}},
			wantErr: true,
		},
		{
			name:    "year report requires a year",
			report:  "top-batsmen",
			values:  url.Values{"year": {"all"}},
			wantErr: true,
		},
		{
			name:    "non numeric year",
			report:  "best-batsman",
			values:  url.Values{"year": {"2022 OR 1=1"}},
			wantErr: true,
		},
		{
			name:    "year out of range",
			report:  "best-batsman",
			values:  url.Values{"year": {"20222"}},
			wantErr: true,
		},
		{
			name:   "match with default plot",
			report: "bowlers-match",
			values: url.Values{"match": {"335982"}},
			want:   Params{MatchID: 335982, Plot: PlotBar},
		},
		{
			name:    "unknown plot",
			report:  "bowlers-match",
			values:  url.Values{"match": {"1"}, "plot": {"scatter"}},
			wantErr: true,
		},
		{
			name:   "player is trimmed",
			report: "key-dismissals",
			values: url.Values{"player": {"  V Kohli "}},
			want:   Params{Player: "V Kohli"},
		},
		{
			name:   "unused values are ignored",
			report: "toss-impact",
			values: url.Values{"year": {"nope"}, "player": {"x"}},
			want:   Params{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(mustLookup(t, tt.report), tt.values, 20)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParam) {
					t.Fatalf("ParseParams() error = %v, want ErrInvalidParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseParams() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParams_ValuesRoundTrip(t *testing.T) {
	r := mustLookup(t, "bowlers-match")
	p := Params{MatchID: 101, Plot: PlotPie}

	got, err := ParseParams(r, p.Values(), 20)
	if err != nil {
		t.Fatalf("ParseParams() unexpected error: %v", err)
	}
	if got != p {
		t.Errorf("got %+v, want %+v", got, p)
	}
}

func TestCatalogue_HidesAdminReports(t *testing.T) {
	for _, r := range Catalogue() {
		if r.AdminOnly {
			t.Errorf("Catalogue() includes admin report %s", r.ID)
		}
	}
	if len(Catalogue()) != 11 {
		t.Errorf("Catalogue() has %d reports, want 11", len(Catalogue()))
	}
	if _, ok := RecordsReport("fielding"); ok {
		t.Error("RecordsReport(fielding) should not exist")
	}
}

func TestCache_ExpiryAndEviction(t *testing.T) {
	now := time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute, 2)
	c.now = func() time.Time { return now }

	c.Set("a", &Table{Title: "a"})
	now = now.Add(10 * time.Second)
	c.Set("b", &Table{Title: "b"})
	now = now.Add(10 * time.Second)
	c.Set("c", &Table{Title: "c"})

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	now = now.Add(55 * time.Second)
	if _, ok := c.Get("b"); ok {
		t.Error("entry b should have expired")
	}
	if got := c.CleanupExpired(); got != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", got)
	}
	if tbl, ok := c.Get("c"); !ok || tbl.Title != "c" {
		t.Error("entry c should still be cached")
	}
}

func TestCache_DisabledWithZeroTTL(t *testing.T) {
	c := NewCache(0, 10)
	c.Set("a", &Table{})
	if _, ok := c.Get("a"); ok {
		t.Error("zero TTL cache should never hit")
	}
}
