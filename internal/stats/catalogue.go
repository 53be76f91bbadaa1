package stats

import (
	"fmt"

	"github.com/saltyorg/ipldash/internal/database"
)

type param int

const (
	paramYear param = iota + 1
	paramOptionalYear
	paramLimit
	paramMatch
	paramPlayer
	paramPlot
)

// ChartKind selects how a report is drawn next to its table
type ChartKind string

const (
	ChartBar    ChartKind = "bar"
	ChartPie    ChartKind = "pie"
	ChartBubble ChartKind = "bubble"
	// ChartBarOrPie follows the plot param
	ChartBarOrPie ChartKind = "bar-or-pie"
)

// ChartSpec maps table columns onto a figure
type ChartSpec struct {
	Kind   ChartKind
	Label  string
	Value  string
	Group  string
	XLabel string
	YLabel string
}

// Report is one entry of the report menu. Its SQL text is fixed; every user
// selection reaches the database as a bound argument.
type Report struct {
	ID        string
	Title     string
	Columns   []string
	Chart     *ChartSpec
	AdminOnly bool

	params      []param
	matchSource string
	noCache     bool
	build       func(d database.Driver, p Params) (string, []any)
}

func (r *Report) needs(p param) bool {
	for _, have := range r.params {
		if have == p {
			return true
		}
	}
	return false
}

// NeedsYear reports whether the report requires a specific year
func (r *Report) NeedsYear() bool { return r.needs(paramYear) }

// OptionalYear reports whether the report takes a year or "All Years"
func (r *Report) OptionalYear() bool { return r.needs(paramOptionalYear) }

// NeedsLimit reports whether the report takes a row limit
func (r *Report) NeedsLimit() bool { return r.needs(paramLimit) }

// NeedsMatch reports whether the report takes a match id
func (r *Report) NeedsMatch() bool { return r.needs(paramMatch) }

// MatchSource names the table the match id dropdown is filled from
func (r *Report) MatchSource() string { return r.matchSource }

// NeedsPlayer reports whether the report takes a batsman name
func (r *Report) NeedsPlayer() bool { return r.needs(paramPlayer) }

// NeedsPlot reports whether the report offers a bar/pie choice
func (r *Report) NeedsPlot() bool { return r.needs(paramPlot) }

// HasParams reports whether the report has any selection at all
func (r *Report) HasParams() bool { return len(r.params) > 0 }

// TitleFor returns the heading shown above the result for the given params
func (r *Report) TitleFor(p Params) string {
	switch {
	case r.needs(paramOptionalYear) && p.Year == 0:
		return r.Title + " (All Years)"
	case r.needs(paramOptionalYear) || r.needs(paramYear):
		return fmt.Sprintf("%s (%d)", r.Title, p.Year)
	case r.needs(paramMatch):
		return fmt.Sprintf("%s (Match %d)", r.Title, p.MatchID)
	case r.needs(paramPlayer):
		return fmt.Sprintf("%s (%s)", r.Title, p.Player)
	}
	return r.Title
}

// countedWicket excludes deliveries that are not credited to the bowler. NOT IN
// also drops rows with no dismissal kind.
const countedWicket = `bw.dismissal_kind NOT IN ('retired hurt', 'retired out', 'run out', 'obstructing the field')`

var reports = []*Report{
	{
		ID:      "batting-records",
		Title:   "All Batting Records",
		Columns: []string{"Player Name", "Total Runs"},
		params:  []param{paramOptionalYear, paramLimit},
		build: func(d database.Driver, p Params) (string, []any) {
			if p.Year == 0 {
				return `
					SELECT p.player_name, SUM(b.runs_scored) AS total_runs
					FROM batting b
					JOIN players p ON p.player_id = b.player_id
					JOIN matches m ON m.match_id = b.match_id
					GROUP BY p.player_name
					ORDER BY total_runs DESC, p.player_name
					LIMIT ?`, []any{p.Limit}
			}
			return fmt.Sprintf(`
				SELECT p.player_name, SUM(b.runs_scored) AS total_runs
				FROM batting b
				JOIN players p ON p.player_id = b.player_id
				JOIN matches m ON m.match_id = b.match_id
				WHERE %s = ?
				GROUP BY p.player_name
				ORDER BY total_runs DESC, p.player_name
				LIMIT ?`, d.YearOf("m.match_date")), []any{p.Year, p.Limit}
		},
	},
	{
		ID:      "bowling-records",
		Title:   "All Bowling Records",
		Columns: []string{"Player Name", "Total Wickets"},
		params:  []param{paramOptionalYear, paramLimit},
		build: func(d database.Driver, p Params) (string, []any) {
			if p.Year == 0 {
				return `
					SELECT p.player_name, SUM(bw.wicket_delivery) AS total_wickets
					FROM bowling bw
					JOIN players p ON p.player_id = bw.player_id
					JOIN matches m ON m.match_id = bw.match_id
					WHERE ` + countedWicket + `
					GROUP BY p.player_name
					ORDER BY total_wickets DESC, p.player_name
					LIMIT ?`, []any{p.Limit}
			}
			return fmt.Sprintf(`
				SELECT p.player_name, SUM(bw.wicket_delivery) AS total_wickets
				FROM bowling bw
				JOIN players p ON p.player_id = bw.player_id
				JOIN matches m ON m.match_id = bw.match_id
				WHERE %s = ? AND %s
				GROUP BY p.player_name
				ORDER BY total_wickets DESC, p.player_name
				LIMIT ?`, d.YearOf("m.match_date"), countedWicket), []any{p.Year, p.Limit}
		},
	},
	{
		ID:      "team-venues",
		Title:   "Team Winning Venues",
		Columns: []string{"Team Name", "Stadium Name", "Matches Won"},
		Chart: &ChartSpec{
			Kind: ChartBar, Label: "Stadium Name", Value: "Matches Won", Group: "Team Name",
			XLabel: "Stadium", YLabel: "Matches Won",
		},
		build: func(database.Driver, Params) (string, []any) {
			return `
				WITH won AS (
					SELECT team1_name AS team_name, venue_name
					FROM matches
					WHERE winning_team = team1_name
					UNION ALL
					SELECT team2_name AS team_name, venue_name
					FROM matches
					WHERE winning_team = team2_name
				), wins AS (
					SELECT team_name, venue_name, COUNT(*) AS match_count
					FROM won
					GROUP BY team_name, venue_name
				), ranked AS (
					SELECT team_name, venue_name, match_count,
						ROW_NUMBER() OVER (PARTITION BY team_name ORDER BY match_count DESC, venue_name) AS rn
					FROM wins
				)
				SELECT team_name, venue_name, match_count
				FROM ranked
				WHERE rn = 1
				ORDER BY team_name`, nil
		},
	},
	{
		ID:          "batsmen-match",
		Title:       "Batsmen Performance in a Match",
		Columns:     []string{"Player Name", "Total Runs", "Dismissal"},
		matchSource: "batting",
		Chart: &ChartSpec{
			Kind: ChartBar, Label: "Player Name", Value: "Total Runs", Group: "Dismissal",
			XLabel: "Batsman", YLabel: "Runs",
		},
		params: []param{paramMatch},
		build: func(_ database.Driver, p Params) (string, []any) {
			return `
				SELECT p.player_name, SUM(b.runs_scored) AS total_runs,
					COALESCE(MAX(b.dismissal_kind), 'Not Dismissed') AS dismissal
				FROM batting b
				JOIN players p ON p.player_id = b.player_id
				WHERE b.match_id = ?
				GROUP BY p.player_name
				ORDER BY total_runs DESC, p.player_name`, []any{p.MatchID}
		},
	},
	{
		ID:          "bowlers-match",
		Title:       "Bowler Performance in a Match",
		Columns:     []string{"Player Name", "Total Wickets"},
		matchSource: "bowling",
		Chart: &ChartSpec{
			Kind: ChartBarOrPie, Label: "Player Name", Value: "Total Wickets",
			XLabel: "Bowler", YLabel: "Wickets",
		},
		params: []param{paramMatch, paramPlot},
		build: func(_ database.Driver, p Params) (string, []any) {
			return `
				SELECT p.player_name, SUM(bw.wicket_delivery) AS total_wickets
				FROM bowling bw
				JOIN players p ON p.player_id = bw.player_id
				WHERE bw.match_id = ? AND ` + countedWicket + `
				GROUP BY p.player_name
				ORDER BY total_wickets DESC, p.player_name`, []any{p.MatchID}
		},
	},
	{
		ID:      "top-batsmen",
		Title:   "Top 10 Scoring Batsmen in a Year",
		Columns: []string{"Player Name", "Total Runs", "Total Matches Played"},
		Chart: &ChartSpec{
			Kind: ChartBar, Label: "Player Name", Value: "Total Runs",
			XLabel: "Batsman", YLabel: "Runs",
		},
		params: []param{paramYear},
		build: func(d database.Driver, p Params) (string, []any) {
			return fmt.Sprintf(`
				SELECT p.player_name, SUM(b.runs_scored) AS total_runs,
					COUNT(DISTINCT b.match_id) AS matches_played
				FROM batting b
				JOIN players p ON p.player_id = b.player_id
				JOIN matches m ON m.match_id = b.match_id
				WHERE %s = ?
				GROUP BY p.player_name
				ORDER BY total_runs DESC, p.player_name
				LIMIT 10`, d.YearOf("m.match_date")), []any{p.Year}
		},
	},
	{
		ID:      "top-bowlers",
		Title:   "Top 10 Wicket Takers in a Year",
		Columns: []string{"Player Name", "Total Wickets"},
		Chart: &ChartSpec{
			Kind: ChartBubble, Label: "Player Name", Value: "Total Wickets",
			XLabel: "Rank", YLabel: "Wickets",
		},
		params: []param{paramYear},
		build: func(d database.Driver, p Params) (string, []any) {
			return fmt.Sprintf(`
				SELECT p.player_name, SUM(bw.wicket_delivery) AS total_wickets
				FROM bowling bw
				JOIN players p ON p.player_id = bw.player_id
				JOIN matches m ON m.match_id = bw.match_id
				WHERE %s = ? AND %s
				GROUP BY p.player_name
				ORDER BY total_wickets DESC, p.player_name
				LIMIT 10`, d.YearOf("m.match_date"), countedWicket), []any{p.Year}
		},
	},
	{
		ID:      "toss-impact",
		Title:   "Winning Toss vs. Winning Match",
		Columns: []string{"Result", "Count"},
		Chart:   &ChartSpec{Kind: ChartPie, Label: "Result", Value: "Count"},
		build: func(database.Driver, Params) (string, []any) {
			return `
				SELECT 'Matches Won by Winning Toss' AS result, COUNT(*) AS match_count
				FROM toss
				WHERE winning_team = toss_winner
				UNION ALL
				SELECT 'Matches Lost by Winning Toss' AS result, COUNT(*) AS match_count
				FROM toss
				WHERE winning_team <> toss_winner`, nil
		},
	},
	{
		ID:      "key-dismissals",
		Title:   "Batsman vs. Bowler: Key Dismissals",
		Columns: []string{"Bowler Name", "Number of times wicket taken"},
		Chart: &ChartSpec{
			Kind: ChartBar, Label: "Bowler Name", Value: "Number of times wicket taken", Group: "Bowler Name",
			XLabel: "Bowler", YLabel: "Dismissals",
		},
		params: []param{paramPlayer},
		build: func(_ database.Driver, p Params) (string, []any) {
			return `
				SELECT bowler_name, COUNT(*) AS wickets
				FROM dismissals
				WHERE batsman_name = ?
				GROUP BY bowler_name
				ORDER BY wickets DESC, bowler_name
				LIMIT 3`, []any{p.Player}
		},
	},
	{
		ID:      "best-batsman",
		Title:   "Best Batsman per Match in a Year",
		Columns: []string{"Match ID", "Player Name", "Total Runs Scored"},
		params:  []param{paramYear},
		build: func(d database.Driver, p Params) (string, []any) {
			return fmt.Sprintf(`
				WITH totals AS (
					SELECT b.match_id, p.player_name, SUM(b.runs_scored) AS total_runs
					FROM batting b
					JOIN players p ON p.player_id = b.player_id
					JOIN matches m ON m.match_id = b.match_id
					WHERE %s = ?
					GROUP BY b.match_id, p.player_name
				), best AS (
					SELECT match_id, MAX(total_runs) AS max_runs
					FROM totals
					GROUP BY match_id
				)
				SELECT t.match_id, t.player_name, t.total_runs
				FROM totals t
				JOIN best ON best.match_id = t.match_id AND best.max_runs = t.total_runs
				ORDER BY t.match_id, t.player_name`, d.YearOf("m.match_date")), []any{p.Year}
		},
	},
	{
		ID:      "bowlers-as-batsmen",
		Title:   "Top 5 Bowlers as Batsmen in a Year",
		Columns: []string{"Bowler Names", "Total runs", "Balls faced"},
		params:  []param{paramYear},
		build: func(d database.Driver, p Params) (string, []any) {
			year := d.YearOf("m.match_date")
			return fmt.Sprintf(`
				WITH bowled AS (
					SELECT bw.player_id
					FROM bowling bw
					JOIN matches m ON m.match_id = bw.match_id
					WHERE %s = ?
					GROUP BY bw.player_id
					HAVING COUNT(*) > 100
				), batted AS (
					SELECT b.player_id, SUM(b.runs_scored) AS total_runs, COUNT(*) AS balls_faced
					FROM batting b
					JOIN matches m ON m.match_id = b.match_id
					WHERE %s = ?
					GROUP BY b.player_id
					HAVING COUNT(*) < 100
				)
				SELECT p.player_name, bt.total_runs, bt.balls_faced
				FROM batted bt
				JOIN bowled bo ON bo.player_id = bt.player_id
				JOIN players p ON p.player_id = bt.player_id
				ORDER BY bt.total_runs DESC, p.player_name
				LIMIT 5`, year, year), []any{p.Year, p.Year}
		},
	},
	{
		ID:        "all-users",
		Title:     "All Users",
		Columns:   []string{"ID", "Username"},
		AdminOnly: true,
		noCache:   true,
		build: func(database.Driver, Params) (string, []any) {
			return `SELECT user_id, username FROM users ORDER BY user_id`, nil
		},
	},
}

var reportsByID = func() map[string]*Report {
	m := make(map[string]*Report, len(reports))
	for _, r := range reports {
		m[r.ID] = r
	}
	return m
}()

// Lookup returns the report with the given ID
func Lookup(id string) (*Report, bool) {
	r, ok := reportsByID[id]
	return r, ok
}

// Catalogue returns the reports shown to signed-in users, in menu order.
// Admin-only reports are left out.
func Catalogue() []*Report {
	out := make([]*Report, 0, len(reports))
	for _, r := range reports {
		if !r.AdminOnly {
			out = append(out, r)
		}
	}
	return out
}

// RecordsReport returns the records report for "batting" or "bowling"
func RecordsReport(kind string) (*Report, bool) {
	switch kind {
	case "batting":
		return Lookup("batting-records")
	case "bowling":
		return Lookup("bowling-records")
	}
	return nil, false
}
