package stats

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnknownReport is returned for a report ID that is not in the catalogue
	ErrUnknownReport = errors.New("unknown report")

	// ErrInvalidParam is returned when a report parameter fails validation
	ErrInvalidParam = errors.New("invalid parameter")
)

// Limits offered by the records pages
var Limits = []int{20, 40, 60, 80, 100}

// Plot types offered for the bowlers-in-a-match report
const (
	PlotBar = "bar"
	PlotPie = "pie"
)

const (
	minYear         = 1900
	maxYear         = 2999
	maxPlayerLength = 100
)

// Params carries the user's dropdown selections. Zero values mean "not chosen";
// a zero Year on a records report means all years.
type Params struct {
	Year    int    `json:"year,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	MatchID int    `json:"match_id,omitempty"`
	Player  string `json:"player,omitempty"`
	Plot    string `json:"plot,omitempty"`
}

// cacheKey identifies the query-relevant part of the params. Plot only
// changes rendering so it is left out.
func (p Params) cacheKey() string {
	return fmt.Sprintf("y=%d|l=%d|m=%d|p=%s", p.Year, p.Limit, p.MatchID, p.Player)
}

// Values encodes the params as query string values
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Year != 0 {
		v.Set("year", strconv.Itoa(p.Year))
	}
	if p.Limit != 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.MatchID != 0 {
		v.Set("match", strconv.Itoa(p.MatchID))
	}
	if p.Player != "" {
		v.Set("player", p.Player)
	}
	if p.Plot != "" {
		v.Set("plot", p.Plot)
	}
	return v
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParam, field, fmt.Sprintf(format, args...))
}

// ParseParams reads and validates the params a report needs from query values.
// Params the report does not use are ignored.
func ParseParams(r *Report, values url.Values, defaultLimit int) (Params, error) {
	var p Params

	if r.needs(paramYear) || r.needs(paramOptionalYear) {
		raw := strings.TrimSpace(values.Get("year"))
		switch {
		case raw == "" || strings.EqualFold(raw, "all"):
			if r.needs(paramYear) {
				return p, invalid("year", "required")
			}
		default:
			year, err := strconv.Atoi(raw)
			if err != nil {
				return p, invalid("year", "%q is not a number", raw)
			}
			p.Year = year
		}
	}

	if r.needs(paramLimit) {
		raw := strings.TrimSpace(values.Get("limit"))
		if raw == "" {
			p.Limit = defaultLimit
		} else {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				return p, invalid("limit", "%q is not a number", raw)
			}
			p.Limit = limit
		}
	}

	if r.needs(paramMatch) {
		raw := strings.TrimSpace(values.Get("match"))
		if raw == "" {
			return p, invalid("match", "required")
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return p, invalid("match", "%q is not a number", raw)
		}
		p.MatchID = id
	}

	if r.needs(paramPlayer) {
		p.Player = strings.TrimSpace(values.Get("player"))
	}

	if r.needs(paramPlot) {
		p.Plot = strings.ToLower(strings.TrimSpace(values.Get("plot")))
		if p.Plot == "" {
			p.Plot = PlotBar
		}
	}

	return p, r.Validate(p)
}

// Validate checks params against the report's requirements before any SQL runs
func (r *Report) Validate(p Params) error {
	if r.needs(paramYear) && p.Year == 0 {
		return invalid("year", "required")
	}
	if (r.needs(paramYear) || r.needs(paramOptionalYear)) && p.Year != 0 {
		if p.Year < minYear || p.Year > maxYear {
			return invalid("year", "%d is out of range", p.Year)
		}
	}
	if r.needs(paramLimit) && !slices.Contains(Limits, p.Limit) {
		return invalid("limit", "%d is not one of %v", p.Limit, Limits)
	}
	if r.needs(paramMatch) && p.MatchID <= 0 {
		return invalid("match", "must be a positive match id")
	}
	if r.needs(paramPlayer) {
		if p.Player == "" {
			return invalid("player", "required")
		}
		if utf8.RuneCountInString(p.Player) > maxPlayerLength {
			return invalid("player", "too long")
		}
	}
	if r.needs(paramPlot) && p.Plot != "" && p.Plot != PlotBar && p.Plot != PlotPie {
		return invalid("plot", "%q is not bar or pie", p.Plot)
	}
	return nil
}
