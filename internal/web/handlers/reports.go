package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/charts"
	"github.com/saltyorg/ipldash/internal/stats"
)

const reportFailed = "Unable to load this report right now. Please try again later."

// reportPage is the data behind report.html
type reportPage struct {
	Report     *stats.Report
	FormAction string
	Params     stats.Params
	Years      []int
	Matches    []int
	Players    []string
	Limits     []int
	Table      *stats.Table
	ChartURL   template.URL
	Legend     []charts.LegendEntry
	NoData     bool
	Error      string
}

// SelectedYear is the year dropdown value, "all" for All Years
func (p reportPage) SelectedYear() string {
	if p.Params.Year == 0 {
		return "all"
	}
	return strconv.Itoa(p.Params.Year)
}

// Dashboard renders the report menu
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard.html", nil)
}

// RecordsPage renders the batting or bowling records table
func (h *Handlers) RecordsPage(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	report, ok := stats.RecordsReport(kind)
	if !ok {
		h.errorPage(w, r, http.StatusNotFound, "Page not found.")
		return
	}
	h.reportPage(w, r, report, "/records/"+kind)
}

// ReportPage renders a catalogue report with its selection form, table and chart
func (h *Handlers) ReportPage(w http.ResponseWriter, r *http.Request) {
	report, ok := stats.Lookup(chi.URLParam(r, "id"))
	if !ok || report.AdminOnly {
		h.errorPage(w, r, http.StatusNotFound, "Page not found.")
		return
	}
	h.reportPage(w, r, report, "/reports/"+report.ID)
}

func (h *Handlers) reportPage(w http.ResponseWriter, r *http.Request, report *stats.Report, action string) {
	ctx := r.Context()
	page := reportPage{
		Report:     report,
		FormAction: action,
		Limits:     stats.Limits,
	}

	if err := h.loadChoices(ctx, &page); err != nil {
		log.Error().Err(err).Str("report", report.ID).Msg("Failed to load report choices")
		h.errorPage(w, r, http.StatusInternalServerError, reportFailed)
		return
	}

	values := h.withDefaults(report, r.URL.Query(), page)
	params, err := stats.ParseParams(report, values, h.defaultLimit())
	if err != nil {
		page.Error = invalidSelection(err)
		h.renderStatus(w, r, http.StatusBadRequest, "report.html", page)
		return
	}
	page.Params = params

	table, err := h.statsService.Run(ctx, report.ID, params)
	if err != nil {
		status, message := reportError(err)
		page.Error = message
		h.renderStatus(w, r, status, "report.html", page)
		return
	}
	page.Table = table
	page.NoData = table.Empty()

	if report.Chart != nil && !table.Empty() {
		fig, err := charts.ForReport(report, table, params.Plot)
		switch {
		case errors.Is(err, charts.ErrNoData):
			page.NoData = true
		case err != nil:
			log.Error().Err(err).Str("report", report.ID).Msg("Failed to render chart")
		default:
			page.Legend = fig.Legend
			// params.Values() only holds validated values, encoded by url.Values
			src := "/charts/" + report.ID + ".svg"
			if q := params.Values().Encode(); q != "" {
				src += "?" + q
			}
			page.ChartURL = template.URL(src)
		}
	}

	h.render(w, r, "report.html", page)
}

// ChartSVG renders the chart of a report as an SVG image
func (h *Handlers) ChartSVG(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(chi.URLParam(r, "id"), ".svg")
	report, ok := stats.Lookup(id)
	if !ok || report.AdminOnly || report.Chart == nil {
		http.NotFound(w, r)
		return
	}

	params, err := stats.ParseParams(report, r.URL.Query(), h.defaultLimit())
	if err != nil {
		http.Error(w, invalidSelection(err), http.StatusBadRequest)
		return
	}

	table, err := h.statsService.Run(r.Context(), report.ID, params)
	if err != nil {
		status, message := reportError(err)
		http.Error(w, message, status)
		return
	}

	fig, err := charts.ForReport(report, table, params.Plot)
	if errors.Is(err, charts.ErrNoData) {
		http.Error(w, "No data found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("report", report.ID).Msg("Failed to render chart")
		http.Error(w, reportFailed, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(fig.SVG)
}

// loadChoices fills the dropdown options the report needs
func (h *Handlers) loadChoices(ctx context.Context, page *reportPage) error {
	var err error
	report := page.Report
	if report.NeedsYear() || report.OptionalYear() {
		if page.Years, err = h.statsService.Years(ctx); err != nil {
			return err
		}
	}
	if report.NeedsMatch() {
		if page.Matches, err = h.statsService.MatchIDs(ctx, report.MatchSource()); err != nil {
			return err
		}
	}
	if report.NeedsPlayer() {
		if page.Players, err = h.statsService.BattingPlayerNames(ctx); err != nil {
			return err
		}
	}
	return nil
}

// withDefaults preselects the first option of every dropdown the user has
// not chosen yet, the same way a fresh select box shows its first entry.
func (h *Handlers) withDefaults(report *stats.Report, query url.Values, page reportPage) url.Values {
	values := url.Values{}
	for k, v := range query {
		values[k] = v
	}
	if report.NeedsYear() && values.Get("year") == "" && len(page.Years) > 0 {
		values.Set("year", strconv.Itoa(page.Years[len(page.Years)-1]))
	}
	if report.NeedsMatch() && values.Get("match") == "" && len(page.Matches) > 0 {
		values.Set("match", strconv.Itoa(page.Matches[0]))
	}
	if report.NeedsPlayer() && values.Get("player") == "" && len(page.Players) > 0 {
		values.Set("player", page.Players[0])
	}
	return values
}

func (h *Handlers) defaultLimit() int {
	return h.settings.Int("records.default_limit", stats.Limits[0])
}

func invalidSelection(err error) string {
	return "Invalid selection: " + strings.TrimPrefix(err.Error(), stats.ErrInvalidParam.Error()+": ")
}

// reportError maps a report failure onto a status and a message safe to show
func reportError(err error) (int, string) {
	switch {
	case errors.Is(err, stats.ErrInvalidParam):
		return http.StatusBadRequest, invalidSelection(err)
	case errors.Is(err, stats.ErrUnknownReport):
		return http.StatusNotFound, "Report not found."
	default:
		return http.StatusInternalServerError, reportFailed
	}
}
