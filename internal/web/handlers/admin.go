package handlers

import (
	"net/http"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/ipldash/internal/database"
	"github.com/saltyorg/ipldash/internal/maintenance"
	"github.com/saltyorg/ipldash/internal/stats"
)

type setting struct {
	Key   string
	Value string
}

type adminPage struct {
	Users       *stats.Table
	Connection  database.ConnectionInfo
	Jobs        []maintenance.JobStatus
	Settings    []setting
	General     GeneralSettings
	CachedItems int
}

// AdminPage lists registered users and facts about the running instance
func (h *Handlers) AdminPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.statsService.Run(r.Context(), "all-users", stats.Params{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		h.errorPage(w, r, http.StatusInternalServerError, "Unable to load the user list right now.")
		return
	}

	page := adminPage{
		Users:       users,
		Connection:  h.db.Describe(),
		General:     h.generalSettings(),
		CachedItems: h.statsService.Cache().Len(),
	}
	if h.maintenanceMgr != nil {
		page.Jobs = h.maintenanceMgr.Status()
	}

	all, err := h.db.GetAllSettings()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load settings")
	}
	for k, v := range all {
		page.Settings = append(page.Settings, setting{Key: k, Value: v})
	}
	sort.Slice(page.Settings, func(i, j int) bool { return page.Settings[i].Key < page.Settings[j].Key })

	h.render(w, r, "admin.html", page)
}

// AdminClearCache drops every cached report result
func (h *Handlers) AdminClearCache(w http.ResponseWriter, r *http.Request) {
	h.statsService.Cache().Clear()
	log.Info().Msg("Report cache cleared")
	h.flash(w, "Report cache cleared.")
	h.redirect(w, r, "/admin")
}
