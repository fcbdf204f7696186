package httpapi

import (
	"net/http"

	"docket.org/internal/auth"
)

func (a *API) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.users == nil {
		writeError(w, r, http.StatusServiceUnavailable, "auth service unavailable")
		return
	}
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	profiles, err := a.users.SearchProfiles(r.Context(), actor, r.URL.Query().Get("q"))
	if err != nil {
		handleUserError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []auth.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"count":    len(profiles),
	})
}
