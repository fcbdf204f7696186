package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"docket.org/internal/audit"
	"docket.org/internal/auth"
	"docket.org/internal/obs"
	"docket.org/internal/registry"
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the registry and user services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	users    *auth.Service
	resolver *auth.Resolver
	letters  *registry.Service
	recorder *audit.Recorder

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, users *auth.Service, resolver *auth.Resolver, letters *registry.Service, recorder *audit.Recorder) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		users:      users,
		resolver:   resolver,
		letters:    letters,
		recorder:   recorder,
		rateBurst:  50,
		ratePerSec: 25,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)

	a.mux.HandleFunc("/v1/letters", a.handleLetters)
	a.mux.HandleFunc("/v1/letters/next-ref", a.handleNextRef)
	a.mux.HandleFunc("/v1/letters/", a.handleLetterResource)

	a.mux.HandleFunc("/v1/users/search", a.handleUserSearch)

	a.mux.HandleFunc("/v1/admin/create-user", a.handleCreateUser)
	a.mux.HandleFunc("/v1/admin/delete-user", a.handleDeleteUser)
	a.mux.HandleFunc("/v1/admin/set-role", a.handleSetRole)
	a.mux.HandleFunc("/v1/admin/update-email", a.handleUpdateEmail)
	a.mux.HandleFunc("/v1/admin/audit", a.handleAdminAudit)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, maxUploadBytes)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = RequestID(h)
	return obs.Instrument(h)
}

// maxUploadBytes bounds multipart scan uploads; JSON bodies are capped
// tighter inside decodeJSON.
const maxUploadBytes = 32 << 20

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "docket-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "docket-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
