package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"dirnet/pkg/directory"
	"dirnet/pkg/keys"
	"dirnet/pkg/types"
)

// DirectoryHandler serves the service discovery API on top of a
// Directory instance.
type DirectoryHandler struct {
	dir  *directory.Directory
	keys *keys.Keypair // used to sign deletions requested over HTTP
	log  *zap.Logger
}

// NewDirectoryHandler wires the directory API routes.
func NewDirectoryHandler(dir *directory.Directory, kp *keys.Keypair, log *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{dir: dir, keys: kp, log: log}
}

func (h *DirectoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/services", h.listServices)
	r.Get("/api/v1/services/{owner}/{name}", h.getService)
	r.Post("/api/v1/services", h.publishService)
	r.Delete("/api/v1/services/{id}", h.removeService)
}

// listServices handles GET /api/v1/services.
//
// Query parameters: cap, t and k repeat for capability/hashtag/request-kind
// constraints (applied relay-side); max_price and min_trust are applied
// locally; trust=1 attaches scores without imposing a floor.
func (h *DirectoryHandler) listServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	find := directory.FindQuery{
		Capabilities: q["cap"],
		Hashtags:     q["t"],
		RequestKinds: q["k"],
		Scored:       q.Get("trust") == "1",
	}
	if v := q.Get("max_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_price")
			return
		}
		find.MaxPrice = p
	}
	if v := q.Get("min_trust"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_trust")
			return
		}
		find.MinTrust = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		find.Limit = n
	}

	services := h.dir.FindServices(r.Context(), find)
	writeJSON(w, http.StatusOK, services)
}

// getService handles GET /api/v1/services/{owner}/{name}.
func (h *DirectoryHandler) getService(w http.ResponseWriter, r *http.Request) {
	owner := types.OwnerID(chi.URLParam(r, "owner"))
	name := chi.URLParam(r, "name")

	svc := h.dir.GetService(r.Context(), owner, name)
	if svc == nil {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// publishService handles POST /api/v1/services. The body is a complete,
// pre-signed listing record; the gateway never signs on behalf of callers.
func (h *DirectoryHandler) publishService(w http.ResponseWriter, r *http.Request) {
	var rec types.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid record body")
		return
	}

	outcome, err := h.dir.PublishRecord(r.Context(), &rec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusOK
	if outcome.AllFailed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, outcome)
}

// removeService handles DELETE /api/v1/services/{id}. The deletion record
// is signed with the gateway's own key, so only listings owned by the
// gateway identity are effectively removable.
func (h *DirectoryHandler) removeService(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil {
		writeError(w, http.StatusForbidden, "gateway has no signing key")
		return
	}
	id := types.RecordID(chi.URLParam(r, "id"))

	outcome, err := h.dir.RemoveService(r.Context(), id, h.keys.Private)
	if err != nil {
		h.log.Error("failed to publish deletion", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to publish deletion")
		return
	}
	status := http.StatusOK
	if outcome.AllFailed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
