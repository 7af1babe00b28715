package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abcxyz/pkg/renderer"
	"github.com/gorilla/mux"

	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/registry"
)

// Handler is the registry's HTTP front end, grounded on the teacher's
// pkg/handler/npm.Handler (mux route table, mux.Vars extraction,
// errors.Is-based status mapping) fronting *registry.Registry instead of
// an OCI-backed Registry type. Responses are rendered with the teacher's
// abcxyz/pkg/renderer rather than a hand-rolled encoding/json wrapper.
type Handler struct {
	reg      *registry.Registry
	renderer *renderer.Renderer
}

// NewHandler returns a Handler fronting reg. No template filesystem is
// needed: this API is JSON/plain-text only, unlike the teacher's
// python.Handler which also renders an HTML index.
func NewHandler(reg *registry.Registry) (*Handler, error) {
	r, err := renderer.New(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return &Handler{reg: reg, renderer: r}, nil
}

// Mux builds the route table (spec §6 "Mirror wire contract" plus
// SPEC_FULL.md §4.H's package-view/query/mutation routes).
func (h *Handler) Mux() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/packages/index.json", h.indexHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/packages/search", h.searchHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/packages/dump", h.dumpHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/packages", h.addPackageHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/packages/{name}", h.packageInfoHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/packages/{name}", h.removePackageHandler).Methods(http.MethodDelete)
	r.HandleFunc("/api/packages/{name}/update", h.updateHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/packages/{name}/{version}/readme", h.readmeHandler).Methods(http.MethodGet)

	return r
}

// indexHandler is the mirror wire contract's liveness probe and package
// name listing (spec §6).
func (h *Handler) indexHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	pkgs, err := h.reg.GetPackages(req.Context(), "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	names := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		names = append(names, p.Name)
	}
	h.renderer.RenderJSON(w, http.StatusOK, names)
}

// searchHandler is the mirror wire contract's second liveness probe, and
// a pass-through to SearchPackages for GET (spec §4.F, §6).
func (h *Handler) searchHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	results, err := h.reg.SearchPackages(req.Context(), req.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderer.RenderJSON(w, http.StatusOK, results)
}

// dumpHandler serves the mirror wire contract's authoritative dump
// (spec §6 "api/packages/dump").
func (h *Handler) dumpHandler(w http.ResponseWriter, req *http.Request) {
	dump, err := h.reg.GetPackageDump(req.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderer.RenderJSON(w, http.StatusOK, dump)
}

// packageInfoHandler returns the rendered package view (spec §4.F).
// ?errors=1 requests the uncached, errors-included rendering.
func (h *Handler) packageInfoHandler(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	includeErrors := req.URL.Query().Get("errors") != ""

	view, err := h.reg.GetPackageInfo(req.Context(), name, includeErrors)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderer.RenderJSON(w, http.StatusOK, view)
}

// readmeHandler inlines the README content recorded for name@version, if
// any (spec §4.F).
func (h *Handler) readmeHandler(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	name, version := vars["name"], vars["version"]

	view, err := h.reg.GetPackageInfo(req.Context(), name, false)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, v := range view.Versions {
		if vs, _ := v["version"].(string); vs != version {
			continue
		}
		readme, ok := v["readme"].(string)
		if !ok {
			http.Error(w, "no readme recorded for this version", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, readme)
		return
	}
	http.Error(w, "version not found", http.StatusNotFound)
}

// updateHandler triggers a reconciliation (spec §4.E/§4.F
// triggerPackageUpdate).
func (h *Handler) updateHandler(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	if err := h.reg.TriggerPackageUpdate(req.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// addPackageHandler onboards a new package from a repository descriptor
// in the request body (spec §4.C/§4.F addPackage).
func (h *Handler) addPackageHandler(w http.ResponseWriter, req *http.Request) {
	descriptor, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	user, _ := auth.UserFromContext(req.Context())
	name, err := h.reg.AddPackage(req.Context(), descriptor, user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.renderer.RenderJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// removePackageHandler deletes a package (spec §4.F removePackage).
func (h *Handler) removePackageHandler(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	user, _ := auth.UserFromContext(req.Context())
	if err := h.reg.RemovePackage(req.Context(), name, user); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps a facade error to an HTTP status, mirroring the
// teacher's errors.IsOCINotFound-based dispatch in pkg/handler/npm.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrForbidden):
		status = http.StatusForbidden
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	}
	h.renderer.RenderJSON(w, status, map[string]string{"error": err.Error()})
}
