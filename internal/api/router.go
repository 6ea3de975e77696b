// Package api serves EDR collections over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sqledr/internal/edr"
	"sqledr/internal/logger"
)

// Provider is the EDR capability a collection is served through.
type Provider interface {
	Locations(ctx context.Context, q edr.Query) (any, error)
	Fields(ctx context.Context) (map[string]edr.FieldMeta, error)
}

// Collection is one served collection.
type Collection struct {
	ID          string
	Title       string
	Description string
	Provider    Provider
}

type Handler struct {
	collections []Collection
	byID        map[string]Collection
}

// NewRouter serves collections in the order given.
func NewRouter(collections []Collection) http.Handler {
	h := &Handler{
		collections: collections,
		byID:        make(map[string]Collection, len(collections)),
	}
	for _, c := range collections {
		h.byID[c.ID] = c
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", h.handleListCollections)
		r.Route("/{collectionId}", func(r chi.Router) {
			r.Get("/", h.handleGetCollection)
			r.Get("/locations", h.handleLocations)
			r.Get("/locations/{locationId}", h.handleLocations)
		})
	})
	return r
}

type collectionResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	ParameterNames any      `json:"parameter_names,omitempty"`
	DataQueries    []string `json:"data_queries"`
}

func (h *Handler) handleListCollections(w http.ResponseWriter, r *http.Request) {
	out := make([]collectionResponse, 0, len(h.collections))
	for _, c := range h.collections {
		out = append(out, collectionResponse{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			DataQueries: []string{"locations"},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

func (h *Handler) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	fields, err := c.Provider.Fields(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		ParameterNames: parameterNames(fields),
		DataQueries:    []string{"locations"},
	})
}

type parameterName struct {
	ID string `json:"id"`
	edr.FieldMeta
}

func parameterNames(fields map[string]edr.FieldMeta) []parameterName {
	out := make([]parameterName, 0, len(fields))
	for id, meta := range fields {
		out = append(out, parameterName{ID: id, FieldMeta: meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	c, ok := h.collection(w, r)
	if !ok {
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q.LocationID = chi.URLParam(r, "locationId")

	out, err := c.Provider.Locations(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (Collection, bool) {
	id := chi.URLParam(r, "collectionId")
	c, ok := h.byID[id]
	if !ok {
		writeError(w, r, edr.ErrNotFound("collection %s not found", id))
	}
	return c, ok
}

// parseQuery reads bbox, datetime, parameter-name and limit. An absent
// limit leaves the provider default in place; an explicit one must be
// positive.
func parseQuery(r *http.Request) (edr.Query, error) {
	values := r.URL.Query()
	q := edr.Query{Datetime: values.Get("datetime")}

	if s := values.Get("bbox"); s != "" {
		for _, part := range strings.Split(s, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return q, edr.ErrValidation("invalid bbox %q", s)
			}
			q.BBox = append(q.BBox, f)
		}
	}
	if s := values.Get("parameter-name"); s != "" {
		q.Parameters = strings.Split(s, ",")
	}
	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, edr.ErrValidation("invalid limit %q", s)
		}
		if n <= 0 {
			return q, edr.ErrValidation("limit must be positive, got %d", n)
		}
		q.Limit = n
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps provider errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr  *edr.ValidationError
		nfErr   *edr.NotFoundError
		connErr *edr.ConnectionError
	)
	status, code := http.StatusInternalServerError, "InternalServerError"
	switch {
	case errors.As(err, &valErr):
		status, code = http.StatusBadRequest, "InvalidParameterValue"
	case errors.As(err, &nfErr):
		status, code = http.StatusNotFound, "NotFound"
	case errors.As(err, &connErr):
		status, code = http.StatusServiceUnavailable, "ServiceUnavailable"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]string{"code": code, "description": err.Error()})
}
