// Package httpapi exposes the pantry service over JSON HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pantry/internal/core"
	"pantry/pkg/domain"
)

const (
	listPath  = "/api/v1/pantry"
	itemsPath = "/api/v1/pantry/items"
)

// Pantry is the service surface the handler drives.
type Pantry interface {
	Add(ctx context.Context, item domain.Item) (core.Outcome, error)
	Update(ctx context.Context, item domain.Item) (core.Outcome, error)
	Remove(ctx context.Context, name string) (core.Outcome, error)
	List(ctx context.Context, c domain.Criteria) (domain.View, error)
	Get(ctx context.Context, name string) (domain.Item, bool, error)
}

// Handler serves the pantry API under /api/v1/pantry.
type Handler struct {
	Pantry   Pantry
	Defaults domain.FormDefaults
}

// NewHandler constructs a pantry HTTP handler. Defaults fill a missing unit or
// category on add and update requests.
func NewHandler(p Pantry, defaults domain.FormDefaults) *Handler {
	return &Handler{Pantry: p, Defaults: defaults}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Pantry == nil {
		writeError(w, http.StatusInternalServerError, "pantry service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.EscapedPath(), "/")
	switch {
	case path == listPath:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleList(w, r)
	case path == itemsPath:
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleAdd(w, r)
	case strings.HasPrefix(path, itemsPath+"/"):
		name, err := url.PathUnescape(strings.TrimPrefix(path, itemsPath+"/"))
		if err != nil || name == "" {
			writeError(w, http.StatusBadRequest, "invalid item name")
			return
		}
		h.handleItem(w, r, name)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request, name string) {
	switch r.Method {
	case http.MethodGet:
		item, ok, err := h.Pantry.Get(r.Context(), name)
		if err != nil {
			writeServiceError(w, err, domain.Result{})
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("item %q not found", name))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodPut:
		item, err := h.decodeItem(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if item.Name != "" && item.Name != name {
			writeError(w, http.StatusBadRequest, "item name cannot be changed")
			return
		}
		item.Name = name
		out, err := h.Pantry.Update(r.Context(), item)
		if err != nil {
			writeServiceError(w, err, out.Result)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodDelete:
		out, err := h.Pantry.Remove(r.Context(), name)
		if err != nil {
			writeServiceError(w, err, out.Result)
			return
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	item, err := h.decodeItem(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.Pantry.Add(r.Context(), item)
	if err != nil {
		writeServiceError(w, err, out.Result)
		return
	}
	status := http.StatusOK
	if out.Change.Action == domain.ActionCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := h.Pantry.List(r.Context(), criteria)
	if err != nil {
		writeServiceError(w, err, domain.Result{})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) decodeItem(r *http.Request) (domain.Item, error) {
	var item domain.Item
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&item); err != nil {
		return domain.Item{}, fmt.Errorf("invalid request body: %w", err)
	}
	return h.Defaults.Apply(item), nil
}

func parseCriteria(q url.Values) (domain.Criteria, error) {
	c := domain.Criteria{Search: q.Get("search")}
	if raw := q.Get("min_quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Criteria{}, fmt.Errorf("min_quantity must be an integer")
		}
		c.MinQuantity = n
	}
	if raw := q.Get("max_weight"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) {
			return domain.Criteria{}, fmt.Errorf("max_weight must be a number")
		}
		c.MaxWeight = domain.WeightBound(f)
	}
	return c, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error, res domain.Result) {
	payload := map[string]any{"error": err.Error()}
	if len(res.Violations) > 0 {
		payload["violations"] = res.Violations
	}
	writeJSON(w, statusFor(err), payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
