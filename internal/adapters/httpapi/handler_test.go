package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pantry/internal/adapters/httpapi"
	"pantry/internal/core"
	"pantry/pkg/domain"
)

type outcomeResponse struct {
	Change     domain.Change      `json:"change"`
	View       domain.View        `json:"view"`
	Error      string             `json:"error"`
	Violations []domain.Violation `json:"violations"`
}

func setupHandler(t *testing.T) (*core.Service, http.Handler) {
	t.Helper()
	svc := core.NewInMemoryService()
	h := httpapi.NewHandler(svc, domain.FormDefaults{Unit: domain.UnitGram, Category: domain.CategoryFruit})
	return svc, httpapi.NewMux(h, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, outcomeResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	var out outcomeResponse
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, resp.Body.String())
		}
	}
	return resp, out
}

func TestAddMergeAndList(t *testing.T) {
	_, h := setupHandler(t)

	resp, out := do(t, h, http.MethodPost, "/api/v1/pantry/items", `{"name":"apple","quantity":2,"weight":1.0,"unit":"kg","category":"Fruit"}`)
	if resp.Code != http.StatusCreated || out.Change.Action != domain.ActionCreate {
		t.Fatalf("unexpected add response %d %+v", resp.Code, out)
	}
	resp, out = do(t, h, http.MethodPost, "/api/v1/pantry/items", `{"name":"apple","quantity":3,"weight":2.0,"unit":"kg","category":"Fruit"}`)
	if resp.Code != http.StatusOK || out.Change.After == nil || out.Change.After.Quantity != 5 {
		t.Fatalf("unexpected merge response %d %+v", resp.Code, out)
	}
	if w := out.Change.After.Weight; w < 1.6-1e-9 || w > 1.6+1e-9 {
		t.Fatalf("expected weight 1.6, got %v", w)
	}
	do(t, h, http.MethodPost, "/api/v1/pantry/items", `{"name":"kale","quantity":2,"weight":0.5,"unit":"kg","category":"Vegetable"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pantry?search=APP&min_quantity=1&max_weight=2", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var view domain.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Groups) != 1 || view.Groups[0].Category != domain.CategoryFruit || view.Groups[0].Items[0].Name != "apple" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestAddAppliesFormDefaults(t *testing.T) {
	svc, h := setupHandler(t)
	resp, _ := do(t, h, http.MethodPost, "/api/v1/pantry/items", `{"name":"fig","quantity":1,"weight":40}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	fig, ok, err := svc.Get(context.Background(), "fig")
	if err != nil || !ok || fig.Unit != domain.UnitGram || fig.Category != domain.CategoryFruit {
		t.Fatalf("expected defaults applied, got %+v %v %v", fig, ok, err)
	}
}

func TestUpdateRemoveAndGet(t *testing.T) {
	_, h := setupHandler(t)
	do(t, h, http.MethodPost, "/api/v1/pantry/items", `{"name":"goat cheese","quantity":2,"weight":0.2,"unit":"kg","category":"Dairy"}`)

	resp, out := do(t, h, http.MethodPut, "/api/v1/pantry/items/goat%20cheese", `{"quantity":3,"weight":0.25,"unit":"kg","category":"Dairy"}`)
	if resp.Code != http.StatusOK || out.Change.Action != domain.ActionUpdate || out.Change.After.Quantity != 3 {
		t.Fatalf("unexpected update %d %+v", resp.Code, out)
	}
	resp, out = do(t, h, http.MethodPut, "/api/v1/pantry/items/ghost", `{"quantity":3,"weight":0.25}`)
	if resp.Code != http.StatusOK || out.Change.Action != domain.ActionNone {
		t.Fatalf("update of missing item must be a no-op, got %d %+v", resp.Code, out)
	}
	resp, _ = do(t, h, http.MethodPut, "/api/v1/pantry/items/goat%20cheese", `{"name":"brie","quantity":3,"weight":0.25}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected rename rejection, got %d", resp.Code)
	}

	resp, out = do(t, h, http.MethodDelete, "/api/v1/pantry/items/goat%20cheese", "")
	if resp.Code != http.StatusOK || out.Change.After.Quantity != 2 {
		t.Fatalf("unexpected remove %d %+v", resp.Code, out)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pantry/items/goat%20cheese", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var got struct {
		Item domain.Item `json:"item"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("get: %d %v", rec.Code, err)
	}
	if got.Item.Name != "goat cheese" || got.Item.Quantity != 2 || got.Item.Weight != 0.25 {
		t.Fatalf("unexpected item %+v", got.Item)
	}

	resp, _ = do(t, h, http.MethodGet, "/api/v1/pantry/items/ghost", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing item, got %d", resp.Code)
	}
	resp, out = do(t, h, http.MethodDelete, "/api/v1/pantry/items/ghost", "")
	if resp.Code != http.StatusOK || out.Change.Action != domain.ActionNone {
		t.Fatalf("remove of missing item must be a no-op, got %d %+v", resp.Code, out)
	}
}

func TestBadRequests(t *testing.T) {
	_, h := setupHandler(t)
	cases := []struct {
		method, target, body string
		status               int
	}{
		{http.MethodPost, "/api/v1/pantry/items", `{"name":"a","quantity":0,"weight":1}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/pantry/items", `{"name":"a","quantity":1,"weight":-1}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/pantry/items", `{"name":"a","quantity":1,"weight":1,"unit":"lb"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/pantry/items", `{"name":"a","quantity":1.5,"weight":1}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/pantry/items", `{"name":"a","colour":"red"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/pantry/items", `not json`, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/pantry?min_quantity=many", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/pantry?max_weight=heavy", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/pantry/items", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/pantry", "", http.StatusMethodNotAllowed},
		{http.MethodPatch, "/api/v1/pantry/items/a", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/pantry/other", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		resp, out := do(t, h, tc.method, tc.target, tc.body)
		if resp.Code != tc.status {
			t.Fatalf("%s %s %s: expected %d, got %d (%s)", tc.method, tc.target, tc.body, tc.status, resp.Code, resp.Body.String())
		}
		if out.Error == "" {
			t.Fatalf("%s %s: expected error body", tc.method, tc.target)
		}
	}

	_, out := do(t, h, http.MethodPost, "/api/v1/pantry/items", `{"name":"","quantity":0,"weight":1,"unit":"kg","category":"Fruit"}`)
	if len(out.Violations) != 2 {
		t.Fatalf("expected name and quantity violations, got %+v", out.Violations)
	}
}

type failingPantry struct{ err error }

func (f failingPantry) Add(context.Context, domain.Item) (core.Outcome, error) {
	return core.Outcome{}, f.err
}
func (f failingPantry) Update(context.Context, domain.Item) (core.Outcome, error) {
	return core.Outcome{}, f.err
}
func (f failingPantry) Remove(context.Context, string) (core.Outcome, error) {
	return core.Outcome{}, f.err
}
func (f failingPantry) List(context.Context, domain.Criteria) (domain.View, error) {
	return domain.View{}, f.err
}
func (f failingPantry) Get(context.Context, string) (domain.Item, bool, error) {
	return domain.Item{}, false, f.err
}

func TestErrorStatusMapping(t *testing.T) {
	cases := map[error]int{
		domain.ErrStoreUnavailable: http.StatusServiceUnavailable,
		domain.ErrInvalidState:     http.StatusInternalServerError,
		errors.New("other"):        http.StatusInternalServerError,
	}
	for cause, status := range cases {
		h := httpapi.NewHandler(failingPantry{err: cause}, domain.DefaultFormDefaults())
		for _, target := range []string{"/api/v1/pantry", "/api/v1/pantry/items/a"} {
			resp, _ := do(t, h, http.MethodGet, target, "")
			if resp.Code != status {
				t.Fatalf("%v on %s: expected %d, got %d", cause, target, status, resp.Code)
			}
		}
		resp, _ := do(t, h, http.MethodDelete, "/api/v1/pantry/items/a", "")
		if resp.Code != status {
			t.Fatalf("%v on delete: expected %d, got %d", cause, status, resp.Code)
		}
	}

	var nilHandler httpapi.Handler
	resp, _ := do(t, &nilHandler, http.MethodGet, "/api/v1/pantry", "")
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without service, got %d", resp.Code)
	}
}

func TestMuxMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	svc := core.NewInMemoryService(core.WithMetricsRecorder(rec))
	mux := httpapi.NewMux(httpapi.NewHandler(svc, domain.DefaultFormDefaults()), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	body := bytes.NewBufferString(`{"name":"kale","quantity":1,"weight":0.2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pantry/items", body)
	mux.ServeHTTP(httptest.NewRecorder(), req)

	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `pantry_operations_total{operation="add",status="success"} 1`) {
		t.Fatalf("unexpected metrics output %d:\n%s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
}

func TestMuxWithoutMetrics(t *testing.T) {
	_, h := setupHandler(t)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected no /metrics route, got %d", resp.Code)
	}
}
