package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRoutePatternUsesChiPattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/compras/{id}", func(w http.ResponseWriter, req *http.Request) {
		got = RoutePattern(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/compras/123", nil))

	if got != "/compras/{id}" {
		t.Fatalf("RoutePattern=%q, want /compras/{id}", got)
	}
}

func TestRoutePatternWithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := RoutePattern(req); got != "unmatched" {
		t.Fatalf("RoutePattern=%q, want unmatched", got)
	}
}

func TestInstrumentPassesThrough(t *testing.T) {
	Init()
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rec.Code)
	}
}
