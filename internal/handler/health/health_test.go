package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/curry-conqueror/NSTEM-Final/internal/handler/health"
)

type storeChecker struct {
	kind string
	err  error
}

func (s storeChecker) Check(_ context.Context) error { return s.err }
func (s storeChecker) Kind() string                  { return s.kind }

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
		wantKind   string
	}{
		{
			name: "local store healthy",
			checks: map[string]health.Checker{
				"store": storeChecker{kind: "local"},
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"store": "ok"},
			wantKind:   "local",
		},
		{
			name: "remote store down",
			checks: map[string]health.Checker{
				"store": storeChecker{kind: "remote", err: errors.New("refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"store": "error"},
			wantKind:   "remote",
		},
		{
			name: "plain check func",
			checks: map[string]health.Checker{
				"store": storeChecker{kind: "local"},
				"disk":  health.CheckFunc(func(context.Context) error { return errors.New("full") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"store": "ok", "disk": "error"},
			wantKind:   "local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(slog.Default(), tt.checks)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]struct{ Status, Kind string }
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}

			for name, want := range tt.wantBody {
				if got := body[name].Status; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
			if got := body["store"].Kind; got != tt.wantKind {
				t.Errorf("store kind = %q, want %q", got, tt.wantKind)
			}
		})
	}
}
