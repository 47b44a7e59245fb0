package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/config"
	"github.com/Skufu/heartrisk/internal/handlers"
	"github.com/Skufu/heartrisk/internal/middleware"
	"github.com/Skufu/heartrisk/internal/table"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

type fakeClassifier struct{}

func (fakeClassifier) Predict(_ context.Context, t *table.Table) ([]classifier.Label, error) {
	return make([]classifier.Label, t.Len()), nil
}

func (fakeClassifier) Name() string { return "fake" }

func newTestRouter(t *testing.T, db HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	staticRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(staticRoot, "index.html"), []byte("<h1>Heart Risk</h1>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}

	cfg := &config.Config{MaxUploadBytes: 1 << 20, CORSOrigins: []string{"*"}}
	logger, _ := test.NewNullLogger()
	api := handlers.New(fakeClassifier{}, logger)
	return setupRouter(cfg, logger, db, api, staticRoot)
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, fakeDB{})

	w := get(router, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if w.Header().Get(middleware.CorrelationHeader) == "" {
		t.Fatal("expected correlation id header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}
}

func TestRouterReadyz(t *testing.T) {
	tests := []struct {
		name     string
		db       HealthChecker
		wantCode int
		wantDB   string
	}{
		{"db disabled", nil, http.StatusOK, `"db":"disabled"`},
		{"db ok", fakeDB{}, http.StatusOK, `"db":"ok"`},
		{"db down", fakeDB{err: errors.New("connection refused")}, http.StatusServiceUnavailable, `"db":"unhealthy: connection refused"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newTestRouter(t, tt.db), "/readyz")
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			body := w.Body.String()
			if !strings.Contains(body, tt.wantDB) {
				t.Fatalf("expected %s in body, got %s", tt.wantDB, body)
			}
			if !strings.Contains(body, `"model":"fake"`) {
				t.Fatalf("expected model name in body, got %s", body)
			}
		})
	}
}

func TestRouterServesForm(t *testing.T) {
	router := newTestRouter(t, nil)

	w := get(router, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Heart Risk") {
		t.Fatalf("expected index page, got %d: %s", w.Code, w.Body.String())
	}

	w = get(router, "/static/index.html")
	if w.Code != http.StatusOK && w.Code != http.StatusMovedPermanently {
		t.Fatalf("expected static file, got %d", w.Code)
	}
}

func TestRouterRegistersAPI(t *testing.T) {
	router := newTestRouter(t, nil)

	w := get(router, "/api/options")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/options, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(`{"age": 63}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete form, got %d", w.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("OPTIONS", "/api/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected allow origin header")
	}
}

func TestDetectStaticRoot(t *testing.T) {
	if got := detectStaticRoot("/srv/web"); got != "/srv/web" {
		t.Fatalf("configured root should win, got %s", got)
	}

	dir := t.TempDir()
	web := filepath.Join(dir, "web")
	if err := os.MkdirAll(web, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(web, "index.html"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "cmd", "server")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, _ := filepath.EvalSymlinks(detectStaticRoot(""))
	want, _ := filepath.EvalSymlinks(web)
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
