package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/notehub/internal/auth"
	"github.com/geocoder89/notehub/internal/config"
	"github.com/geocoder89/notehub/internal/db"
	"github.com/geocoder89/notehub/internal/domain/user"
	apphttp "github.com/geocoder89/notehub/internal/http"
	"github.com/geocoder89/notehub/internal/http/handlers"
	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/geocoder89/notehub/internal/repo/memory"
	"github.com/geocoder89/notehub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// testEnv is one running app plus the out-of-band controls a test needs to
// change stored state behind the API's back.
type testEnv struct {
	router     http.Handler
	tokens     *auth.Manager
	deleteUser func(t *testing.T, id int64)
	setRole    func(t *testing.T, id int64, role user.Role)
}

type backend struct {
	name  string
	setup func(t *testing.T) *testEnv
}

func backends() []backend {
	return []backend{
		{name: "memory", setup: setupMemory},
		{name: "postgres", setup: setupPostgres},
	}
}

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		StoreDriver:     config.StoreDriverMemory,
		JWTSecret:       "test-secret-key",
		JWTTTL:          time.Hour,
		LoginRateLimit:  1000,
		LoginRateWindow: time.Minute,
		MaxBodyBytes:    1 << 20,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newRouter(users auth.UserResolver, creds handlers.UserReader, tenants apphttp.TenantStore, notes handlers.NotesStore, tokens *auth.Manager) http.Handler {
	return newRouterWithConfig(testConfig(), users, creds, tenants, notes, tokens)
}

func newRouterWithConfig(cfg config.Config, users auth.UserResolver, creds handlers.UserReader, tenants apphttp.TenantStore, notes handlers.NotesStore, tokens *auth.Manager) http.Handler {
	reg := prometheus.NewRegistry()

	return apphttp.NewRouter(testLogger(), cfg, apphttp.Deps{
		Authenticator: auth.NewAuthenticator(tokens, users),
		Users:         creds,
		Tenants:       tenants,
		Notes:         notes,
		Tokens:        tokens,
		LoginLimiter:  middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		Prom:          observability.NewProm(reg),
		Gatherer:      reg,
	})
}

func setupMemory(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	if err := db.SeedDemo(context.Background(), store); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tokens := auth.NewManager(testConfig().JWTSecret, time.Hour)

	return &testEnv{
		router: newRouter(store.Users(), store.Users(), store.Tenants(), store.Notes(), tokens),
		tokens: tokens,
		deleteUser: func(_ *testing.T, id int64) {
			store.DeleteUser(id)
		},
		setRole: func(_ *testing.T, id int64, role user.Role) {
			store.SetRole(id, role)
		},
	}
}

func setupPostgres(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(dsn, 10)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE notes, users, tenants RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	store := postgres.NewStore(pool, nil)
	if err := db.SeedDemo(ctx, store); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tokens := auth.NewManager(testConfig().JWTSecret, time.Hour)

	return &testEnv{
		router: newRouter(store.Users, store.Users, store.Tenants, store.Notes, tokens),
		tokens: tokens,
		deleteUser: func(t *testing.T, id int64) {
			if _, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
				t.Fatalf("delete user: %v", err)
			}
		},
		setRole: func(t *testing.T, id int64, role user.Role) {
			if _, err := pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, string(role)); err != nil {
				t.Fatalf("set role: %v", err)
			}
		},
	}
}

// function that runs a request with an optional bearer token
func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

type session struct {
	token string
	user  handlers.UserView
}

func login(t *testing.T, env *testEnv, email string) session {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, db.DemoPassword)
	w := doRequest(env.router, http.MethodPost, "/auth", "", body)
	expectStatus(t, w, http.StatusOK)

	var resp handlers.LoginResponse
	mustReadJSON(t, w, &resp)

	return session{token: resp.Token, user: resp.User}
}
