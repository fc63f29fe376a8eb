package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/trackwatch/internal/authmw"
	tc "github.com/linnemanlabs/trackwatch/internal/cfg"
	"github.com/linnemanlabs/trackwatch/internal/incident"
)

func TestNotifySystemd_NoSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	err := notifySystemd()
	if err == nil {
		t.Fatal("expected error when NOTIFY_SOCKET is empty")
	}
	if !strings.Contains(err.Error(), "NOTIFY_SOCKET not set") {
		t.Errorf("error = %q, want substring %q", err, "NOTIFY_SOCKET not set")
	}
}

func TestNotifySystemd_InvalidPath(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "nonexistent.sock"))

	err := notifySystemd()
	if err == nil {
		t.Fatal("expected error for nonexistent socket")
	}
	if !strings.Contains(err.Error(), "dial failed") {
		t.Errorf("error = %q, want substring %q", err, "dial failed")
	}
}

func TestNotifySystemd_Success(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")

	// Create a real unixgram listener.
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(context.Background(), "unixgram", sockPath)
	if err != nil {
		t.Fatalf("listen unixgram: %v", err)
	}
	defer func() { _ = conn.Close() }()

	t.Setenv("NOTIFY_SOCKET", sockPath)

	if err := notifySystemd(); err != nil {
		t.Fatalf("notifySystemd() = %v, want nil", err)
	}

	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read from socket: %v", err)
	}

	got := string(buf[:n])
	if got != "READY=1" {
		t.Errorf("payload = %q, want %q", got, "READY=1")
	}
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	if originChecker("") != nil {
		t.Error("empty origin should keep the same-origin default")
	}

	tests := []struct {
		allowed, origin string
		want            bool
	}{
		{"*", "https://anything.example", true},
		{"*", "", true},
		{"https://ops.example", "https://ops.example", true},
		{"https://ops.example", "https://evil.example", false},
		{"https://ops.example", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, livefeedPath, http.NoBody)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := originChecker(tt.allowed)(req); got != tt.want {
			t.Errorf("originChecker(%q)(Origin=%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

// corsRouter mounts CORS ahead of a token-protected route the way run does.
func corsRouter(allowed string) http.Handler {
	r := chi.NewRouter()
	if mw := corsMiddleware(allowed); mw != nil {
		r.Use(mw)
	}
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }
	r.With(authmw.BearerToken("secret")).Delete("/api/anomalies/{id}", ok)
	r.Get("/api/anomalies", ok)
	return r
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     string
		origin      string
		wantOrigin  string
		wantMethods bool
	}{
		{"exact origin", "https://ops.example", "https://ops.example", "https://ops.example", true},
		{"any origin", "*", "https://anything.example", "*", true},
		{"foreign origin", "https://ops.example", "https://evil.example", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodOptions, "/api/anomalies/a1", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
			req.Header.Set("Access-Control-Request-Headers", "Authorization")
			rec := httptest.NewRecorder()
			corsRouter(tt.allowed).ServeHTTP(rec, req)

			if rec.Code < 200 || rec.Code > 299 {
				t.Fatalf("status = %d, want 2xx", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			methods := rec.Header().Get("Access-Control-Allow-Methods")
			if tt.wantMethods != strings.Contains(methods, http.MethodDelete) {
				t.Errorf("Allow-Methods = %q", methods)
			}
			if tt.wantMethods {
				if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.EqualFold(got, "Authorization") {
					t.Errorf("Allow-Headers = %q, want Authorization", got)
				}
				if got := rec.Header().Get("Access-Control-Max-Age"); got != "300" {
					t.Errorf("Max-Age = %q, want 300", got)
				}
			}
		})
	}
}

func TestCORS_ActualRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/anomalies", http.NoBody)
	req.Header.Set("Origin", "https://ops.example")
	rec := httptest.NewRecorder()
	corsRouter("https://ops.example").ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Trace-Id") {
		t.Errorf("Expose-Headers = %q, want X-Trace-Id", got)
	}
}

func TestCORS_Disabled(t *testing.T) {
	t.Parallel()

	if corsMiddleware("") != nil {
		t.Fatal("empty origin should disable CORS")
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/anomalies/a1", http.NoBody)
	req.Header.Set("Origin", "https://ops.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	corsRouter("").ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want none", got)
	}
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405 from the router", rec.Code)
	}
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  tc.Config
	}{
		{"memory", tc.Config{Store: tc.StoreMemory}},
		{"file", tc.Config{Store: tc.StoreFile, DataDir: filepath.Join(dir, "snapshots")}},
		{"sqlite", tc.Config{Store: tc.StoreSQLite, SQLitePath: filepath.Join(dir, "tw.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, closeStore, err := openStore(ctx, tt.cfg, log.Nop())
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer closeStore()

			if err := store.Save(ctx, incident.CollectionAlerts, []byte(`[]`)); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := store.Load(ctx, incident.CollectionAlerts)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(got) != "[]" {
				t.Errorf("Load = %q, want []", got)
			}
		})
	}
}

func TestOpenStore_PostgresUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := openStore(ctx, tc.Config{
		Store:       tc.StorePostgres,
		DatabaseURL: "postgres://u:p@127.0.0.1:1/none?connect_timeout=1",
	}, log.Nop())
	if err == nil {
		t.Fatal("expected error for unreachable postgres")
	}
	if !strings.Contains(err.Error(), "postgres pool") {
		t.Errorf("error = %q, want postgres pool prefix", err)
	}
}
