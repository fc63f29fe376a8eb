package postgres

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/trackwatch/internal/incident/pgstore.(*Store).Load", "(*Store).Load"},
		{"no slashes", "pgstore.(*Store).Save", "(*Store).Save"},
		{"plain func", "foo.Bar", "Bar"},
		{"no dots", "main", "main"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := funcName(tt.in); got != tt.want {
				t.Errorf("funcName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSkipFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fn   string
		want bool
	}{
		{"runtime.goexit", true},
		{"github.com/jackc/pgx/v5.(*Conn).Query", true},
		{"github.com/exaring/otelpgx.(*Tracer).TraceQueryStart", true},
		{"github.com/linnemanlabs/trackwatch/internal/postgres.queryTracer.TraceQueryStart", true},
		{"github.com/linnemanlabs/trackwatch/internal/incident/pgstore.(*Store).Load", false},
	}
	for _, tt := range tests {
		if got := skipFrame(tt.fn); got != tt.want {
			t.Errorf("skipFrame(%q) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestRequestStats(t *testing.T) {
	t.Parallel()

	ctx := WithRequestStats(context.Background())
	s, ok := RequestStatsFrom(ctx)
	if !ok {
		t.Fatal("stats missing from context")
	}
	s.add(10*time.Millisecond, nil)
	s.add(5*time.Millisecond, errors.New("boom"))

	q, e, d := s.Snapshot()
	if q != 2 || e != 1 || d != 15*time.Millisecond {
		t.Errorf("Snapshot = %d, %d, %v", q, e, d)
	}

	if _, ok := RequestStatsFrom(context.Background()); ok {
		t.Error("expected no stats on bare context")
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var sawStats bool
	var method string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, sawStats = RequestStatsFrom(r.Context())
		method, _ = r.Context().Value(methodKey{}).(string)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))

	if !sawStats {
		t.Error("handler context has no RequestStats")
	}
	if method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", method)
	}
}

type innerTracer struct {
	started, ended int
}

func (i *innerTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	i.started++
	return ctx
}

func (i *innerTracer) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {
	i.ended++
}

//nolint:paralleltest // mutates the process-wide observer
func TestQueryTracer_ObservesAndChains(t *testing.T) {
	var gotMethod, gotRoute, gotOutcome string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		gotMethod, gotRoute, gotOutcome = method, route, outcome
	}))
	t.Cleanup(func() { SetQueryObserver(nil) })

	inner := &innerTracer{}
	tr := newQueryTracer(inner)

	ctx := WithRequestStats(WithHTTPMethod(context.Background(), http.MethodGet))
	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{
		CommandTag: pgconn.NewCommandTag("SELECT 1"),
		Err:        errors.New("conn reset"),
	})

	if inner.started != 1 || inner.ended != 1 {
		t.Errorf("inner tracer calls = %d/%d, want 1/1", inner.started, inner.ended)
	}
	if gotMethod != http.MethodGet || gotRoute != "none" || gotOutcome != "error" {
		t.Errorf("observed = %q %q %q", gotMethod, gotRoute, gotOutcome)
	}
	s, _ := RequestStatsFrom(ctx)
	if q, e, _ := s.Snapshot(); q != 1 || e != 1 {
		t.Errorf("stats = %d queries, %d errors", q, e)
	}
}
