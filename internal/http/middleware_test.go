package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/pasture-weather-service/internal/observability"
	"github.com/kjstillabower/pasture-weather-service/internal/traffic"
)

func TestCorrelationIDMiddleware_Generated(t *testing.T) {
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(nil))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = correlationID(r.Context())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if seen == "" {
		t.Fatal("correlation id missing from context")
	}
	if got := w.Header().Get(CorrelationIDHeader); got != seen {
		t.Errorf("header = %q, context = %q", got, seen)
	}
}

func TestCorrelationIDMiddleware_PropagatedToLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		observability.LoggerFromContext(r.Context()).Info("handled")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("handled").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["correlation_id"]; got != "abc-123" {
		t.Errorf("correlation_id = %v, want abc-123", got)
	}
}

func TestMetricsMiddleware_RouteTemplateLabel(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/things/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/things/{name}", "4xx")
	before := testutil.ToFloat64(counter)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/alpha", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/beta", nil))

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests under template = %v, want 2", got)
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if during < 1 {
		t.Errorf("InFlightCount during request = %d, want >= 1", during)
	}
	if got := InFlightCount(); got != 0 {
		t.Errorf("InFlightCount after request = %d, want 0", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 404: "4xx", 429: "4xx", 503: "5xx"}
	for code, want := range tests {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"bounded", 50 * time.Millisecond, true},
		{"disabled", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var hasDeadline bool
			h := TimeoutMiddleware(tc.timeout)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, hasDeadline = r.Context().Deadline()
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			if hasDeadline != tc.wantDeadline {
				t.Errorf("deadline set = %v, want %v", hasDeadline, tc.wantDeadline)
			}
		})
	}
}

func TestTimeoutMiddleware_CancelsSlowHandler(t *testing.T) {
	var ctxErr error
	h := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if ctxErr != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctxErr)
	}
}

func TestRateLimitMiddleware_Denies(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(nil))
	router.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(1), 1)))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	denied := testutil.ToFloat64(observability.RateLimitDeniedTotal)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/x", nil))
	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/x", nil))

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if detail := decodeError(t, second); detail.Code != "RATE_LIMITED" || detail.RequestID == "" {
		t.Errorf("error detail = %+v", detail)
	}
	if got := traffic.Denials(time.Minute); got != 1 {
		t.Errorf("traffic Denials = %d, want 1", got)
	}
	if got := testutil.ToFloat64(observability.RateLimitDeniedTotal) - denied; got != 1 {
		t.Errorf("RateLimitDeniedTotal delta = %v, want 1", got)
	}
}

func TestRateLimitMiddleware_NilPassesThrough(t *testing.T) {
	called := 0
	h := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called++ }))
	for i := 0; i < 5; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if called != 5 {
		t.Errorf("handler called %d times, want 5", called)
	}
}

func TestRouter_RateLimitScopedToSimulations(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)
	router := NewRouter(h, RouterConfig{RateLimiter: rate.NewLimiter(rate.Limit(0), 0)})

	for i := 0; i < 3; i++ {
		w := do(t, router, http.MethodGet, "/health", "")
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("/health was rate limited")
		}
	}
	w := do(t, router, http.MethodGet, "/simulations/presets", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("/simulations/presets status = %d, want 429", w.Code)
	}
}
