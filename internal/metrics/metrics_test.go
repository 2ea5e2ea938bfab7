package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zapponejosh/airac-api/internal/airac"
)

func TestSetCurrent(t *testing.T) {
	m := New()
	c := airac.Locate(2022, time.May, 23)

	if m.SetCurrent(c) {
		t.Error("first publication should not be a rollover")
	}
	if m.SetCurrent(c) {
		t.Error("same cycle should not be a rollover")
	}
	if !m.SetCurrent(c.Next()) {
		t.Error("next cycle should be a rollover")
	}

	if got := testutil.ToFloat64(m.rollovers); got != 1 {
		t.Errorf("rollovers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.currentSeq); got != 6 {
		t.Errorf("current sequence = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.currentIdent.WithLabelValues("2206")); got != 1 {
		t.Errorf("info{ident=2206} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.currentIdent); got != 1 {
		t.Errorf("info series = %d, want 1 after reset", got)
	}
	if got := testutil.ToFloat64(m.currentStart); got != float64(c.Next().Starts().Unix()) {
		t.Errorf("start timestamp = %v", got)
	}
}

func TestObserveRequestAndLookups(t *testing.T) {
	m := New()

	m.ObserveRequest("/api/v1/cycles/current", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest("/api/v1/cycles/current", http.MethodGet, http.StatusOK, 7*time.Millisecond)
	m.CountLookup("current")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/api/v1/cycles/current", "GET", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("current")); got != 1 {
		t.Errorf("lookups = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetCurrent(airac.Locate(2022, time.May, 23))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `airac_current_cycle_info{ident="2205"} 1`) {
		t.Errorf("exposition missing current cycle info:\n%s", rr.Body.String())
	}
}
