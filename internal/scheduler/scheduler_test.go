package scheduler

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/zapponejosh/airac-api/internal/airac"
	"github.com/zapponejosh/airac-api/internal/logger"
	"github.com/zapponejosh/airac-api/internal/metrics"
)

type recordingPublisher struct {
	seen []airac.Cycle
}

func (p *recordingPublisher) SetCurrent(c airac.Cycle) bool {
	changed := len(p.seen) > 0 && !p.seen[len(p.seen)-1].Equal(c)
	p.seen = append(p.seen, c)
	return changed
}

func TestCheck_LogsRollover(t *testing.T) {
	var buf bytes.Buffer
	pub := &recordingPublisher{}
	s := New("@daily", pub, logger.New(&buf, "info", "text"))

	now := time.Date(2022, time.June, 15, 23, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if got := s.Check().Ident(); got != "2205" {
		t.Fatalf("Check() = %s, want 2205", got)
	}
	if strings.Contains(buf.String(), "rollover") {
		t.Errorf("first check should not log a rollover: %q", buf.String())
	}

	now = now.Add(2 * time.Hour)
	if got := s.Check().Ident(); got != "2206" {
		t.Fatalf("Check() after midnight = %s, want 2206", got)
	}
	if !strings.Contains(buf.String(), "airac cycle rollover") || !strings.Contains(buf.String(), "cycle.ident=2206") {
		t.Errorf("expected rollover log, got %q", buf.String())
	}
	if len(pub.seen) != 2 {
		t.Errorf("publisher saw %d cycles, want 2", len(pub.seen))
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New("not a spec", &recordingPublisher{}, logger.Discard())

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("Start() expected error for invalid spec")
	}
}

func TestStartStop_WithMetrics(t *testing.T) {
	m := metrics.New()
	s := New("@hourly", m, logger.Discard())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("Stop() did not finish")
	}
}
