package clock

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSimulatedAdvance(t *testing.T) {
	c := NewSimulated(100)
	if got := c.Now(); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	c.Advance(50)
	if got := c.Now(); got != 150 {
		t.Fatalf("expected 150, got %d", got)
	}
	c.Set(10)
	if got := c.Now(); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestRegressionGuardTreatsBackwardsTimeAsZero(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	g := NewRegressionGuard(log)

	if got := g.Delta(100, 50); got != 50 {
		t.Fatalf("expected delta 50, got %d", got)
	}
	if got := g.Delta(40, 50); got != 0 {
		t.Fatalf("expected delta 0 on clock regression, got %d", got)
	}
}

func TestEventLoggerRateLimits(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	e := NewEventLogger(log, time.Hour)
	// Two calls in quick succession should not panic or block; the second
	// is simply suppressed by the limiter. There is nothing externally
	// observable to assert beyond "it doesn't block or crash".
	e.Warn("first")
	e.Warn("second")
}
