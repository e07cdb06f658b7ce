package clock

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// EventLogger gates a repeating warning/error behind a rate limiter so a
// hot-path condition that recurs on every packet (clock regression, a full
// mailbox) is logged "once per event" in spirit without ever blocking the
// caller or flooding the log. golang.org/x/time/rate has no Limiter.Once,
// so Allow() against a limiter configured for one event per interval is the
// idiomatic substitute.
type EventLogger struct {
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewEventLogger builds an EventLogger that allows at most one log line per
// interval, bursting once immediately on first use.
func NewEventLogger(log *logrus.Entry, interval time.Duration) *EventLogger {
	return &EventLogger{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		log:     log,
	}
}

// Warn logs at Warn level if the rate limiter currently allows it.
func (e *EventLogger) Warn(args ...interface{}) {
	if e.limiter.Allow() {
		e.log.Warn(args...)
	}
}

// RegressionGuard implements the clock's monotonic-regression contract: if a
// read produces a value smaller than a previously observed value, the delta
// is treated as zero and the condition is logged (rate-limited), never
// propagated as an error.
type RegressionGuard struct {
	events *EventLogger
}

// NewRegressionGuard builds a RegressionGuard that logs at most once per
// second when it observes time moving backwards.
func NewRegressionGuard(log *logrus.Entry) *RegressionGuard {
	return &RegressionGuard{events: NewEventLogger(log, time.Second)}
}

// Delta returns now-past, or zero (with a rate-limited warning) if present
// is smaller than past.
func (g *RegressionGuard) Delta(now, past Ticks) Ticks {
	if now < past {
		g.events.Warn("clock: present time smaller than past time, treating delta as zero")
		return 0
	}
	return now - past
}
