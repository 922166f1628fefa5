package core

import (
	"context"
	"expvar"
	"fmt"
	"time"
)

// ExpvarMetricsRecorder keeps pantry counters in one expvar map, served as JSON
// on /debug/vars. Each operation gets "<op>.ok", "<op>.failed" and "<op>.ms"
// (total latency); "items" holds the size of the last loaded snapshot.
type ExpvarMetricsRecorder struct {
	name  string
	vars  *expvar.Map
	items *expvar.Int
}

// NewExpvarMetricsRecorder publishes a recorder under name ("pantry" when
// empty). expvar names are process-wide, so each name can be taken once.
func NewExpvarMetricsRecorder(name string) (*ExpvarMetricsRecorder, error) {
	if name == "" {
		name = "pantry"
	}
	if expvar.Get(name) != nil {
		return nil, fmt.Errorf("expvar %q is already published", name)
	}
	r := &ExpvarMetricsRecorder{
		name:  name,
		vars:  new(expvar.Map).Init(),
		items: new(expvar.Int),
	}
	r.vars.Set("items", r.items)
	expvar.Publish(name, r.vars)
	return r, nil
}

// Name returns the expvar the recorder is published under.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.vars.Add(counterKey(operation, success), 1)
	r.vars.AddFloat(operation+".ms", float64(duration)/float64(time.Millisecond))
}

// SetItems records the size of the freshly loaded snapshot.
func (r *ExpvarMetricsRecorder) SetItems(n int) {
	r.items.Set(int64(n))
}

// Count returns how many operations finished with the given outcome.
func (r *ExpvarMetricsRecorder) Count(operation string, success bool) int64 {
	if v, ok := r.vars.Get(counterKey(operation, success)).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// Items returns the last recorded snapshot size.
func (r *ExpvarMetricsRecorder) Items() int64 { return r.items.Value() }

func counterKey(operation string, success bool) string {
	if success {
		return operation + ".ok"
	}
	return operation + ".failed"
}
