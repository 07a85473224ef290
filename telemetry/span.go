package telemetry

import (
	"maps"
	"time"

	"github.com/Gurpartap/taskloop/agent"
)

// StartSpan emits "<name>_start" with data and returns a function that emits
// "<name>_end" with the same data plus duration_ms and, when err is non-nil,
// error. The end function is safe to call more than once; only the first
// call emits.
func StartSpan(t agent.Telemetry, name string, data map[string]any) func(err error) {
	base := maps.Clone(data)
	if base == nil {
		base = map[string]any{}
	}
	start := time.Now()
	t.Emit(name+"_start", maps.Clone(base))

	ended := false
	return func(err error) {
		if ended {
			return
		}
		ended = true
		end := maps.Clone(base)
		end["duration_ms"] = float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			end["error"] = err.Error()
		}
		t.Emit(name+"_end", end)
	}
}
