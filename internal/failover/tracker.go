package failover

// Role identifies one of the two managed uplinks.
type Role int

const (
	Primary Role = iota
	Secondary
)

func (r Role) String() string {
	if r == Primary {
		return "primary"
	}
	return "secondary"
}

// Tracker converts per-cycle probe results into debounced consecutive
// failure counters, one per uplink. Counters stay in [0, threshold].
type Tracker struct {
	threshold int
	counters  [2]int
}

// NewTracker creates a tracker with the given failure threshold.
func NewTracker(threshold int) *Tracker {
	return &Tracker{threshold: threshold}
}

// Observe folds one cycle's unreachable count into the counter for role.
// A single unreachable target is noise and leaves the counter untouched;
// a clean cycle resets it to zero outright, no gradual decay.
func (t *Tracker) Observe(role Role, unreachable int) {
	switch {
	case unreachable == 0:
		t.counters[role] = 0
	case unreachable == 1:
		// noise
	default:
		if t.counters[role] < t.threshold {
			t.counters[role]++
		}
	}
}

// Down reports whether the uplink has failed enough consecutive cycles to
// count as down.
func (t *Tracker) Down(role Role) bool {
	return t.counters[role] == t.threshold
}

// Counter returns the current consecutive-failure count for role.
func (t *Tracker) Counter(role Role) int {
	return t.counters[role]
}

// Threshold returns the configured failure threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}
