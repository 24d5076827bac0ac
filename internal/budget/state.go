package budget

import "fmt"

// State is where the engine is in its load cycle.
type State int

const (
	// Uninitialized holds no data: nothing has loaded since construction or the last Clear.
	Uninitialized State = iota
	// Loading has a refresh in flight.
	Loading
	// Ready holds the result of the latest refresh; mutations are allowed.
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Resync picks what AddItem re-reads after a successful create.
type Resync int

const (
	// ResyncAll re-reads the whole unscoped collection.
	ResyncAll Resync = iota
	// ResyncUser re-reads only the current user's scoped path.
	ResyncUser
)

func (r Resync) String() string {
	if r == ResyncUser {
		return "user"
	}
	return "all"
}

// ParseResync accepts "all" or "user".
func ParseResync(s string) (Resync, error) {
	switch s {
	case "all", "":
		return ResyncAll, nil
	case "user":
		return ResyncUser, nil
	default:
		return 0, fmt.Errorf("unknown resync strategy %q", s)
	}
}
