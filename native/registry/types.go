package registry

// Status tracks the lifecycle of a contribution. A contribution is never
// physically deleted; removal is a terminal state transition.
type Status uint8

const (
	StatusUninitiated Status = iota
	StatusPending
	StatusAccepted
	StatusRejected
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusUninitiated:
		return "uninitiated"
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Contribution is a discrete submitted unit of work, typed by tag. At most one
// of PendingOwner/Owner is populated at a time: PendingOwner while the
// contribution awaits verification, Owner once it is accepted. The tag
// association is cleared on rejection and removal.
type Contribution struct {
	ID           uint64
	Tag          string
	Status       Status
	Owner        [20]byte
	PendingOwner [20]byte
}

// Clone produces a copy safe to hand across the state boundary.
func (c *Contribution) Clone() *Contribution {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// TagCount is one entry of a snapshot view. Views are stored as slices sorted
// by tag so RLP round-trips are deterministic.
type TagCount struct {
	Tag   string
	Count uint64
}

// GlobalParty is the pseudo-party whose view aggregates tag counts across all
// owners. It shares the checkpoint machinery with real parties.
var GlobalParty = [20]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}
