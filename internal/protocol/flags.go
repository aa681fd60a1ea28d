package protocol

// Well-known flag names, as the protocol spells them.
const (
	FlagSeen    = `\Seen`
	FlagFlagged = `\Flagged`
)

// FlagSet normalizes whatever flag collection the protocol layer
// returns into a defined membership-test capability. Clients variously
// report flags as slices, sets, or nothing at all; membership must be a
// set test, and an absent collection must read as empty rather than
// fail.
type FlagSet map[string]struct{}

// NewFlagSet builds a FlagSet from a slice-shaped flag collection. A
// nil slice yields a usable empty set.
func NewFlagSet(flags []string) FlagSet {
	set := make(FlagSet, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}
	return set
}

// Has reports whether the named flag is present. Safe on a nil set.
func (s FlagSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// IsRead reports whether the message carries the seen flag.
func (s FlagSet) IsRead() bool { return s.Has(FlagSeen) }

// IsFlagged reports whether the message carries the flagged flag.
func (s FlagSet) IsFlagged() bool { return s.Has(FlagFlagged) }
