package scheduler

import "strings"

// Flag is a bitset of schedule policies. Exactly one of FlagOnce,
// FlagMultiple and FlagRepeat is set at construction, derived from the fire
// budget. FlagHidden is independent and toggled by Hide/Unhide.
type Flag uint32

const (
	// FlagOnce marks a one-shot schedule (fire budget of exactly 1).
	FlagOnce Flag = 1 << iota
	// FlagMultiple marks a bounded-repeat schedule (finite budget above 1).
	FlagMultiple
	// FlagRepeat marks an unbounded schedule.
	FlagRepeat
	// FlagHidden excludes a schedule from default listings and from the
	// finished bucket on exhaustion.
	FlagHidden
)

var flagNames = [...]struct {
	flag Flag
	name string
}{
	{FlagOnce, "ONCE"},
	{FlagMultiple, "MULTIPLE"},
	{FlagRepeat, "REPEAT"},
	{FlagHidden, "HIDDEN"},
}

func (f Flag) Has(flag Flag) bool {
	return f&flag == flag
}

func (f Flag) String() string {
	var names []string
	for _, def := range flagNames {
		if f.Has(def.flag) {
			names = append(names, def.name)
		}
	}
	if names == nil {
		return "NONE"
	}
	return strings.Join(names, "|")
}
