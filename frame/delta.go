package frame

// LocalRef pairs a local slot index with the entry read from or
// written to it.
type LocalRef struct {
	Index int
	Entry *Entry
}

// FrameDelta records one instruction's effect on a State: the
// entries it popped and pushed, any swap/dup it performed, and the
// local reads/overwrites it made (spec.md §3 FrameDelta).
type FrameDelta struct {
	Source Source

	Pops    []*Entry
	Pushes  []*Entry
	Swaps   [][2]*Entry
	Dups    []*Entry
	Reads   []LocalRef
	Overwrites []LocalRef
}

// StackDelta returns len(Pushes)-len(Pops) in category units.
func (d *FrameDelta) StackDelta() int {
	n := 0
	for _, e := range d.Pushes {
		n += e.Type.Category()
	}
	for _, e := range d.Pops {
		n -= e.Type.Category()
	}
	return n
}
