package frame

import (
	"sort"

	"github.com/go-classfile/jcfg/vtype"
)

// Access records one read or write of a local slot, in program order,
// for liveness analysis (spec.md §4.3 phase covering locals read
// before overwrite).
type Access struct {
	Read  bool
	Index int
	Entry *Entry
}

// State (the "Frame" of spec.md §3) is the abstract-interpretation
// state at one execution point: an operand stack, a sparse locals
// map, running max_stack/max_locals, an append-only local-access log
// and the set of entries fully consumed by a pop.
type State struct {
	stack  []*Entry
	locals map[int]*Entry

	MaxStack  int
	MaxLocals int

	Access   []Access
	consumed map[*Entry]bool

	nextID int
	delta  *FrameDelta // non-nil while inside Start/Finish
}

// NewState returns an empty State.
func NewState() *State {
	return &State{locals: make(map[int]*Entry), consumed: make(map[*Entry]bool)}
}

// NewEntry allocates a fresh Entry scoped to this State. It does not
// push or store the entry anywhere.
func (s *State) NewEntry(t vtype.Type, src Source, value interface{}) *Entry {
	s.nextID++
	return &Entry{id: s.nextID, Type: t, Source: src, Value: value}
}

// Push pushes e onto the operand stack.
func (s *State) Push(e *Entry) {
	s.stack = append(s.stack, e)
	if h := stackHeight(s.stack); h > s.MaxStack {
		s.MaxStack = h
	}
	if s.delta != nil {
		s.delta.Pushes = append(s.delta.Pushes, e)
	}
}

// PushType is a convenience wrapper allocating and pushing a new entry.
func (s *State) PushType(t vtype.Type, src Source, value interface{}) *Entry {
	e := s.NewEntry(t, src, value)
	s.Push(e)
	return e
}

func stackHeight(stack []*Entry) int {
	h := 0
	for _, e := range stack {
		h += e.Type.Category()
	}
	return h
}

// Pop removes and returns the top entry.
func (s *State) Pop() (*Entry, error) {
	if len(s.stack) == 0 {
		return nil, StackUnderflow{Want: 1}
	}
	n := len(s.stack) - 1
	e := s.stack[n]
	s.stack = s.stack[:n]
	s.consumed[e] = true
	if s.delta != nil {
		s.delta.Pops = append(s.delta.Pops, e)
	}
	return e, nil
}

// Peek returns the top entry without removing it.
func (s *State) Peek() (*Entry, error) {
	if len(s.stack) == 0 {
		return nil, StackUnderflow{Want: 1}
	}
	return s.stack[len(s.stack)-1], nil
}

// Height returns the number of operand-stack slots (category units)
// currently occupied.
func (s *State) Height() int { return stackHeight(s.stack) }

// StackSnapshot returns a copy of the current stack, bottom-first.
func (s *State) StackSnapshot() []*Entry {
	out := make([]*Entry, len(s.stack))
	copy(out, s.stack)
	return out
}

// Get reads the local at index. A category-2 value at index i implies
// a top sentinel at i+1; reading that sentinel index directly reports
// UnknownLocal.
func (s *State) Get(index int) (*Entry, error) {
	e, ok := s.locals[index]
	if !ok {
		return nil, UnknownLocal{Index: index}
	}
	s.Access = append(s.Access, Access{Read: true, Index: index, Entry: e})
	if s.delta != nil {
		s.delta.Reads = append(s.delta.Reads, LocalRef{Index: index, Entry: e})
	}
	return e, nil
}

// Set stores e at local index, clearing any stale category-2
// continuation slot from a prior wider value and recording the
// overwrite in the access log and delta.
func (s *State) Set(index int, e *Entry) {
	if old, ok := s.locals[index]; ok && old.Type.Category() == 2 {
		delete(s.locals, index+1)
	}
	s.locals[index] = e
	if e.Type.Category() == 2 {
		delete(s.locals, index+1)
	}
	need := index + e.Type.Category()
	if need > s.MaxLocals {
		s.MaxLocals = need
	}
	s.Access = append(s.Access, Access{Read: false, Index: index, Entry: e})
	if s.delta != nil {
		s.delta.Overwrites = append(s.delta.Overwrites, LocalRef{Index: index, Entry: e})
	}
}

// Consumed reports whether e has been popped at least once in this
// State's lifetime.
func (s *State) Consumed(e *Entry) bool { return s.consumed[e] }

// Dup duplicates the top category-1 value.
func (s *State) Dup() error {
	top, err := s.Peek()
	if err != nil {
		return err
	}
	s.Push(top)
	if s.delta != nil {
		s.delta.Dups = append(s.delta.Dups, top)
	}
	return nil
}

// DupX1 duplicates the top value and inserts it two slots down.
func (s *State) DupX1() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v1)
	s.Push(v2)
	s.Push(v1)
	return nil
}

// DupX2 duplicates the top value and inserts it three slots down (or
// two, if the second-from-top is a category-2 value).
func (s *State) DupX2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	if v2.Type.Category() == 2 {
		s.Push(v1)
		s.Push(v2)
		s.Push(v1)
		return nil
	}
	v3, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v1)
	s.Push(v3)
	s.Push(v2)
	s.Push(v1)
	return nil
}

// Dup2 duplicates the top one or two category-1 values, or a single
// category-2 value.
func (s *State) Dup2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	if v1.Type.Category() == 2 {
		s.Push(v1)
		s.Push(v1)
		return nil
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v2)
	s.Push(v1)
	s.Push(v2)
	s.Push(v1)
	return nil
}

// Pop2 discards the top two category-1 values, or the top single
// category-2 value.
func (s *State) Pop2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	if v1.Type.Category() == 2 {
		return nil
	}
	_, err = s.Pop()
	return err
}

// Dup2X1 duplicates the top one or two values and inserts the copy
// three (or two) slots down.
func (s *State) Dup2X1() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	if v1.Type.Category() == 2 {
		s.Push(v1)
		s.Push(v2)
		s.Push(v1)
		return nil
	}
	v3, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v2)
	s.Push(v1)
	s.Push(v3)
	s.Push(v2)
	s.Push(v1)
	return nil
}

// Dup2X2 duplicates the top one or two values and inserts the copy
// further down the stack, per the four JVMS dup2_x2 forms depending
// on the category of the values involved.
func (s *State) Dup2X2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	if v1.Type.Category() == 2 && v2.Type.Category() == 2 {
		s.Push(v1)
		s.Push(v2)
		s.Push(v1)
		return nil
	}
	if v1.Type.Category() == 2 {
		v3, err := s.Pop()
		if err != nil {
			return err
		}
		s.Push(v1)
		s.Push(v3)
		s.Push(v2)
		s.Push(v1)
		return nil
	}
	v3, err := s.Pop()
	if err != nil {
		return err
	}
	if v3.Type.Category() == 2 {
		s.Push(v2)
		s.Push(v1)
		s.Push(v3)
		s.Push(v2)
		s.Push(v1)
		return nil
	}
	v4, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v2)
	s.Push(v1)
	s.Push(v4)
	s.Push(v3)
	s.Push(v2)
	s.Push(v1)
	return nil
}

// Initialize replaces every stack and local entry whose type equals
// old with a freshly allocated entry of type neu, preserving entry
// identity everywhere else. Used by invokespecial <init> to resolve
// every alias of an uninitialized(offset)/uninitializedThis value
// once the constructor call completes (spec.md §4.5 "Replace
// uninitialized types").
func (s *State) Initialize(old, neu vtype.Type, src Source) {
	replacement := make(map[*Entry]*Entry)
	resolve := func(e *Entry) *Entry {
		if e.Type != old {
			return e
		}
		if r, ok := replacement[e]; ok {
			return r
		}
		r := s.NewEntry(neu, src, nil)
		r.Parents = []*Entry{e}
		replacement[e] = r
		return r
	}
	for i, e := range s.stack {
		s.stack[i] = resolve(e)
	}
	for idx, e := range s.locals {
		s.locals[idx] = resolve(e)
	}
}

// Swap exchanges the top two category-1 values.
func (s *State) Swap() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v1)
	s.Push(v2)
	if s.delta != nil {
		s.delta.Swaps = append(s.delta.Swaps, [2]*Entry{v2, v1})
	}
	return nil
}

// Clone returns an independent copy of s for forking the trace DFS
// down a second outgoing edge: entries keep their identity (a
// "shallow" copy, spec.md §4.5 shared-resource policy) but the stack,
// locals, access log and consumed set are all copied, so mutating one
// branch never leaks into a sibling branch explored from the same
// point.
func (s *State) Clone() *State {
	c := &State{
		stack:     append([]*Entry(nil), s.stack...),
		locals:    make(map[int]*Entry, len(s.locals)),
		MaxStack:  s.MaxStack,
		MaxLocals: s.MaxLocals,
		Access:    append([]Access(nil), s.Access...),
		consumed:  make(map[*Entry]bool, len(s.consumed)),
		nextID:    s.nextID,
	}
	for k, v := range s.locals {
		c.locals[k] = v
	}
	for k, v := range s.consumed {
		c.consumed[k] = v
	}
	return c
}

// ClearStack empties the operand stack without touching locals, used
// when entering an exception handler (JVMS §2.6.4: the handler begins
// with an empty stack holding only the caught exception).
func (s *State) ClearStack() {
	s.stack = s.stack[:0]
}

// LocalIndices returns the indices currently occupied in locals, in
// ascending order.
func (s *State) LocalIndices() []int {
	out := make([]int, 0, len(s.locals))
	for i := range s.locals {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// StartDelta begins recording a FrameDelta for one instruction's
// effect. Call FinishDelta to retrieve and close it.
func (s *State) StartDelta(source Source) {
	s.delta = &FrameDelta{Source: source}
}

// FinishDelta closes and returns the delta started by StartDelta, or
// nil if none is active.
func (s *State) FinishDelta() *FrameDelta {
	d := s.delta
	s.delta = nil
	return d
}
