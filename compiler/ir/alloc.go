package ir

import (
	"fmt"

	"fortio.org/safecast"
)

type (
	// Allocator hands out sequential addresses per segment.
	// Addresses are never freed.
	Allocator struct {
		next map[Segment]Addr
	}

	SegmentOverflowError struct {
		Segment Segment
		Size    int
	}
)

func NewAllocator() *Allocator {
	return &Allocator{
		next: make(map[Segment]Addr),
	}
}

func (a *Allocator) Alloc(s Segment) (Addr, error) {
	r := RangeOf(s)

	n, ok := a.next[s]
	if !ok {
		n = r.Base
	}

	if n >= r.End {
		return Nil, SegmentOverflowError{Segment: s, Size: r.Size()}
	}

	a.next[s] = n + 1

	return n, nil
}

// Used returns the number of addresses handed out in s.
func (a *Allocator) Used(s Segment) int {
	n, ok := a.next[s]
	if !ok {
		return 0
	}

	return int(n - RangeOf(s).Base)
}

// AddrOf returns the address at index i of the segment.
func AddrOf(s Segment, i int) (Addr, error) {
	r := RangeOf(s)

	off, err := safecast.Conv[int32](i)
	if err != nil || i >= r.Size() {
		return Nil, SegmentOverflowError{Segment: s, Size: r.Size()}
	}

	return r.Base + Addr(off), nil
}

// Index converts an instruction position into a jump target.
func Index(i int) Addr {
	x, err := safecast.Conv[int32](i)
	if err != nil {
		panic(err)
	}

	return Addr(x)
}

func (e SegmentOverflowError) Error() string {
	return fmt.Sprintf("%v segment overflow: more than %d slots", e.Segment, e.Size)
}
