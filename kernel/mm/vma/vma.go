// Package vma implements the per-process virtual-memory-area list of
// spec.md §4.4: a non-sorted singly-linked list of half-open virtual ranges,
// each carrying a permission/tag pair and a copy-on-write bit.
package vma

// Flag is a bitmask of page permissions/role bits.
type Flag uint8

const (
	// Read marks the region readable.
	Read Flag = 1 << iota
	// Write marks the region writable.
	Write
	// Exec marks the region executable.
	Exec
	// User marks the region accessible from ring 3.
	User
)

// Tag classifies the semantic role of a region, used by the page-fault
// handler's demand-fill policy (spec.md §4.2 rule 3).
type Tag uint8

const (
	// Generic is a region with no special demand-fill semantics.
	Generic Tag = iota
	// Text is the executable image of a process; faults on it are never demand-filled.
	Text
	// Data is the pre-initialized data segment; faults on it are never demand-filled.
	Data
	// Stack is demand-filled with zeroed frames.
	Stack
	// Heap is demand-filled with zeroed frames.
	Heap
	// Mmio maps device memory; never demand-filled, never COW.
	Mmio
	// Anonymous is demand-filled with zeroed frames (e.g. mmap-style allocations).
	Anonymous
)

// Node is one entry in a process's VMA list.
type Node struct {
	Start, End uintptr
	Flags      Flag
	Tag        Tag
	IsCOW      bool
	Next       *Node
}

// Contains reports whether addr falls within [Start, End).
func (n *Node) Contains(addr uintptr) bool {
	return addr >= n.Start && addr < n.End
}

// List is the head of a process's VMA list.
type List struct {
	Head *Node
}

// Find performs the linear scan spec.md §4.4 specifies; returns nil if no
// region contains addr.
func (l *List) Find(addr uintptr) *Node {
	for n := l.Head; n != nil; n = n.Next {
		if n.Contains(addr) {
			return n
		}
	}
	return nil
}

// Add pushes a new region to the head of the list. Overlap checking is the
// caller's responsibility, per spec.md §4.4.
func (l *List) Add(start, end uintptr, flags Flag, tag Tag) *Node {
	n := &Node{Start: start, End: end, Flags: flags, Tag: tag, Next: l.Head}
	l.Head = n
	return n
}

// Remove deletes the node whose range is an exact match for [start, end).
// Returns true if a node was removed.
func (l *List) Remove(start, end uintptr) bool {
	var prev *Node
	for n := l.Head; n != nil; n = n.Next {
		if n.Start == start && n.End == end {
			if prev == nil {
				l.Head = n.Next
			} else {
				prev.Next = n.Next
			}
			return true
		}
		prev = n
	}
	return false
}

// Clone duplicates every node in source order, used by fork together with
// vmm's address-space clone to produce a COW snapshot. markCOW additionally
// flags every cloned (and source) node as copy-on-write, matching the
// semantics fork needs for Anonymous/Heap/Stack regions.
func (l *List) Clone(markCOW bool) *List {
	out := &List{}
	// Walk source in list order (head-to-tail is most-recently-added-first);
	// pushing each clone via Add would reverse the order, so collect then
	// re-link tail-first to preserve the source ordering.
	var nodes []*Node
	for n := l.Head; n != nil; n = n.Next {
		nodes = append(nodes, n)
	}
	var head, tail *Node
	for _, n := range nodes {
		if markCOW {
			n.IsCOW = true
		}
		clone := &Node{Start: n.Start, End: n.End, Flags: n.Flags, Tag: n.Tag, IsCOW: n.IsCOW}
		if head == nil {
			head = clone
		} else {
			tail.Next = clone
		}
		tail = clone
	}
	out.Head = head
	return out
}

// NonOverlapping reports whether every pair of regions in the list is
// disjoint — the invariant spec.md §3/§8 requires of a process's VMA list.
func (l *List) NonOverlapping() bool {
	for a := l.Head; a != nil; a = a.Next {
		for b := a.Next; b != nil; b = b.Next {
			if a.Start < b.End && b.Start < a.End {
				return false
			}
		}
	}
	return true
}
