package mem

import "strings"

// Permission is a set of access rights.
type Permission uint8

// Access rights.
const (
	PermRead Permission = 1 << iota
	PermWrite
	PermExecute
)

// Has reports whether every right in q is present in p.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

func (p Permission) String() string {
	if p == 0 {
		return "none"
	}
	var names []string
	if p.Has(PermRead) {
		names = append(names, "read")
	}
	if p.Has(PermWrite) {
		names = append(names, "write")
	}
	if p.Has(PermExecute) {
		names = append(names, "execute")
	}
	return strings.Join(names, "|")
}

// RegionKind identifies one of the four address-space regions.
type RegionKind uint8

// Region kinds, in lookup order.
const (
	Code RegionKind = iota
	Data
	Heap
	Stack
	numRegions
)

func (k RegionKind) String() string {
	switch k {
	case Code:
		return "code"
	case Data:
		return "data"
	case Heap:
		return "heap"
	case Stack:
		return "stack"
	}
	return "region?"
}

var defaultPermissions = [numRegions]Permission{
	Code:  PermRead,
	Data:  PermRead,
	Heap:  PermRead | PermWrite,
	Stack: PermRead | PermWrite,
}

// Region is a permissioned range of the address space. Size 0 is empty.
type Region struct {
	Kind        RegionKind
	Start       uint32
	Size        uint32
	Permissions Permission
}

// Empty reports whether the region maps no addresses.
func (r Region) Empty() bool {
	return r.Size == 0
}

// Bounds returns the inclusive [start, end] range. ok is false when the
// region is empty.
func (r Region) Bounds() (start, end uint32, ok bool) {
	if r.Empty() {
		return r.Start, r.Start, false
	}
	return r.Start, r.Start + r.Size - 1, true
}

// Limit returns the first address past the region.
func (r Region) Limit() uint64 {
	return uint64(r.Start) + uint64(r.Size)
}

// Contains reports whether [addr, addr+size) lies wholly inside the region.
func (r Region) Contains(addr, size uint32) bool {
	if r.Empty() || addr < r.Start {
		return false
	}
	return uint64(addr)+uint64(size) <= r.Limit()
}
