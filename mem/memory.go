// Package mem provides the r32 address space: a flat byte buffer split into
// permissioned Code, Data, Heap and Stack regions.
//
// Every access is validated in order: the byte span must lie inside the
// buffer, an owning region must map it, and that region must grant the
// required permission. Alignment is a separate check that load and store
// instructions request explicitly. Multi-byte values are little-endian.
package mem

import "fmt"

// LinearMemory is the flat backing store of the address space.
type LinearMemory struct {
	data []byte
}

// NewLinearMemory allocates size zeroed bytes.
func NewLinearMemory(size uint32) *LinearMemory {
	return &LinearMemory{data: make([]byte, size)}
}

// Len returns the capacity in bytes.
func (l *LinearMemory) Len() uint32 {
	return uint32(len(l.data))
}

// Clear zeroes the buffer.
func (l *LinearMemory) Clear() {
	clear(l.data)
}

// Word is the set of value types memory can be accessed as.
type Word interface {
	uint8 | uint16 | uint32
}

// Manager owns the linear memory and its regions.
type Manager struct {
	config  Config
	memory  *LinearMemory
	regions [numRegions]Region
}

// NewManager creates a memory manager with the stack region reserved.
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config: config,
		memory: NewLinearMemory(config.AllocatedMemory),
	}
	m.Reset()
	m.ReserveStack()

	return m, nil
}

// Config returns the configuration the manager was created with.
func (m *Manager) Config() Config {
	return m.config
}

// Capacity returns the size of the address space in bytes.
func (m *Manager) Capacity() uint32 {
	return m.memory.Len()
}

// StackStart returns the top-of-stack address, the last byte of memory.
func (m *Manager) StackStart() uint32 {
	return m.config.AllocatedMemory - 1
}

// stackBase returns the lowest stack address. Code, data and heap must stay
// below it.
func (m *Manager) stackBase() uint32 {
	return m.config.AllocatedMemory - m.config.StackSize
}

// Region returns the current state of a region.
func (m *Manager) Region(kind RegionKind) Region {
	return m.regions[kind]
}

// Regions returns all regions in lookup order.
func (m *Manager) Regions() []Region {
	out := make([]Region, numRegions)
	copy(out, m.regions[:])
	return out
}

// Reset zeroes the buffer and collapses every region to the zeroed bounds
// [0, 0]. Until a program is loaded, address 0 therefore resolves to the
// read-only Code region. The stack is not usable until ReserveStack.
func (m *Manager) Reset() {
	m.memory.Clear()
	for kind := range m.regions {
		m.regions[kind] = Region{
			Kind:        RegionKind(kind),
			Size:        1,
			Permissions: defaultPermissions[kind],
		}
	}
}

// ReserveStack maps the stack region [AllocatedMemory-StackSize,
// AllocatedMemory-1].
func (m *Manager) ReserveStack() {
	m.regions[Stack] = Region{
		Kind:        Stack,
		Start:       m.stackBase(),
		Size:        m.config.StackSize,
		Permissions: defaultPermissions[Stack],
	}
}

// LoadProgram copies a program into the Code region. The program length must
// be a multiple of 4. Code is writable only for the duration of the copy.
// Data and Heap restart, empty, right after the code.
func (m *Manager) LoadProgram(program []byte) error {
	if len(program)%4 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrProgramSize, len(program))
	}
	if uint64(len(program)) > uint64(m.stackBase()) {
		return fmt.Errorf("%w: program of %d bytes overlaps the stack at 0x%08x",
			ErrOutOfMemory, len(program), m.stackBase())
	}

	size := uint32(len(program))
	m.regions[Code] = Region{Kind: Code, Start: 0, Size: size, Permissions: defaultPermissions[Code]}
	m.regions[Data] = Region{Kind: Data, Start: size, Permissions: defaultPermissions[Data]}
	m.regions[Heap] = Region{Kind: Heap, Start: size, Permissions: defaultPermissions[Heap]}

	m.regions[Code].Permissions |= PermWrite
	defer func() { m.regions[Code].Permissions &^= PermWrite }()

	for addr := uint32(0); addr < size; addr += 4 {
		word := uint32(program[addr]) |
			uint32(program[addr+1])<<8 |
			uint32(program[addr+2])<<16 |
			uint32(program[addr+3])<<24
		if err := Write(m, addr, word); err != nil {
			return err
		}
	}

	return nil
}

// LoadData copies an initialized data segment right after the Code region.
// Data is writable only for the duration of the copy. The heap restarts,
// empty, at the next word boundary after the data.
func (m *Manager) LoadData(data []byte) error {
	start := uint32(m.regions[Code].Limit())

	end := uint64(start) + uint64(len(data))
	heapStart := (end + 3) &^ 3
	if heapStart > uint64(m.stackBase()) {
		return fmt.Errorf("%w: data of %d bytes at 0x%08x overlaps the stack",
			ErrOutOfMemory, len(data), start)
	}

	m.regions[Data] = Region{Kind: Data, Start: start, Size: uint32(len(data)), Permissions: defaultPermissions[Data]}
	m.regions[Heap] = Region{Kind: Heap, Start: uint32(heapStart), Permissions: defaultPermissions[Heap]}

	m.regions[Data].Permissions |= PermWrite
	defer func() { m.regions[Data].Permissions &^= PermWrite }()

	for i, b := range data {
		if err := Write(m, start+uint32(i), b); err != nil {
			return err
		}
	}

	return nil
}

// GrowHeap extends the heap by n bytes and returns the previous heap end.
// The heap may not reach into the stack.
func (m *Manager) GrowHeap(n uint32) (uint32, error) {
	heap := &m.regions[Heap]
	old := heap.Limit()
	if old+uint64(n) > uint64(m.stackBase()) {
		return uint32(old), fmt.Errorf("%w: heap of %d bytes cannot grow by %d",
			ErrOutOfMemory, heap.Size, n)
	}
	heap.Size += n
	return uint32(old), nil
}

// AlignmentCheck fails with ErrUnalignedAccess unless addr is a multiple of
// size.
func (m *Manager) AlignmentCheck(size, addr uint32) error {
	if size != 0 && addr%size != 0 {
		return &AccessError{Err: ErrUnalignedAccess, Addr: addr, Size: size}
	}
	return nil
}

// resolve returns the first region, in Code, Data, Heap, Stack order, that
// maps addr.
func (m *Manager) resolve(addr uint32) *Region {
	for i := range m.regions {
		if m.regions[i].Contains(addr, 1) {
			return &m.regions[i]
		}
	}
	return nil
}

// check validates an access of size bytes at addr requiring perm.
func (m *Manager) check(addr, size uint32, perm Permission) error {
	if uint64(addr)+uint64(size) > uint64(m.memory.Len()) {
		return &AccessError{Err: ErrOutOfBounds, Addr: addr, Size: size, Permission: perm}
	}

	region := m.resolve(addr)
	if region == nil {
		return &AccessError{Err: ErrInvalidAddress, Addr: addr, Size: size, Permission: perm}
	}

	if !region.Permissions.Has(perm) {
		return &AccessError{Err: ErrPermissionDenied, Addr: addr, Size: size, Permission: perm}
	}

	// The whole access must stay inside the region owning addr.
	if !region.Contains(addr, size) {
		return &AccessError{Err: ErrInvalidAddress, Addr: addr, Size: size, Permission: perm}
	}

	return nil
}

func sizeOf[T Word]() uint32 {
	var v T
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	}
	return 4
}

// Read loads a little-endian value of type T from addr.
func Read[T Word](m *Manager, addr uint32) (T, error) {
	size := sizeOf[T]()
	if err := m.check(addr, size, PermRead); err != nil {
		return 0, err
	}

	var v uint32
	for i := size; i > 0; i-- {
		v = v<<8 | uint32(m.memory.data[addr+i-1])
	}
	return T(v), nil
}

// Write stores value at addr in little-endian order.
func Write[T Word](m *Manager, addr uint32, value T) error {
	size := sizeOf[T]()
	if err := m.check(addr, size, PermWrite); err != nil {
		return err
	}

	v := uint32(value)
	for i := uint32(0); i < size; i++ {
		m.memory.data[addr+i] = byte(v >> (8 * i))
	}
	return nil
}

// Bytes returns a copy of the memory contents.
func (m *Manager) Bytes() []byte {
	out := make([]byte, m.memory.Len())
	copy(out, m.memory.data)
	return out
}

// Restore replaces the memory contents and region layout. The buffer must
// match the configured size.
func (m *Manager) Restore(contents []byte, regions []Region) error {
	if uint64(len(contents)) != uint64(m.memory.Len()) || len(regions) != int(numRegions) {
		return fmt.Errorf("%w: %d bytes, %d regions", ErrSnapshotMismatch, len(contents), len(regions))
	}
	for i, r := range regions {
		if r.Kind != RegionKind(i) || r.Limit() > uint64(m.memory.Len()) {
			return fmt.Errorf("%w: region %v", ErrSnapshotMismatch, r.Kind)
		}
	}

	copy(m.memory.data, contents)
	copy(m.regions[:], regions)
	return nil
}
