package mem

import (
	"errors"
	"fmt"
)

// Memory errors. Every access failure is an *AccessError wrapping one of
// these, so callers can match with errors.Is and recover the address with
// errors.As.
var (
	ErrOutOfBounds      = errors.New("memory: out of bounds")
	ErrInvalidAddress   = errors.New("memory: invalid address")
	ErrPermissionDenied = errors.New("memory: permission denied")
	ErrUnalignedAccess  = errors.New("memory: unaligned access")
	ErrOutOfMemory      = errors.New("memory: out of memory")
	ErrProgramSize      = errors.New("memory: program size is not a multiple of 4")
	ErrInvalidConfig    = errors.New("memory: invalid configuration")
	ErrSnapshotMismatch = errors.New("memory: snapshot does not match configuration")
)

// AccessError describes a rejected memory access.
type AccessError struct {
	Err        error
	Addr       uint32
	Size       uint32
	Permission Permission
}

func (e *AccessError) Error() string {
	if e.Err == ErrPermissionDenied {
		return fmt.Sprintf("%v: %v at 0x%08x", e.Err, e.Permission, e.Addr)
	}
	return fmt.Sprintf("%v: %d-byte access at 0x%08x", e.Err, e.Size, e.Addr)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
