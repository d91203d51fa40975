package native

import (
	"github.com/pkg/errors"
)

// Scope tracks foreign allocations so they can be released together. Release must run
// on every exit path, typically with defer right after NewScope.
type Scope struct {
	module *Module
	ptrs   []Ptr
}

// NewScope starts an allocation scope on m.
func (m *Module) NewScope() *Scope {
	return &Scope{module: m}
}

// Alloc allocates size bytes that are released with the scope.
func (s *Scope) Alloc(size int) (Ptr, error) {
	ptr, err := s.module.Malloc(size)
	if err != nil {
		return 0, err
	}
	s.ptrs = append(s.ptrs, ptr)
	return ptr, nil
}

// Release frees every allocation of the scope in allocation order. It attempts every
// free even if one fails and reports the first failure. Release is idempotent.
func (s *Scope) Release() error {
	var first error
	for _, ptr := range s.ptrs {
		if err := s.module.Free(ptr); err != nil && first == nil {
			first = errors.Wrapf(err, "release %#x", uint32(ptr))
		}
	}
	s.ptrs = nil
	return first
}

// Len returns the number of live allocations of the scope.
func (s *Scope) Len() int {
	return len(s.ptrs)
}
