package vm

import "strings"

// Perm is the set of permission bits of a page table entry.
type Perm uint8

// Permission bits. PermCOW marks a read-only page whose frame is shared and
// must be copied on the first write.
const (
	PermR Perm = 1 << iota
	PermW
	PermX
	PermU
	PermCOW
)

// Has reports whether all the bits in q are set in p.
func (p Perm) Has(q Perm) bool {
	return p&q == q
}

func (p Perm) String() string {
	var sb strings.Builder

	for _, f := range []struct {
		bit  Perm
		name byte
	}{
		{PermR, 'r'}, {PermW, 'w'}, {PermX, 'x'}, {PermU, 'u'}, {PermCOW, 'c'},
	} {
		if p.Has(f.bit) {
			sb.WriteByte(f.name)
		} else {
			sb.WriteByte('-')
		}
	}

	return sb.String()
}

// Access is the kind of a user memory access.
type Access uint8

// Access kinds.
const (
	AccessRead Access = iota
	AccessWrite
	AccessExec
)

// Required returns the permission bits a page must carry to allow the access.
func (a Access) Required() Perm {
	switch a {
	case AccessWrite:
		return PermU | PermW
	case AccessExec:
		return PermU | PermX
	default:
		return PermU | PermR
	}
}
