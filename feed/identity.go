package feed

import (
	"errors"
	"fmt"
)

// Identity is an opaque, globally unique principal identifying a caller or
// an actor. The textual form is restricted to lowercase alphanumerics and
// interior dashes so that identities never collide with the '#' separator
// used in post ids.
type Identity string

// ErrInvalidIdentity is returned when a string is not a well-formed
// identity.
var ErrInvalidIdentity = errors.New("invalid identity")

const maxIdentityLen = 63

// ParseIdentity validates s and returns it as an Identity.
func ParseIdentity(s string) (Identity, error) {
	id := Identity(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	return id, nil
}

// Valid reports whether the identity is well-formed: 1..63 characters,
// lowercase alphanumerics and dashes, not starting or ending with a dash.
func (id Identity) Valid() bool {
	if len(id) == 0 || len(id) > maxIdentityLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
			if i == 0 || i == len(id)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (id Identity) String() string { return string(id) }
