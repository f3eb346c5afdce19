// Package identifier models the opaque "data identifier" byte string
// the CLI surface accepts as its second positional argument (spec §6).
// The core treats it as an uninterpreted value: it is surfaced only as
// a logging field and as the payload of the post-repair provenance
// xattr (see SPEC_FULL.md §5). Nothing about its internal structure is
// ever inspected or validated beyond non-emptiness.
package identifier

import "errors"

// ErrEmpty is returned when the caller supplies an empty identifier.
var ErrEmpty = errors.New("data identifier must not be empty")

// DataIdentifier is an opaque byte string supplied by the invocation
// surface (spec §6). It is never parsed or interpreted by the core.
type DataIdentifier struct {
	raw []byte
}

// Parse wraps a raw argument as a DataIdentifier, rejecting only the
// empty string: everything else is opaque by design.
func Parse(arg string) (DataIdentifier, error) {
	if arg == "" {
		return DataIdentifier{}, ErrEmpty
	}
	return DataIdentifier{raw: []byte(arg)}, nil
}

// String renders the identifier for logging and xattr storage.
func (d DataIdentifier) String() string {
	return string(d.raw)
}

// Bytes returns the identifier's raw byte representation.
func (d DataIdentifier) Bytes() []byte {
	return append([]byte(nil), d.raw...)
}
