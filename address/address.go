// Package address implements the hierarchical identifier used to route
// Messages between actors and gateways.
package address

import (
	"errors"
	"strings"
)

// Separator joins elements when an Address is rendered as or parsed from a
// string, e.g. "actor:0" or "timer:1500".
const Separator = ":"

var (
	// ErrMalformed is returned when constructing an Address from a string
	// that contains an empty element (e.g. leading/trailing/doubled ':').
	ErrMalformed = errors.New("address: malformed address string")

	// ErrNotAPrefix is returned by RemovePrefix when the receiver is not
	// prefixed by the given Address.
	ErrNotAPrefix = errors.New("address: not a prefix")
)

// Address is an immutable, ordered sequence of non-empty string elements.
// The zero value is the empty Address, the sentinel "no destination".
type Address struct {
	elements []string
}

// New constructs an Address from a sequence of elements. An empty element
// is rejected with ErrMalformed.
func New(elements ...string) (Address, error) {
	for _, e := range elements {
		if e == "" {
			return Address{}, ErrMalformed
		}
	}
	cp := make([]string, len(elements))
	copy(cp, elements)
	return Address{elements: cp}, nil
}

// MustNew is like New but panics on error. Intended for use with
// compile-time-constant element lists.
func MustNew(elements ...string) Address {
	a, err := New(elements...)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse builds an Address from a Separator-joined string, e.g. "a:b:c".
// An empty element anywhere in the string (including an entirely empty
// string) is rejected with ErrMalformed.
func Parse(s string) (Address, error) {
	if s == "" {
		return Address{}, ErrMalformed
	}
	return New(strings.Split(s, Separator)...)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Empty reports whether this is the zero-element sentinel Address.
func (a Address) Empty() bool { return len(a.elements) == 0 }

// Len returns the number of elements.
func (a Address) Len() int { return len(a.elements) }

// Element returns the element at i. It panics if i is out of range, mirroring
// slice indexing semantics elsewhere in the module.
func (a Address) Element(i int) string { return a.elements[i] }

// Elements returns a defensive copy of the element sequence.
func (a Address) Elements() []string {
	cp := make([]string, len(a.elements))
	copy(cp, a.elements)
	return cp
}

// String renders the Address as a Separator-joined string. The empty
// Address renders as "".
func (a Address) String() string { return strings.Join(a.elements, Separator) }

// Equal reports whether two Addresses have identical element sequences.
func (a Address) Equal(b Address) bool {
	if len(a.elements) != len(b.elements) {
		return false
	}
	for i, e := range a.elements {
		if e != b.elements[i] {
			return false
		}
	}
	return true
}

// Append returns a new Address with suffix elements appended.
func (a Address) Append(suffix ...string) (Address, error) {
	combined := make([]string, 0, len(a.elements)+len(suffix))
	combined = append(combined, a.elements...)
	combined = append(combined, suffix...)
	return New(combined...)
}

// MustAppend is like Append but panics on error.
func (a Address) MustAppend(suffix ...string) Address {
	r, err := a.Append(suffix...)
	if err != nil {
		panic(err)
	}
	return r
}

// IsPrefixOf reports whether a is a (possibly equal) prefix of b: every
// element of a matches the corresponding element of b, in order.
func (a Address) IsPrefixOf(b Address) bool {
	if len(a.elements) > len(b.elements) {
		return false
	}
	for i, e := range a.elements {
		if e != b.elements[i] {
			return false
		}
	}
	return true
}

// RemovePrefix returns the elements of a that remain after removing the
// elements of prefix. Fails with ErrNotAPrefix if prefix.IsPrefixOf(a) does
// not hold.
func (a Address) RemovePrefix(prefix Address) (Address, error) {
	if !prefix.IsPrefixOf(a) {
		return Address{}, ErrNotAPrefix
	}
	rest := a.elements[len(prefix.elements):]
	return New(rest...)
}
