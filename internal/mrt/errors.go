package mrt

import "errors"

// Recoverable per-record errors. A decoder that returns one of these
// (other than ErrTooManyAttrs) causes the framer to drop the current
// record and continue with the next one.
var (
	// ErrTruncated means a field ran past the end of its containing
	// record or TLV.
	ErrTruncated = errors.New("mrt: truncated record")

	// ErrUnknownFamily means an AFI/SAFI or MRT subtype combination maps
	// to no known address family.
	ErrUnknownFamily = errors.New("mrt: unknown address family")

	// ErrBadPrefixLen means a decoded prefix bit length exceeds the
	// address family's bit width.
	ErrBadPrefixLen = errors.New("mrt: prefix length exceeds address width")

	// ErrTooManyAttrs means a path attribute TLV walk produced more
	// attributes than the decoder is willing to retain. Unlike the other
	// three, this is process-fatal in the original C source (it calls
	// errx(1, ...)); here it is returned up through Parser.Run and the
	// caller must decide whether to stop. See DESIGN.md for why Go has
	// no direct analogue to the original's AllocFailure fatal kind.
	ErrTooManyAttrs = errors.New("mrt: too many path attributes")
)
