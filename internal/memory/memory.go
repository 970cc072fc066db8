// Package memory provides the caller-pluggable allocator that jsonsax's
// text buffers and container stacks route their growth through. The
// grammar's member-name set is an ordinary Go map and does not use it.
//
// A Suite models the realloc+free pair of the original C library: one
// call grows or shrinks a byte slice, the other releases it. Modeling
// allocation as an explicit interface — rather than letting buffers
// grow via plain append — keeps the "allocations obey the suite
// exactly" invariant testable: a caller can inject a Suite that
// refuses allocation past some point to exercise OutOfMemory paths
// (see pkg/jsonsax's TestParser_OOMInjection) without the standard allocator
// ever being in the loop.
package memory

// Suite is the allocator a Parser or Writer routes every growth
// through. Realloc(nil, n) must behave like a fresh allocation of n
// bytes; Realloc(b, 0) is never called. A Suite may refuse an
// allocation by returning nil, which the caller surfaces as
// OutOfMemory — refusal is never fatal to the Suite itself, and a
// refused instance remains safe to Reset.
type Suite interface {
	// Realloc returns a slice with at least n bytes of capacity,
	// preserving the content of b up to min(len(b), n). Returns nil to
	// signal allocation failure.
	Realloc(b []byte, n int) []byte

	// Free releases a slice previously returned by Realloc. Free is a
	// no-op for suites backed by a garbage-collected allocator.
	Free(b []byte)
}

// Default is the zero-configuration Suite: it defers to the Go
// runtime allocator and treats Free as a no-op, the way a
// garbage-collected embedding of the original C API would.
var Default Suite = defaultSuite{}

type defaultSuite struct{}

func (defaultSuite) Realloc(b []byte, n int) []byte {
	if n <= cap(b) {
		return b[:n]
	}
	grown := make([]byte, n, growCap(cap(b), n))
	copy(grown, b)
	return grown
}

func (defaultSuite) Free([]byte) {}

// growCap picks the next capacity using the doubling growth policy
// every growable structure in this module follows (text buffer,
// container stack): double the existing capacity until it covers the
// request, with a floor so small buffers don't re-grow on every byte.
func growCap(have, need int) int {
	const floor = 64
	if have < floor {
		have = floor
	}
	for have < need {
		have *= 2
	}
	return have
}

// NextCap exposes the same doubling-with-floor policy to callers
// outside this package (the container stacks in internal/grammar and
// pkg/jsonsax) that grow a typed slice rather than a []byte, so they
// follow the identical capacity schedule as Buffer.
func NextCap(have, need int) int { return growCap(have, need) }

// Limited wraps a Suite and refuses the Nth and all subsequent
// allocation requests, for OOM-injection testing: injecting failure at
// each allocation in turn must yield either OutOfMemory or success,
// never a different error or memory corruption.
type Limited struct {
	Suite     Suite
	FailAfter int // number of successful Realloc calls permitted before refusal
	calls     int
}

func (l *Limited) Realloc(b []byte, n int) []byte {
	if l.calls >= l.FailAfter {
		l.calls++
		return nil
	}
	l.calls++
	return l.Suite.Realloc(b, n)
}

func (l *Limited) Free(b []byte) { l.Suite.Free(b) }

// Calls reports how many Realloc requests have been observed so far,
// granted or refused.
func (l *Limited) Calls() int { return l.calls }
