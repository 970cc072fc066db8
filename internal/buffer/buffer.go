// Package buffer implements the growable text buffer that accumulates
// a single in-progress string or number token. It doubles its backing
// array on growth, routes every
// growth through a memory.Suite, and tracks the attribute bitmask the
// lexer updates one codepoint at a time.
package buffer

import "github.com/shapestone/jsonsax/internal/memory"

// Attrs is the string-token attribute bitmask.
type Attrs uint8

const (
	ContainsNullCharacter Attrs = 1 << iota
	ContainsControlCharacter
	ContainsNonASCIICharacter
	ContainsNonBMPCharacter
	ContainsReplacedCharacter
)

// Has reports whether every bit in want is set in a.
func (a Attrs) Has(want Attrs) bool { return a&want == want }

// Buffer is a growable byte array plus the attribute bitmask collected
// incrementally as bytes are appended. It is reused
// across tokens: Reset clears the length and attributes but keeps the
// backing array, so steady-state parsing of many small strings does
// not reallocate once the buffer has grown to a representative size.
type Buffer struct {
	suite memory.Suite
	data  []byte
	attrs Attrs
}

// New returns a Buffer that routes growth through suite.
func New(suite memory.Suite) *Buffer {
	if suite == nil {
		suite = memory.Default
	}
	return &Buffer{suite: suite}
}

// Reset clears the buffer for reuse without releasing its backing
// array, the same reset-not-free convention a pooled buffer uses.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.attrs = 0
}

// Release returns the backing array to the memory suite and clears
// the buffer. Parser.Reset and Writer.Reset do not call it.
func (b *Buffer) Release() {
	if b.data != nil {
		b.suite.Free(b.data[:cap(b.data)])
	}
	b.data = nil
	b.attrs = 0
}

// Bytes returns the buffer's current content. The slice is only valid
// until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int { return len(b.data) }

// Attrs returns the attribute bitmask accumulated so far.
func (b *Buffer) Attrs() Attrs { return b.attrs }

// Mark ORs extra bits into the attribute bitmask. Used by the writer
// when a codepoint's classification doesn't correspond to the bytes
// being appended right now — e.g. a replacement codepoint written out
// as a \uXXXX escape.
func (b *Buffer) Mark(extra Attrs) { b.attrs |= extra }

// Append appends raw bytes with no classification, for callers (e.g.
// punctuation, or already-classified escape output) that track
// attributes themselves via Mark. Reports false, leaving the buffer
// untouched, if the suite refuses the allocation required to grow.
func (b *Buffer) Append(p []byte) bool {
	if !b.TryGrow(len(p)) {
		return false
	}
	b.data = append(b.data, p...)
	return true
}

// AppendByte appends a single output byte and classifies it for the
// attribute bitmask. Used for the ASCII fast path (plain string bytes,
// simple escapes). Reports false if the suite refuses the allocation
// required to grow.
func (b *Buffer) AppendByte(c byte) bool {
	if !b.TryGrow(1) {
		return false
	}
	b.data = append(b.data, c)
	b.classifyByte(c)
	return true
}

// AppendRune appends a decoded codepoint's encoding (as produced by
// the codec for the configured output encoding) and classifies it.
// Reports false if the suite refuses the allocation required to grow.
func (b *Buffer) AppendRune(r rune, encoded []byte, replaced bool) bool {
	if !b.TryGrow(len(encoded)) {
		return false
	}
	b.data = append(b.data, encoded...)
	b.classifyRune(r, replaced)
	return true
}

func (b *Buffer) classifyByte(c byte) {
	switch {
	case c == 0x00:
		b.attrs |= ContainsNullCharacter | ContainsControlCharacter
	case c < 0x20:
		b.attrs |= ContainsControlCharacter
	case c >= 0x80:
		b.attrs |= ContainsNonASCIICharacter
	}
}

func (b *Buffer) classifyRune(r rune, replaced bool) {
	switch {
	case r == 0x0000:
		b.attrs |= ContainsNullCharacter | ContainsControlCharacter
	case r < 0x20:
		b.attrs |= ContainsControlCharacter
	}
	if r >= 0x80 {
		b.attrs |= ContainsNonASCIICharacter
	}
	if r > 0xFFFF {
		b.attrs |= ContainsNonBMPCharacter
	}
	if replaced {
		b.attrs |= ContainsReplacedCharacter
	}
}

// TryGrow reports whether the buffer can accept n additional bytes,
// performing the growth if so. Every Append* method routes through
// this, so a suite that refuses allocation is never silently papered
// over by Go's own allocator.
func (b *Buffer) TryGrow(n int) bool {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return true
	}
	grown := b.suite.Realloc(b.data[:cap(b.data)], need)
	if grown == nil {
		return false
	}
	b.data = grown[:len(b.data)]
	return true
}
