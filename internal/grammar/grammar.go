// Package grammar implements the pushdown automaton over JSON's
// container structure: the explicit object/array stack,
// member-name uniqueness tracking, and the emission of structural
// events from a stream of lexer tokens.
//
// The state shape — an explicit container stack of substates rather
// than recursive-descent call frames — is grounded on
// internal/parser/parser.go's objectState/arrayState handling, but
// restructured from "recurse into parseValue and build an AST node"
// into "push/pop a stack entry and call back into an Emitter", since
// this automaton must suspend and resume mid-document
// across chunk boundaries, which a call stack cannot do.
package grammar

import (
	"unsafe"

	"github.com/shapestone/jsonsax/internal/buffer"
	"github.com/shapestone/jsonsax/internal/lexer"
	"github.com/shapestone/jsonsax/internal/memory"
)

// Location is a fully resolved source position: byte offset, line,
// column, and container nesting depth.
type Location struct {
	Byte, Line, Column, Depth uint64
}

// Result is an Emitter callback's instruction to the automaton.
type Result int

const (
	// Continue proceeds normally.
	Continue Result = iota
	// Abort stops parsing immediately; the automaton reports
	// AbortedByHandler at the current location.
	Abort
	// TreatAsDuplicate instructs the automaton to treat the member
	// name just observed as a duplicate regardless of the member-name
	// set's verdict — used by callers implementing a custom
	// duplicate-key policy.
	TreatAsDuplicate
)

// Emitter receives structural and value events as the automaton
// advances. Implementations must not retain byte slices passed to
// On* methods beyond the call; the automaton reuses its buffers.
type Emitter interface {
	OnNull(loc Location) Result
	OnBoolean(v bool, loc Location) Result
	OnString(s []byte, attrs buffer.Attrs, loc Location) Result
	OnNumber(text []byte, attrs lexer.NumberAttrs, loc Location) Result
	OnSpecialNumber(text []byte, loc Location) Result
	OnStartObject(loc Location) Result
	OnObjectMember(name []byte, loc Location) Result
	OnEndObject(loc Location) Result
	OnStartArray(loc Location) Result
	OnArrayItem(loc Location) Result
	OnEndArray(loc Location) Result
}

type containerKind int

const (
	containerObject containerKind = iota
	containerArray
)

// substate tracks where we are within the current container, mirroring
// the "just opened / after name / after colon / after value / after
// comma" states.
type substate int

const (
	subJustOpened substate = iota
	subAfterName
	subAfterColon
	subAfterValue
	subAfterComma
)

type frame struct {
	kind  containerKind
	sub   substate
	names map[string]struct{} // nil when track-object-members is disabled
}

// topState is the automaton's state when the container stack is empty:
// before any value has been seen, after the single top-level value has
// completed, or permanently stopped on error/abort.
type topState int

const (
	topBeforeValue topState = iota
	topAfterValue
	topStopped
)

// Options configures grammar-level behavior sourced from the Parser's
// parser configuration setters.
type Options struct {
	TrackObjectMembers        bool
	StopAfterEmbeddedDocument bool

	// Suite is the allocator the container stack grows through. Nil
	// defaults to memory.Default.
	Suite memory.Suite
}

// Machine is the resumable pushdown automaton. One Machine parses
// exactly one JSON document; Reset prepares it to parse another.
type Machine struct {
	emit  Emitter
	opts  Options
	suite memory.Suite

	stack []frame
	top   topState
}

func New(emit Emitter, opts Options) *Machine {
	suite := opts.Suite
	if suite == nil {
		suite = memory.Default
	}
	return &Machine{emit: emit, opts: opts, suite: suite, top: topBeforeValue}
}

// Reset returns the Machine to its initial state so a new document can
// be parsed, preserving its Emitter and Options.
func (m *Machine) Reset() {
	m.stack = m.stack[:0]
	m.top = topBeforeValue
}

// Depth reports the current container nesting depth.
func (m *Machine) Depth() uint64 { return uint64(len(m.stack)) }

// Stopped reports whether the automaton has reached a terminal state
// (error, AbortedByHandler, or — with StopAfterEmbeddedDocument —
// having completed its one top-level value).
func (m *Machine) Stopped() bool {
	return m.top == topStopped || (m.top == topAfterValue && m.opts.StopAfterEmbeddedDocument)
}

func (m *Machine) loc(base lexer.Pos) Location {
	return Location{Byte: base.Byte, Line: base.Line, Column: base.Column, Depth: m.Depth()}
}

func (m *Machine) current() *frame {
	if len(m.stack) == 0 {
		return nil
	}
	return &m.stack[len(m.stack)-1]
}

// Error is a grammar-level failure: a mnemonic matching one of
// the public ErrorCode names, plus the frozen location it occurred
// at. pkg/jsonsax translates Code into its public ErrorCode type.
type Error struct {
	Code string
	At   Location
}

func (e *Error) Error() string { return e.Code }

func (m *Machine) fail(code string, at Location) error {
	m.top = topStopped
	return &Error{Code: code, At: at}
}

// Token feeds one lexer token into the automaton. The caller drives a
// loop: decode, lex, Token, repeat, until the lexer reports NeedMore
// or Done for the current chunk. Token must not be called again after
// it has returned an error; after a completed top-level value it fails
// with StoppedAfterEmbeddedDocument (or UnexpectedToken without that
// option).
func (m *Machine) Token(tok lexer.Token) error {
	loc := m.loc(tok.Start)

	if len(m.stack) == 0 && m.top == topAfterValue {
		if m.opts.StopAfterEmbeddedDocument {
			return m.fail("StoppedAfterEmbeddedDocument", loc)
		}
		return m.fail("UnexpectedToken", loc)
	}

	if err := m.checkPosition(tok); err != nil {
		return err
	}

	switch tok.Kind {
	case lexer.TokenLBrace:
		return m.openContainer(containerObject, tok)
	case lexer.TokenLBracket:
		return m.openContainer(containerArray, tok)
	case lexer.TokenRBrace:
		return m.closeContainer(containerObject, tok)
	case lexer.TokenRBracket:
		return m.closeContainer(containerArray, tok)
	case lexer.TokenColon:
		m.current().sub = subAfterColon
		return nil
	case lexer.TokenComma:
		m.current().sub = subAfterComma
		return nil
	case lexer.TokenString:
		return m.value(tok, func(loc Location) Result { return m.emit.OnString(tok.Text, tok.StringAttrs, loc) })
	case lexer.TokenNumber:
		return m.value(tok, func(loc Location) Result { return m.emit.OnNumber(tok.Text, tok.NumberAttrs, loc) })
	case lexer.TokenTrue:
		return m.value(tok, func(loc Location) Result { return m.emit.OnBoolean(true, loc) })
	case lexer.TokenFalse:
		return m.value(tok, func(loc Location) Result { return m.emit.OnBoolean(false, loc) })
	case lexer.TokenNull:
		return m.value(tok, func(loc Location) Result { return m.emit.OnNull(loc) })
	default: // TokenNaN, TokenInfinity, TokenNegInfinity
		return m.value(tok, func(loc Location) Result { return m.emit.OnSpecialNumber(tok.Text, loc) })
	}
}

// checkPosition enforces the substate grammar shared by every
// structural and value token: what may legally come next given the
// current container's substate.
func (m *Machine) checkPosition(tok lexer.Token) error {
	f := m.current()
	isCloser := tok.Kind == lexer.TokenRBrace || tok.Kind == lexer.TokenRBracket
	isComma := tok.Kind == lexer.TokenComma
	isColon := tok.Kind == lexer.TokenColon

	if f == nil {
		if isCloser || isComma || isColon {
			return m.fail("UnexpectedToken", m.loc(tok.Start))
		}
		return nil
	}

	switch f.sub {
	case subJustOpened:
		if f.kind == containerObject {
			if tok.Kind == lexer.TokenString || tok.Kind == lexer.TokenRBrace {
				return nil
			}
			return m.fail("UnexpectedToken", m.loc(tok.Start))
		}
		if tok.Kind == lexer.TokenRBracket || (!isComma && !isColon) {
			return nil
		}
		return m.fail("UnexpectedToken", m.loc(tok.Start))
	case subAfterName:
		if isColon {
			return nil
		}
		return m.fail("UnexpectedToken", m.loc(tok.Start))
	case subAfterColon:
		if isComma || isColon || isCloser {
			return m.fail("UnexpectedToken", m.loc(tok.Start))
		}
		return nil
	case subAfterValue:
		if f.kind == containerObject {
			if tok.Kind == lexer.TokenRBrace || isComma {
				return nil
			}
			return m.fail("UnexpectedToken", m.loc(tok.Start))
		}
		if tok.Kind == lexer.TokenRBracket || isComma {
			return nil
		}
		return m.fail("UnexpectedToken", m.loc(tok.Start))
	case subAfterComma:
		if isComma || isColon || isCloser {
			return m.fail("UnexpectedToken", m.loc(tok.Start))
		}
		if f.kind == containerObject && tok.Kind != lexer.TokenString {
			return m.fail("UnexpectedToken", m.loc(tok.Start))
		}
		return nil
	}
	return nil
}

func (m *Machine) openContainer(kind containerKind, tok lexer.Token) error {
	loc := m.loc(tok.Start)

	if parent := m.current(); parent != nil && parent.kind == containerArray {
		if res := m.emit.OnArrayItem(loc); res == Abort {
			return m.fail("AbortedByHandler", loc)
		}
	}

	var res Result
	if kind == containerObject {
		res = m.emit.OnStartObject(loc)
	} else {
		res = m.emit.OnStartArray(loc)
	}
	if res == Abort {
		return m.fail("AbortedByHandler", loc)
	}

	f := frame{kind: kind, sub: subJustOpened}
	if m.opts.TrackObjectMembers && kind == containerObject {
		f.names = make(map[string]struct{})
	}
	return m.pushFrame(f, loc)
}

// pushFrame grows the container stack by one frame, probing the
// memory suite for a representative allocation before growing: if the
// suite refuses, the stack is left untouched and OutOfMemory is
// reported at loc. A probe rather than an in-place []byte reallocation
// because frame is a typed struct, not a byte slice; the probed bytes
// are never retained, only used to ask the suite's permission.
func (m *Machine) pushFrame(f frame, loc Location) error {
	if len(m.stack) == cap(m.stack) {
		var want frame
		n := int(unsafe.Sizeof(want)) * memory.NextCap(len(m.stack), len(m.stack)+1)
		probe := m.suite.Realloc(nil, n)
		if probe == nil {
			return m.fail("OutOfMemory", loc)
		}
		m.suite.Free(probe)
		grown := make([]frame, len(m.stack), memory.NextCap(len(m.stack), len(m.stack)+1))
		copy(grown, m.stack)
		m.stack = grown
	}
	m.stack = append(m.stack, f)
	return nil
}

func (m *Machine) closeContainer(kind containerKind, tok lexer.Token) error {
	f := m.current()
	loc := m.loc(tok.Start)
	if f == nil || f.kind != kind {
		return m.fail("UnexpectedToken", loc)
	}
	m.stack = m.stack[:len(m.stack)-1]
	endLoc := Location{Byte: loc.Byte, Line: loc.Line, Column: loc.Column, Depth: m.Depth()}

	var res Result
	if kind == containerObject {
		res = m.emit.OnEndObject(endLoc)
	} else {
		res = m.emit.OnEndArray(endLoc)
	}
	if res == Abort {
		return m.fail("AbortedByHandler", endLoc)
	}
	m.afterValue()
	return nil
}

// value handles one value-producing token (string/number/bool/null/
// special-number), including the object-member-name special case for
// strings in subJustOpened/subAfterComma position.
func (m *Machine) value(tok lexer.Token, emit func(Location) Result) error {
	f := m.current()
	loc := m.loc(tok.Start)

	if f != nil && f.kind == containerObject && (f.sub == subJustOpened || f.sub == subAfterComma) {
		name := string(tok.Text)
		var dup bool
		if f.names != nil {
			_, dup = f.names[name]
		}
		res := m.emit.OnObjectMember(tok.Text, loc)
		if res == TreatAsDuplicate {
			dup = true
		} else if res == Abort {
			return m.fail("AbortedByHandler", loc)
		}
		if dup {
			return m.fail("DuplicateObjectMember", loc)
		}
		if f.names != nil {
			f.names[name] = struct{}{}
		}
		f.sub = subAfterName
		return nil
	}

	if f != nil && f.kind == containerArray {
		if res := m.emit.OnArrayItem(loc); res == Abort {
			return m.fail("AbortedByHandler", loc)
		}
	}

	res := emit(loc)
	if res == Abort {
		return m.fail("AbortedByHandler", loc)
	}
	m.afterValue()
	return nil
}

func (m *Machine) afterValue() {
	if f := m.current(); f != nil {
		f.sub = subAfterValue
		return
	}
	m.top = topAfterValue
}

// Finish is called once the lexer reports Done (isFinal, no more
// tokens) for the last chunk. It fails with ExpectedMoreTokens if the
// document is incomplete — an open container or no top-level value
// seen yet.
func (m *Machine) Finish(at Location) error {
	if len(m.stack) > 0 || m.top == topBeforeValue {
		return m.fail("ExpectedMoreTokens", at)
	}
	return nil
}
