package jsonsax

import (
	"unsafe"

	"github.com/shapestone/jsonsax/internal/buffer"
	"github.com/shapestone/jsonsax/internal/codec"
	"github.com/shapestone/jsonsax/internal/memory"
)

// Writer is the mirror image of Parser: a sequence of WriteXxx calls
// drives the same container grammar in reverse, producing bytes
// instead of consuming them. Grounded on pkg/json/escape.go's
// escapeTable/appendEscapedString zero-allocation append-to-buffer
// technique, extended to the output-encoding-aware codepoint loop
// below to support any output encoding, not just UTF-8.
type Writer struct {
	cfg writerConfig

	stack []writerFrame
	state writerTop

	out *buffer.Buffer

	err error
}

type writerKind int

const (
	writerObject writerKind = iota
	writerArray
)

// writerSub mirrors internal/grammar's substate shape on the output
// side: where the next WriteXxx call is legal within the current
// container.
type writerSub int

const (
	wSubJustOpened writerSub = iota
	wSubAfterMemberName
	wSubAfterColon
	wSubAfterValue
	wSubAfterComma
)

type writerFrame struct {
	kind writerKind
	sub  writerSub
}

type writerTop int

const (
	wTopPreDocument writerTop = iota
	wTopPostDocument
	wTopStopped
)

// NewWriter builds a Writer from the given options. WithOutput must be
// supplied or every Write call fails immediately, since output is only
// ever delivered through that callback.
func NewWriter(opts ...WriterOption) *Writer {
	cfg := defaultWriterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{
		cfg:   cfg,
		state: wTopPreDocument,
		out:   buffer.New(cfg.suite),
	}
}

// Reset returns the Writer to its just-constructed state, preserving
// configuration, so it can write a new document.
func (w *Writer) Reset() {
	w.stack = w.stack[:0]
	w.state = wTopPreDocument
	w.err = nil
	w.out.Reset()
}

// Depth reports the writer's current container nesting depth.
func (w *Writer) Depth() int { return len(w.stack) }

func (w *Writer) current() *writerFrame {
	if len(w.stack) == 0 {
		return nil
	}
	return &w.stack[len(w.stack)-1]
}

func (w *Writer) fail(code ErrorCode) error {
	w.state = wTopStopped
	e := &WriteError{code: code, loc: Location{Depth: uint64(len(w.stack))}}
	w.err = e
	return e
}

// checkValuePosition reports whether the writer is positioned to
// accept a value-producing call (null, boolean, string, number,
// special number, start-object, start-array) right now.
func (w *Writer) checkValuePosition() error {
	if w.err != nil {
		return w.err
	}
	f := w.current()
	if f == nil {
		if w.state != wTopPreDocument {
			return w.fail(UnexpectedToken)
		}
		return nil
	}
	switch f.sub {
	case wSubJustOpened:
		if f.kind == writerObject {
			return w.fail(UnexpectedToken) // object wants a member name, not a bare value
		}
		return nil
	case wSubAfterColon, wSubAfterComma:
		if f.kind == writerObject && f.sub == wSubAfterComma {
			return w.fail(UnexpectedToken) // object wants a member name after a comma
		}
		return nil
	default:
		return w.fail(UnexpectedToken)
	}
}

func (w *Writer) afterValueWritten() {
	if f := w.current(); f != nil {
		f.sub = wSubAfterValue
		return
	}
	w.state = wTopPostDocument
}

func (w *Writer) emit(p []byte) error {
	if w.cfg.output == nil {
		return w.fail(AbortedByHandler)
	}
	if err := w.cfg.output(p); err != nil {
		return w.fail(AbortedByHandler)
	}
	return nil
}

// WriteNull writes a JSON null in value position.
func (w *Writer) WriteNull() error {
	if err := w.checkValuePosition(); err != nil {
		return err
	}
	if err := w.emit([]byte("null")); err != nil {
		return err
	}
	w.afterValueWritten()
	return nil
}

// WriteBoolean writes a JSON true/false in value position.
func (w *Writer) WriteBoolean(v bool) error {
	if err := w.checkValuePosition(); err != nil {
		return err
	}
	lit := "false"
	if v {
		lit = "true"
	}
	if err := w.emit([]byte(lit)); err != nil {
		return err
	}
	w.afterValueWritten()
	return nil
}

// WriteSpecialNumber writes one of NaN, Infinity, -Infinity verbatim.
// The caller is responsible for only using this when the consumer of
// the output accepts non-standard JSON.
func (w *Writer) WriteSpecialNumber(text string) error {
	if err := w.checkValuePosition(); err != nil {
		return err
	}
	if err := w.emit([]byte(text)); err != nil {
		return err
	}
	w.afterValueWritten()
	return nil
}

// WriteStartObject opens an object in value position.
func (w *Writer) WriteStartObject() error {
	return w.writeStartContainer(writerObject, []byte("{"))
}

// WriteStartArray opens an array in value position.
func (w *Writer) WriteStartArray() error {
	return w.writeStartContainer(writerArray, []byte("["))
}

func (w *Writer) writeStartContainer(kind writerKind, open []byte) error {
	if err := w.checkValuePosition(); err != nil {
		return err
	}
	if err := w.emit(open); err != nil {
		return err
	}
	return w.pushFrame(writerFrame{kind: kind, sub: wSubJustOpened})
}

// pushFrame grows the container stack by one frame, probing the
// memory suite for a representative allocation before growing: if the
// suite refuses, the stack is left untouched and OutOfMemory is
// reported. A probe rather than an in-place []byte reallocation
// because writerFrame is a typed struct, not a byte slice; the probed
// bytes are never retained, only used to ask the suite's permission.
func (w *Writer) pushFrame(f writerFrame) error {
	if len(w.stack) == cap(w.stack) {
		var want writerFrame
		n := int(unsafe.Sizeof(want)) * memory.NextCap(len(w.stack), len(w.stack)+1)
		probe := w.cfg.suite.Realloc(nil, n)
		if probe == nil {
			return w.fail(OutOfMemory)
		}
		w.cfg.suite.Free(probe)
		grown := make([]writerFrame, len(w.stack), memory.NextCap(len(w.stack), len(w.stack)+1))
		copy(grown, w.stack)
		w.stack = grown
	}
	w.stack = append(w.stack, f)
	return nil
}

// WriteEndObject closes the innermost object.
func (w *Writer) WriteEndObject() error {
	return w.writeEndContainer(writerObject, []byte("}"))
}

// WriteEndArray closes the innermost array.
func (w *Writer) WriteEndArray() error {
	return w.writeEndContainer(writerArray, []byte("]"))
}

func (w *Writer) writeEndContainer(kind writerKind, close []byte) error {
	if w.err != nil {
		return w.err
	}
	f := w.current()
	if f == nil || f.kind != kind {
		return w.fail(UnexpectedToken)
	}
	if f.sub != wSubJustOpened && f.sub != wSubAfterValue {
		return w.fail(UnexpectedToken)
	}
	if err := w.emit(close); err != nil {
		return err
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.afterValueWritten()
	return nil
}

// WriteColon writes the ':' separating an object member name from its
// value. Legal only immediately after WriteObjectMemberName.
func (w *Writer) WriteColon() error {
	if w.err != nil {
		return w.err
	}
	f := w.current()
	if f == nil || f.kind != writerObject || f.sub != wSubAfterMemberName {
		return w.fail(UnexpectedToken)
	}
	if err := w.emit([]byte(":")); err != nil {
		return err
	}
	f.sub = wSubAfterColon
	return nil
}

// WriteComma writes the ',' separating container entries. Legal only
// immediately after a completed value or closed nested container.
func (w *Writer) WriteComma() error {
	if w.err != nil {
		return w.err
	}
	f := w.current()
	if f == nil || f.sub != wSubAfterValue {
		return w.fail(UnexpectedToken)
	}
	if err := w.emit([]byte(",")); err != nil {
		return err
	}
	f.sub = wSubAfterComma
	return nil
}

// WriteSpace writes n ASCII space bytes for formatting. Legal in any
// state; never affects the container grammar.
func (w *Writer) WriteSpace(n int) error {
	if w.err != nil {
		return w.err
	}
	if n <= 0 {
		return nil
	}
	spaces := make([]byte, n)
	for i := range spaces {
		spaces[i] = ' '
	}
	return w.emit(spaces)
}

// WriteNewLine writes a single line break, LF or CRLF depending on
// WithCRLF. Legal in any state; never affects the container grammar.
func (w *Writer) WriteNewLine() error {
	if w.err != nil {
		return w.err
	}
	if w.cfg.useCRLF {
		return w.emit([]byte("\r\n"))
	}
	return w.emit([]byte("\n"))
}

// WriteObjectMemberName writes an object member name. It is identical
// to WriteString except it is only legal in member-name position
// (just-opened or after-comma within an object) and transitions to
// expect-colon rather than expect-value/comma.
func (w *Writer) WriteObjectMemberName(data []byte, sourceEncoding Encoding) error {
	if w.err != nil {
		return w.err
	}
	f := w.current()
	if f == nil || f.kind != writerObject || (f.sub != wSubJustOpened && f.sub != wSubAfterComma) {
		return w.fail(UnexpectedToken)
	}
	if err := w.writeStringBytes(data, sourceEncoding); err != nil {
		return err
	}
	f.sub = wSubAfterMemberName
	return nil
}

// WriteString writes a JSON string in value position, decoding data
// from sourceEncoding, validating it (optionally replacing invalid
// sequences with U+FFFD), and re-encoding/escaping it for output.
func (w *Writer) WriteString(data []byte, sourceEncoding Encoding) error {
	if err := w.checkValuePosition(); err != nil {
		return err
	}
	if err := w.writeStringBytes(data, sourceEncoding); err != nil {
		return err
	}
	w.afterValueWritten()
	return nil
}

func (w *Writer) writeStringBytes(data []byte, sourceEncoding Encoding) error {
	w.out.Reset()
	if !w.out.AppendByte('"') {
		return w.fail(OutOfMemory)
	}

	srcEnc := sourceEncoding.toCodec()
	outEnc := w.cfg.outputEncoding.toCodec()
	rest := data
	for len(rest) > 0 {
		r, size, status := codec.DecodeRune(srcEnc, rest, true)
		switch status {
		case codec.DecodeOK:
			rest = rest[size:]
			if err := w.appendEscaped(r, outEnc, false); err != nil {
				return err
			}
		case codec.DecodeInvalid, codec.DecodeIncomplete:
			if !w.cfg.replaceInvalid {
				return w.fail(InvalidEncodingSequence)
			}
			if err := w.appendEscaped(codec.ReplacementRune, outEnc, true); err != nil {
				return err
			}
			rest = rest[skipOneUnit(srcEnc, rest):]
		}
	}

	if !w.out.AppendByte('"') {
		return w.fail(OutOfMemory)
	}
	return w.emit(w.out.Bytes())
}

// skipOneUnit advances past one minimal code unit of enc so a replaced
// invalid sequence cannot stall the loop forever.
func skipOneUnit(enc codec.Encoding, b []byte) int {
	switch enc {
	case codec.UTF16LE, codec.UTF16BE:
		if len(b) >= 2 {
			return 2
		}
	case codec.UTF32LE, codec.UTF32BE:
		if len(b) >= 4 {
			return 4
		}
	}
	if len(b) == 0 {
		return 0
	}
	return 1
}

// appendEscaped writes one source codepoint's JSON-escaped form to
// w.out: quote/backslash always escaped, forward slash escaped only
// with WithEscapeForwardSlash, controls and U+2028/U+2029 always
// escaped, and — only with WithEscapeAllNonASCII — every codepoint
// ≥ U+0080 escaped as \uXXXX (surrogate pair above the BMP).
func (w *Writer) appendEscaped(r rune, outEnc codec.Encoding, replaced bool) error {
	switch {
	case r == '"':
		if !w.out.Append([]byte{'\\', '"'}) {
			return w.fail(OutOfMemory)
		}
	case r == '\\':
		if !w.out.Append([]byte{'\\', '\\'}) {
			return w.fail(OutOfMemory)
		}
	case r == '/' && w.cfg.escapeForwardSlash:
		if !w.out.Append([]byte{'\\', '/'}) {
			return w.fail(OutOfMemory)
		}
	case r < 0x20:
		if err := w.appendNamedOrUnicodeEscape(r); err != nil {
			return err
		}
	case r == 0x2028 || r == 0x2029:
		if err := w.appendUnicodeEscape(uint16(r)); err != nil {
			return err
		}
	case w.cfg.escapeAllNonASCII && r >= 0x80:
		if r <= 0xFFFF {
			if err := w.appendUnicodeEscape(uint16(r)); err != nil {
				return err
			}
		} else {
			hi, lo := surrogatePair(r)
			if err := w.appendUnicodeEscape(hi); err != nil {
				return err
			}
			if err := w.appendUnicodeEscape(lo); err != nil {
				return err
			}
		}
	default:
		var tmp [4]byte
		encoded := codec.EncodeRune(tmp[:0], outEnc, r)
		if !w.out.AppendRune(r, encoded, replaced) {
			return w.fail(OutOfMemory)
		}
		return nil
	}
	if replaced {
		w.out.Mark(buffer.ContainsReplacedCharacter)
	}
	return nil
}

var namedEscapes = map[rune]byte{
	'\b': 'b',
	'\f': 'f',
	'\n': 'n',
	'\r': 'r',
	'\t': 't',
}

func (w *Writer) appendNamedOrUnicodeEscape(r rune) error {
	if esc, ok := namedEscapes[r]; ok {
		if !w.out.Append([]byte{'\\', esc}) {
			return w.fail(OutOfMemory)
		}
		return nil
	}
	return w.appendUnicodeEscape(uint16(r))
}

const hexDigits = "0123456789abcdef"

func (w *Writer) appendUnicodeEscape(u uint16) error {
	if !w.out.Append([]byte{
		'\\', 'u',
		hexDigits[(u>>12)&0xF],
		hexDigits[(u>>8)&0xF],
		hexDigits[(u>>4)&0xF],
		hexDigits[u&0xF],
	}) {
		return w.fail(OutOfMemory)
	}
	return nil
}

func surrogatePair(r rune) (hi, lo uint16) {
	r -= 0x10000
	hi = uint16(0xD800 + (r >> 10))
	lo = uint16(0xDC00 + (r & 0x3FF))
	return
}

// WriteNumber writes a JSON number, decoding data from sourceEncoding
// and validating it against the same grammar internal/lexer enforces
// on input (leading-zero rule, required fraction/exponent digits,
// optional hex). It never reinterprets the digits — valid bytes are
// transcoded to the output encoding unchanged.
func (w *Writer) WriteNumber(data []byte, sourceEncoding Encoding, allowHex bool) error {
	if err := w.checkValuePosition(); err != nil {
		return err
	}

	srcEnc := sourceEncoding.toCodec()
	runes := make([]rune, 0, len(data))
	rest := data
	for len(rest) > 0 {
		r, size, status := codec.DecodeRune(srcEnc, rest, true)
		if status != codec.DecodeOK {
			return w.fail(InvalidEncodingSequence)
		}
		runes = append(runes, r)
		rest = rest[size:]
	}

	if !validNumberText(runes, allowHex) {
		return w.fail(InvalidNumber)
	}

	outEnc := w.cfg.outputEncoding.toCodec()
	w.out.Reset()
	for _, r := range runes {
		var tmp [4]byte
		encoded := codec.EncodeRune(tmp[:0], outEnc, r)
		if !w.out.AppendRune(r, encoded, false) {
			return w.fail(OutOfMemory)
		}
	}
	if err := w.emit(w.out.Bytes()); err != nil {
		return err
	}
	w.afterValueWritten()
	return nil
}

// validNumberText validates a complete, already-decoded number token
// against the grammar internal/lexer's lexNumber enforces one rune at
// a time while resuming across chunks; here the whole token is in
// hand, so the same phases collapse into one pass over runes.
func validNumberText(runes []rune, allowHex bool) bool {
	if len(runes) == 0 {
		return false
	}
	i := 0
	if runes[i] == '-' {
		i++
		if i >= len(runes) {
			return false
		}
	}
	if allowHex && i == 0 && runes[i] == '0' && i+1 < len(runes) && (runes[i+1] == 'x' || runes[i+1] == 'X') {
		i += 2
		start := i
		for i < len(runes) && isHexDigit(runes[i]) {
			i++
		}
		return i > start && i == len(runes)
	}

	if runes[i] == '0' {
		i++
	} else if isDigit(runes[i]) {
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
	} else {
		return false
	}

	if i < len(runes) && runes[i] == '.' {
		i++
		start := i
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
		if i == start {
			return false
		}
	}

	if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
		i++
		if i < len(runes) && (runes[i] == '+' || runes[i] == '-') {
			i++
		}
		start := i
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
		if i == start {
			return false
		}
	}

	return i == len(runes)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
