package jsonsax

import (
	"github.com/shapestone/jsonsax/internal/buffer"
	"github.com/shapestone/jsonsax/internal/codec"
	"github.com/shapestone/jsonsax/internal/grammar"
	"github.com/shapestone/jsonsax/internal/lexer"
	"github.com/shapestone/jsonsax/internal/memory"
)

// Encoding identifies one of the Unicode transformation formats jsonsax
// understands, or AutoDetect for the parser's BOM/heuristic detection.
type Encoding int

const (
	AutoDetect Encoding = iota
	UTF8
	UTF16LE
	UTF16BE
	UTF32LE
	UTF32BE
)

func (e Encoding) String() string { return e.toCodec().String() }

func (e Encoding) toCodec() codec.Encoding {
	switch e {
	case UTF8:
		return codec.UTF8
	case UTF16LE:
		return codec.UTF16LE
	case UTF16BE:
		return codec.UTF16BE
	case UTF32LE:
		return codec.UTF32LE
	case UTF32BE:
		return codec.UTF32BE
	default:
		return codec.UnknownEncoding
	}
}

func fromCodec(e codec.Encoding) Encoding {
	switch e {
	case codec.UTF8:
		return UTF8
	case codec.UTF16LE:
		return UTF16LE
	case codec.UTF16BE:
		return UTF16BE
	case codec.UTF32LE:
		return UTF32LE
	case codec.UTF32BE:
		return UTF32BE
	default:
		return AutoDetect
	}
}

// NativeUTF16Encoding and NativeUTF32Encoding report the byte order
// jsonsax assumes when a caller asks for "UTF-16"/"UTF-32" without
// specifying endianness — both little-endian, matching the platforms
// this module targets.
func NativeUTF16Encoding() Encoding { return UTF16LE }
func NativeUTF32Encoding() Encoding { return UTF32LE }

// NumberAttrs is the number-token attribute bitmask:
// numbers are never parsed to a numeric type, so callers inspect these
// bits plus the raw text to choose their own interpretation.
type NumberAttrs int

const (
	IsNegative NumberAttrs = 1 << iota
	IsHex
	ContainsDecimalPoint
	ContainsExponent
	ContainsNegativeExponent
)

// Has reports whether every bit in want is set in a.
func (a NumberAttrs) Has(want NumberAttrs) bool { return a&want == want }

func fromLexerNumberAttrs(a lexer.NumberAttrs) NumberAttrs {
	var out NumberAttrs
	if a&lexer.IsNegative != 0 {
		out |= IsNegative
	}
	if a&lexer.IsHex != 0 {
		out |= IsHex
	}
	if a&lexer.ContainsDecimalPoint != 0 {
		out |= ContainsDecimalPoint
	}
	if a&lexer.ContainsExponent != 0 {
		out |= ContainsExponent
	}
	if a&lexer.ContainsNegativeExponent != 0 {
		out |= ContainsNegativeExponent
	}
	return out
}

// StringAttrs is the string-token attribute bitmask.
type StringAttrs int

const (
	ContainsNullCharacter StringAttrs = 1 << iota
	ContainsControlCharacter
	ContainsNonASCIICharacter
	ContainsNonBMPCharacter
	ContainsReplacedCharacter
)

// Has reports whether every bit in want is set in a.
func (a StringAttrs) Has(want StringAttrs) bool { return a&want == want }

func fromBufferAttrs(a buffer.Attrs) StringAttrs {
	var out StringAttrs
	if a.Has(buffer.ContainsNullCharacter) {
		out |= ContainsNullCharacter
	}
	if a.Has(buffer.ContainsControlCharacter) {
		out |= ContainsControlCharacter
	}
	if a.Has(buffer.ContainsNonASCIICharacter) {
		out |= ContainsNonASCIICharacter
	}
	if a.Has(buffer.ContainsNonBMPCharacter) {
		out |= ContainsNonBMPCharacter
	}
	if a.Has(buffer.ContainsReplacedCharacter) {
		out |= ContainsReplacedCharacter
	}
	return out
}

// Action is a handler's instruction back to the parser.
type Action int

const (
	// Continue proceeds normally.
	Continue Action = iota
	// Abort stops parsing immediately; Parse returns an AbortedByHandler error.
	Abort
	// TreatAsDuplicate is only meaningful as the return value of
	// Handlers.OnObjectMember: it forces DuplicateObjectMember
	// regardless of whether the built-in member-name set agrees.
	TreatAsDuplicate
)

func (a Action) toGrammar() grammar.Result {
	switch a {
	case Abort:
		return grammar.Abort
	case TreatAsDuplicate:
		return grammar.TreatAsDuplicate
	default:
		return grammar.Continue
	}
}

// Handlers holds the callbacks a Parser invokes as it recognizes each
// event. Every field is optional; a nil handler behaves as if it
// returned Continue (OnEncodingDetected is simply skipped).
type Handlers struct {
	OnEncodingDetected func(enc Encoding)
	OnNull             func(loc Location) Action
	OnBoolean          func(v bool, loc Location) Action
	OnString           func(s []byte, attrs StringAttrs, loc Location) Action
	OnNumber           func(text []byte, attrs NumberAttrs, loc Location) Action
	OnSpecialNumber    func(text []byte, loc Location) Action
	OnStartObject      func(loc Location) Action
	OnObjectMember     func(name []byte, loc Location) Action
	OnEndObject        func(loc Location) Action
	OnStartArray       func(loc Location) Action
	OnArrayItem        func(loc Location) Action
	OnEndArray         func(loc Location) Action
}

// parserConfig collects every Parser option before NewParser builds
// the Parser's internal pipeline from it.
type parserConfig struct {
	suite   memory.Suite
	handlers Handlers

	inputEncoding  Encoding
	stringEncoding Encoding
	numberEncoding Encoding

	maxStringLength int
	maxNumberLength int

	allowBOM                       bool
	allowComments                  bool
	allowSpecialNumbers             bool
	allowHexNumbers                bool
	allowUnescapedControlCharacters bool
	replaceInvalidEncodingSequences bool
	trackObjectMembers              bool
	stopAfterEmbeddedDocument       bool
}

func defaultParserConfig() parserConfig {
	return parserConfig{
		suite:           memory.Default,
		inputEncoding:   AutoDetect,
		stringEncoding:  UTF8,
		numberEncoding:  UTF8,
		allowBOM:        true,
		trackObjectMembers: true,
	}
}

// Option configures a Parser at construction time (a Writer takes
// WriterOption instead). Options are applied as given; no option
// checks its value.
type Option func(*parserConfig)

func WithMemorySuite(s memory.Suite) Option {
	return func(c *parserConfig) { c.suite = s }
}

func WithHandlers(h Handlers) Option {
	return func(c *parserConfig) { c.handlers = h }
}

func WithInputEncoding(enc Encoding) Option {
	return func(c *parserConfig) { c.inputEncoding = enc }
}

func WithStringEncoding(enc Encoding) Option {
	return func(c *parserConfig) { c.stringEncoding = enc }
}

func WithNumberEncoding(enc Encoding) Option {
	return func(c *parserConfig) { c.numberEncoding = enc }
}

func WithMaxStringLength(n int) Option {
	return func(c *parserConfig) { c.maxStringLength = n }
}

func WithMaxNumberLength(n int) Option {
	return func(c *parserConfig) { c.maxNumberLength = n }
}

func WithAllowBOM(v bool) Option {
	return func(c *parserConfig) { c.allowBOM = v }
}

func WithAllowComments(v bool) Option {
	return func(c *parserConfig) { c.allowComments = v }
}

func WithAllowSpecialNumbers(v bool) Option {
	return func(c *parserConfig) { c.allowSpecialNumbers = v }
}

func WithAllowHexNumbers(v bool) Option {
	return func(c *parserConfig) { c.allowHexNumbers = v }
}

func WithAllowUnescapedControlCharacters(v bool) Option {
	return func(c *parserConfig) { c.allowUnescapedControlCharacters = v }
}

func WithReplaceInvalidEncodingSequences(v bool) Option {
	return func(c *parserConfig) { c.replaceInvalidEncodingSequences = v }
}

func WithTrackObjectMembers(v bool) Option {
	return func(c *parserConfig) { c.trackObjectMembers = v }
}

func WithStopAfterEmbeddedDocument(v bool) Option {
	return func(c *parserConfig) { c.stopAfterEmbeddedDocument = v }
}

// writerConfig collects every Writer option before NewWriter builds
// the Writer's internal state from it.
type writerConfig struct {
	suite  memory.Suite
	output func([]byte) error

	outputEncoding    Encoding
	useCRLF           bool
	escapeAllNonASCII bool
	escapeForwardSlash bool
	replaceInvalid    bool
}

func defaultWriterConfig() writerConfig {
	return writerConfig{suite: memory.Default, outputEncoding: UTF8}
}

// WriterOption configures a Writer at construction time.
type WriterOption func(*writerConfig)

func WithWriterMemorySuite(s memory.Suite) WriterOption {
	return func(c *writerConfig) { c.suite = s }
}

func WithOutput(fn func([]byte) error) WriterOption {
	return func(c *writerConfig) { c.output = fn }
}

func WithOutputEncoding(enc Encoding) WriterOption {
	return func(c *writerConfig) { c.outputEncoding = enc }
}

func WithCRLF(v bool) WriterOption {
	return func(c *writerConfig) { c.useCRLF = v }
}

func WithEscapeAllNonASCII(v bool) WriterOption {
	return func(c *writerConfig) { c.escapeAllNonASCII = v }
}

func WithReplaceInvalidOutput(v bool) WriterOption {
	return func(c *writerConfig) { c.replaceInvalid = v }
}

func WithEscapeForwardSlash(v bool) WriterOption {
	return func(c *writerConfig) { c.escapeForwardSlash = v }
}
