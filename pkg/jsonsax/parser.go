package jsonsax

import (
	"context"
	"fmt"
	"io"

	"github.com/shapestone/jsonsax/internal/buffer"
	"github.com/shapestone/jsonsax/internal/codec"
	"github.com/shapestone/jsonsax/internal/grammar"
	"github.com/shapestone/jsonsax/internal/lexer"
)

// Parser is an incremental, push-mode JSON parser. Feed it byte
// chunks with Parse; it never builds a DOM, invoking the configured
// Handlers as each event completes instead. A Parser is not safe for
// concurrent use, and must not be reset or re-entered from inside
// one of its own handler callbacks.
type Parser struct {
	cfg parserConfig

	lex  *lexer.Lexer
	gram *grammar.Machine

	encDetected bool
	encPending  []byte
	inputEnc    codec.Encoding

	inCallback bool
	lastErr    error

	tokenStart, tokenEnd Location
}

// NewParser builds a Parser from the given options. NewParser never
// fails and does not validate option values: an Encoding outside the
// defined constants is not rejected and is decoded and encoded as
// UTF-8.
func NewParser(opts ...Option) *Parser {
	cfg := defaultParserConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Parser{}
	p.configure(cfg)
	return p
}

// configure (re)builds the parser's internal pipeline from cfg in
// place, so that both NewParser and Reset leave callers holding the
// same *Parser identity — anything that already captured p as a
// grammar.Emitter keeps seeing the right receiver.
func (p *Parser) configure(cfg parserConfig) {
	*p = Parser{cfg: cfg}
	p.lex = lexer.New(cfg.suite, lexer.Options{
		AllowComments:                   cfg.allowComments,
		AllowSpecialNumbers:             cfg.allowSpecialNumbers,
		AllowHexNumbers:                 cfg.allowHexNumbers,
		AllowUnescapedControlCharacters: cfg.allowUnescapedControlCharacters,
		ReplaceInvalidEncodingSequences: cfg.replaceInvalidEncodingSequences,
		MaxStringLength:                 cfg.maxStringLength,
		MaxNumberLength:                 cfg.maxNumberLength,
		StringOutputEncoding:            cfg.stringEncoding.toCodec(),
		NumberOutputEncoding:            cfg.numberEncoding.toCodec(),
	})
	p.gram = grammar.New(p, grammar.Options{
		TrackObjectMembers:        cfg.trackObjectMembers,
		StopAfterEmbeddedDocument: cfg.stopAfterEmbeddedDocument,
		Suite:                     cfg.suite,
	})
	if cfg.inputEncoding != AutoDetect {
		p.inputEnc = cfg.inputEncoding.toCodec()
		p.encDetected = true
		p.lex.SetInputEncoding(p.inputEnc)
	}
}

// Reset returns the Parser to its just-constructed state so it can
// parse a new document, preserving its configuration and handlers. It
// is rejected — returning an error rather than silently corrupting
// state — if called from inside a handler callback.
func (p *Parser) Reset() error {
	if p.inCallback {
		return fmt.Errorf("jsonsax: Reset called from inside a handler callback")
	}
	p.configure(p.cfg)
	return nil
}

// InputEncoding reports the encoding the parser has committed to, or
// AutoDetect if detection has not yet run (no bytes fed, or fewer
// than 4 bytes fed with isFinal still false).
func (p *Parser) InputEncoding() Encoding {
	if !p.encDetected {
		return AutoDetect
	}
	return fromCodec(p.inputEnc)
}

// TokenLocation and AfterTokenLocation report the start/end position
// of the token currently being reported to a handler. Valid only
// while a handler callback is executing.
func (p *Parser) TokenLocation() Location      { return p.tokenStart }
func (p *Parser) AfterTokenLocation() Location { return p.tokenEnd }

// Parse feeds the next chunk of input. isFinal indicates this is the
// last chunk of the document; a nil data with isFinal=true flushes
// any pending state. A nil data with nonzero... is impossible in Go
// (len(nil) == 0), so a nil data with a nonzero length can never
// arise here.
//
// Parse never retries internally: once parsing fails, every
// subsequent call returns that same error until Reset. A call rejected
// for re-entrancy does not count as a parse failure.
func (p *Parser) Parse(data []byte, isFinal bool) error {
	if p.lastErr != nil {
		return p.lastErr
	}
	if p.inCallback {
		return fmt.Errorf("jsonsax: Parse called re-entrantly from inside a handler callback")
	}

	if err := p.drive(data, isFinal); err != nil {
		p.lastErr = err
		return err
	}
	return nil
}

// ParseReader drains r in fixed-size chunks and feeds them to Parse,
// stopping early if ctx is canceled between chunks (never mid-chunk),
// a convenience wrapper over repeated Parse calls.
func (p *Parser) ParseReader(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			isFinal := err == io.EOF
			if perr := p.Parse(buf[:n], isFinal); perr != nil {
				return perr
			}
			if isFinal {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return p.Parse(nil, true)
			}
			return err
		}
	}
}

func (p *Parser) drive(data []byte, isFinal bool) error {
	chunk := data
	if !p.encDetected {
		combined := data
		if len(p.encPending) > 0 {
			combined = append(append([]byte(nil), p.encPending...), data...)
		}
		res := codec.Detect(combined, isFinal)
		if res.Need {
			p.encPending = append([]byte(nil), combined...)
			return nil
		}
		if res.Invalid {
			return p.failAt("InvalidEncodingSequence", Location{})
		}
		if res.BOMLen > 0 && !p.cfg.allowBOM {
			return p.failAt("BOMNotAllowed", Location{})
		}
		p.inputEnc = res.Encoding
		p.encDetected = true
		p.encPending = nil
		p.lex.SetInputEncoding(p.inputEnc)
		if p.cfg.handlers.OnEncodingDetected != nil {
			p.cfg.handlers.OnEncodingDetected(fromCodec(p.inputEnc))
		}
		chunk = combined[res.BOMLen:]
	}

	p.lex.Feed(chunk, isFinal)
	for {
		tok, status, err := p.lex.Next()
		if err != nil {
			lerr := err.(*lexer.Error)
			return p.failAt(lerr.Code, Location{Byte: lerr.At.Byte, Line: lerr.At.Line, Column: lerr.At.Column, Depth: p.gram.Depth()})
		}
		switch status {
		case lexer.NeedMore:
			return nil
		case lexer.Done:
			finishLoc := p.lex.Pos()
			if gerr := p.gram.Finish(grammar.Location{Byte: finishLoc.Byte, Line: finishLoc.Line, Column: finishLoc.Column, Depth: p.gram.Depth()}); gerr != nil {
				ge := gerr.(*grammar.Error)
				return p.failAt(ge.Code, Location{Byte: ge.At.Byte, Line: ge.At.Line, Column: ge.At.Column, Depth: ge.At.Depth})
			}
			return nil
		case lexer.Emitted:
			p.tokenStart = Location{Byte: tok.Start.Byte, Line: tok.Start.Line, Column: tok.Start.Column, Depth: p.gram.Depth()}
			p.tokenEnd = Location{Byte: tok.End.Byte, Line: tok.End.Line, Column: tok.End.Column, Depth: p.gram.Depth()}
			if gerr := p.gram.Token(tok); gerr != nil {
				ge := gerr.(*grammar.Error)
				return p.failAt(ge.Code, Location{Byte: ge.At.Byte, Line: ge.At.Line, Column: ge.At.Column, Depth: ge.At.Depth})
			}
			if p.gram.Stopped() {
				return nil
			}
		}
	}
}

func (p *Parser) failAt(mnemonic string, loc Location) error {
	return &ParseError{code: codeByMnemonic(mnemonic), loc: loc}
}

// --- grammar.Emitter implementation: dispatches to Handlers ---

func (p *Parser) invoke(fn func() Action) grammar.Result {
	if fn == nil {
		return grammar.Continue
	}
	p.inCallback = true
	action := fn()
	p.inCallback = false
	return action.toGrammar()
}

func toLocation(l grammar.Location) Location {
	return Location{Byte: l.Byte, Line: l.Line, Column: l.Column, Depth: l.Depth}
}

func (p *Parser) OnNull(loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnNull
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(toLocation(loc))
	})
}

func (p *Parser) OnBoolean(v bool, loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnBoolean
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(v, toLocation(loc))
	})
}

func (p *Parser) OnString(s []byte, attrs buffer.Attrs, loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnString
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(s, fromBufferAttrs(attrs), toLocation(loc))
	})
}

func (p *Parser) OnNumber(text []byte, attrs lexer.NumberAttrs, loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnNumber
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(text, fromLexerNumberAttrs(attrs), toLocation(loc))
	})
}

func (p *Parser) OnSpecialNumber(text []byte, loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnSpecialNumber
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(text, toLocation(loc))
	})
}

func (p *Parser) OnStartObject(loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnStartObject
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(toLocation(loc))
	})
}

func (p *Parser) OnObjectMember(name []byte, loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnObjectMember
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(name, toLocation(loc))
	})
}

func (p *Parser) OnEndObject(loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnEndObject
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(toLocation(loc))
	})
}

func (p *Parser) OnStartArray(loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnStartArray
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(toLocation(loc))
	})
}

func (p *Parser) OnArrayItem(loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnArrayItem
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(toLocation(loc))
	})
}

func (p *Parser) OnEndArray(loc grammar.Location) grammar.Result {
	h := p.cfg.handlers.OnEndArray
	return p.invoke(func() Action {
		if h == nil {
			return Continue
		}
		return h(toLocation(loc))
	})
}

var _ grammar.Emitter = (*Parser)(nil)
