package lexer

import (
	"bytes"
	"testing"

	"github.com/shapestone/jsonsax/internal/codec"
	"github.com/shapestone/jsonsax/internal/memory"
)

func allTokens(t *testing.T, l *Lexer, data []byte, chunkSize int) []Token {
	t.Helper()
	var tokens []Token
	for offset := 0; ; {
		end := offset + chunkSize
		isFinal := false
		if end >= len(data) {
			end = len(data)
			isFinal = true
		}
		l.Feed(data[offset:end], isFinal)
		offset = end
		for {
			tok, status, err := l.Next()
			if err != nil {
				t.Fatalf("unexpected lex error: %v", err)
			}
			switch status {
			case Emitted:
				tokens = append(tokens, tok)
			case NeedMore:
				goto nextChunk
			case Done:
				return tokens
			}
		}
	nextChunk:
	}
}

func newLexer(opts Options) *Lexer {
	l := New(memory.Default, opts)
	l.SetInputEncoding(codec.UTF8)
	return l
}

func TestLexer_Structural(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l, []byte(`{ } [ ] : ,`), 1024)
	want := []TokenKind{TokenLBrace, TokenRBrace, TokenLBracket, TokenRBracket, TokenColon, TokenComma}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexer_Literals(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l, []byte(`true false null`), 1024)
	want := []TokenKind{TokenTrue, TokenFalse, TokenNull}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexer_SpecialNumbersRequireOption(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	l.Feed([]byte(`NaN`), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected an error when special numbers are disallowed")
	}

	l2 := newLexer(Options{AllowSpecialNumbers: true, StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l2, []byte(`NaN Infinity -Infinity`), 1024)
	want := []TokenKind{TokenNaN, TokenInfinity, TokenNegInfinity}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		input string
		attrs NumberAttrs
	}{
		{"0", 0},
		{"-0", IsNegative},
		{"123", 0},
		{"-123", IsNegative},
		{"1.5", ContainsDecimalPoint},
		{"1e10", ContainsExponent},
		{"1E+10", ContainsExponent},
		{"1e-10", ContainsExponent | ContainsNegativeExponent},
		{"1.5e-10", ContainsDecimalPoint | ContainsExponent | ContainsNegativeExponent},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := newLexer(Options{StringOutputEncoding: codec.UTF8})
			toks := allTokens(t, l, []byte(tt.input), 1024)
			if len(toks) != 1 || toks[0].Kind != TokenNumber {
				t.Fatalf("expected a single number token, got %+v", toks)
			}
			if string(toks[0].Text) != tt.input {
				t.Errorf("got text %q, want %q", toks[0].Text, tt.input)
			}
			if toks[0].NumberAttrs != tt.attrs {
				t.Errorf("got attrs %v, want %v", toks[0].NumberAttrs, tt.attrs)
			}
		})
	}
}

func TestLexer_NumberLeadingZeroRejected(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	l.Feed([]byte(`01`), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected leading-zero number to be rejected")
	}
}

func TestLexer_HexNumberWithOption(t *testing.T) {
	l := newLexer(Options{AllowHexNumbers: true, StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l, []byte(`0xFF`), 1024)
	if len(toks) != 1 || toks[0].Kind != TokenNumber || toks[0].NumberAttrs&IsHex == 0 {
		t.Fatalf("expected a hex number token, got %+v", toks)
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`"say \"hi\""`, `say "hi"`},
		{`"line1\nline2"`, "line1\nline2"},
		{`"tab\there"`, "tab\there"},
		{`"slash\/ok"`, "slash/ok"},
		{`"backslash\\"`, `backslash\`},
		{`"A"`, "A"},
		{`"😀"`, "😀"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := newLexer(Options{StringOutputEncoding: codec.UTF8})
			toks := allTokens(t, l, []byte(tt.input), 1024)
			if len(toks) != 1 || toks[0].Kind != TokenString {
				t.Fatalf("expected a single string token, got %+v", toks)
			}
			if !bytes.Equal(toks[0].Text, []byte(tt.want)) {
				t.Errorf("got %q, want %q", toks[0].Text, tt.want)
			}
		})
	}
}

func TestLexer_UnescapedControlCharacterRejectedByDefault(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	l.Feed([]byte("\"a\tb\""), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected an unescaped tab inside a string to be rejected")
	}
}

func TestLexer_UnescapedControlCharacterAllowedWithOption(t *testing.T) {
	l := newLexer(Options{AllowUnescapedControlCharacters: true, StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l, []byte("\"a\tb\""), 1024)
	if len(toks) != 1 || !bytes.Equal(toks[0].Text, []byte("a\tb")) {
		t.Fatalf("got %+v", toks)
	}
}

func TestLexer_UnpairedSurrogateRejected(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	l.Feed([]byte(`"\uD83D"`), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected an unpaired high surrogate escape to be rejected")
	}
}

func TestLexer_InvalidEncodingSequenceRejectedByDefault(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	l.Feed([]byte{0xFF, 0xFE, 0xFD}, true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected invalid UTF-8 bytes to be rejected")
	}
}

func TestLexer_ReplaceInvalidEncodingSequences(t *testing.T) {
	l := newLexer(Options{ReplaceInvalidEncodingSequences: true, StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l, []byte{'"', 0xFF, '"'}, 1024)
	if len(toks) != 1 || toks[0].Kind != TokenString {
		t.Fatalf("expected a single string token, got %+v", toks)
	}
	if !bytes.Contains(toks[0].Text, []byte{0xEF, 0xBF, 0xBD}) {
		t.Errorf("expected U+FFFD in place of the invalid byte, got %q", toks[0].Text)
	}
}

func TestLexer_MaxStringLength(t *testing.T) {
	l := newLexer(Options{MaxStringLength: 3, StringOutputEncoding: codec.UTF8})
	l.Feed([]byte(`"abcdef"`), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected TooLongString to be reported")
	}
}

func TestLexer_MaxNumberLength(t *testing.T) {
	l := newLexer(Options{MaxNumberLength: 3, StringOutputEncoding: codec.UTF8})
	l.Feed([]byte(`123456`), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected TooLongNumber to be reported")
	}
}

func TestLexer_Comments(t *testing.T) {
	l := newLexer(Options{AllowComments: true, StringOutputEncoding: codec.UTF8})
	toks := allTokens(t, l, []byte("1 // a comment\n2 /* block */ 3"), 1024)
	if len(toks) != 3 {
		t.Fatalf("expected 3 number tokens around comments, got %d: %+v", len(toks), toks)
	}
}

func TestLexer_CommentsRejectedByDefault(t *testing.T) {
	l := newLexer(Options{StringOutputEncoding: codec.UTF8})
	l.Feed([]byte("// nope\n1"), true)
	_, _, err := l.Next()
	if err == nil {
		t.Fatalf("expected comments to be rejected without AllowComments")
	}
}

// TestLexer_ChunkingInvariance feeds the same document whole and split
// at every possible byte offset, and checks the resulting token
// sequence is identical each time — the chunk-boundary invariance
// jsonsax's incremental design exists to guarantee.
func TestLexer_ChunkingInvariance(t *testing.T) {
	doc := []byte(`{"name":"Alice éclair","tags":["a","b"],"n":-1.5e10,"ok":true,"x":null}`)

	reference := allTokens(t, newLexer(Options{StringOutputEncoding: codec.UTF8}), doc, len(doc))

	for size := 1; size <= len(doc); size++ {
		got := allTokens(t, newLexer(Options{StringOutputEncoding: codec.UTF8}), doc, size)
		if len(got) != len(reference) {
			t.Fatalf("chunk size %d: got %d tokens, want %d", size, len(got), len(reference))
		}
		for i := range reference {
			if got[i].Kind != reference[i].Kind || !bytes.Equal(got[i].Text, reference[i].Text) {
				t.Fatalf("chunk size %d, token %d: got %+v, want %+v", size, i, got[i], reference[i])
			}
		}
	}
}

func FuzzLexer(f *testing.F) {
	seeds := []string{
		`{}`, `[]`, `null`, `true`, `false`, `123`, `-1.5e10`, `"hi"`,
		`"é"`, `{"a":1,"b":[2,3]}`, `NaN`, `0x1F`,
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("lexer panicked on %q: %v", input, r)
			}
		}()
		l := newLexer(Options{
			AllowComments: true, AllowSpecialNumbers: true, AllowHexNumbers: true,
			ReplaceInvalidEncodingSequences: true, StringOutputEncoding: codec.UTF8,
		})
		l.Feed([]byte(input), true)
		for {
			_, status, err := l.Next()
			if err != nil || status == Done {
				return
			}
		}
	})
}
