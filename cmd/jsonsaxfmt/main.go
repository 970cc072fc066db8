// Command jsonsaxfmt validates and reformats JSON documents using
// jsonsax's incremental Parser and Writer, exercising both halves of
// the library end to end on real files or stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shapestone/jsonsax/pkg/jsonsax"
)

// formatter bridges Parser events to Writer calls, tracking per-depth
// whether a comma is owed before the next entry — the one piece of
// state the event stream doesn't hand back to us directly.
type formatter struct {
	w          *jsonsax.Writer
	indent     int
	depth      int
	needsComma []bool
}

func newFormatter(w *jsonsax.Writer, indent int) *formatter {
	return &formatter{w: w, indent: indent, needsComma: []bool{false}}
}

func (f *formatter) write(err error) jsonsax.Action {
	if err != nil {
		log.Fatalf("jsonsaxfmt: write error: %v", err)
	}
	return jsonsax.Continue
}

func (f *formatter) beforeEntry() {
	if f.needsComma[f.depth] {
		f.write(f.w.WriteComma())
	}
	f.needsComma[f.depth] = true
	if f.indent > 0 {
		f.write(f.w.WriteNewLine())
		f.write(f.w.WriteSpace(f.depth * f.indent))
	}
}

func (f *formatter) openContainer(write func() error) jsonsax.Action {
	f.write(write())
	f.depth++
	f.needsComma = append(f.needsComma, false)
	return jsonsax.Continue
}

func (f *formatter) closeContainer(write func() error) jsonsax.Action {
	wasEmpty := !f.needsComma[f.depth]
	f.needsComma = f.needsComma[:len(f.needsComma)-1]
	f.depth--
	if f.indent > 0 && !wasEmpty {
		f.write(f.w.WriteNewLine())
		f.write(f.w.WriteSpace(f.depth * f.indent))
	}
	return f.write(write())
}

func (f *formatter) handlers() jsonsax.Handlers {
	return jsonsax.Handlers{
		OnNull: func(loc jsonsax.Location) jsonsax.Action { return f.write(f.w.WriteNull()) },
		OnBoolean: func(v bool, loc jsonsax.Location) jsonsax.Action {
			return f.write(f.w.WriteBoolean(v))
		},
		OnString: func(s []byte, attrs jsonsax.StringAttrs, loc jsonsax.Location) jsonsax.Action {
			return f.write(f.w.WriteString(s, jsonsax.UTF8))
		},
		OnNumber: func(text []byte, attrs jsonsax.NumberAttrs, loc jsonsax.Location) jsonsax.Action {
			return f.write(f.w.WriteNumber(text, jsonsax.UTF8, attrs.Has(jsonsax.IsHex)))
		},
		OnSpecialNumber: func(text []byte, loc jsonsax.Location) jsonsax.Action {
			return f.write(f.w.WriteSpecialNumber(string(text)))
		},
		OnStartObject: func(loc jsonsax.Location) jsonsax.Action {
			return f.openContainer(f.w.WriteStartObject)
		},
		OnEndObject: func(loc jsonsax.Location) jsonsax.Action {
			return f.closeContainer(f.w.WriteEndObject)
		},
		OnStartArray: func(loc jsonsax.Location) jsonsax.Action {
			return f.openContainer(f.w.WriteStartArray)
		},
		OnEndArray: func(loc jsonsax.Location) jsonsax.Action {
			return f.closeContainer(f.w.WriteEndArray)
		},
		OnObjectMember: func(name []byte, loc jsonsax.Location) jsonsax.Action {
			f.beforeEntry()
			f.write(f.w.WriteObjectMemberName(name, jsonsax.UTF8))
			f.write(f.w.WriteColon())
			if f.indent > 0 {
				return f.write(f.w.WriteSpace(1))
			}
			return jsonsax.Continue
		},
		OnArrayItem: func(loc jsonsax.Location) jsonsax.Action {
			f.beforeEntry()
			return jsonsax.Continue
		},
	}
}

func main() {
	var (
		indentWidth    = flag.Int("indent", 2, "spaces per indent level (0 disables pretty-printing)")
		crlf           = flag.Bool("crlf", false, "emit CRLF line endings instead of LF")
		escapeNonASCII = flag.Bool("escape-non-ascii", false, "escape all non-ASCII characters as \\uXXXX")
		validateOnly   = flag.Bool("validate", false, "only validate; print nothing on success, print the error and exit 1 on invalid input")
	)
	flag.Parse()

	input := os.Stdin
	if args := flag.Args(); len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			log.Fatalf("jsonsaxfmt: %v", err)
		}
		defer f.Close()
		input = f
	}

	if *validateOnly {
		if err := jsonsax.ValidateReader(input); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	w := jsonsax.NewWriter(
		jsonsax.WithOutput(func(p []byte) error {
			_, err := os.Stdout.Write(p)
			return err
		}),
		jsonsax.WithCRLF(*crlf),
		jsonsax.WithEscapeAllNonASCII(*escapeNonASCII),
	)

	f := newFormatter(w, *indentWidth)
	p := jsonsax.NewParser(jsonsax.WithHandlers(f.handlers()))
	if err := p.ParseReader(context.Background(), input); err != nil {
		log.Fatalf("jsonsaxfmt: %v", err)
	}
	fmt.Println()
}
