// Package jsonsax provides an incremental, push-mode JSON parser and a
// mirror-image streaming writer for memory-constrained environments.
//
// Unlike a DOM-building decoder, Parser never allocates a tree: it
// consumes byte chunks one at a time and invokes the callbacks
// configured on it as each structural or value token completes. A
// document may be split into arbitrarily many chunks with no change
// in the sequence of callback invocations — feeding one 10-byte chunk
// at a time produces exactly the same events as feeding the whole
// document in one call.
//
// # Example usage with Parse
//
//	p := jsonsax.NewParser(jsonsax.WithHandlers(jsonsax.Handlers{
//		OnString: func(s []byte, attrs jsonsax.StringAttrs, loc jsonsax.Location) jsonsax.Action {
//			fmt.Printf("string %q at byte %d\n", s, loc.Byte)
//			return jsonsax.Continue
//		},
//	}))
//	if err := p.Parse(data, true); err != nil {
//		// handle error
//	}
//
// # Example usage with ParseReader
//
//	f, err := os.Open("data.json")
//	if err != nil {
//		// handle error
//	}
//	defer f.Close()
//	p := jsonsax.NewParser(jsonsax.WithHandlers(handlers))
//	if err := p.ParseReader(context.Background(), f); err != nil {
//		// handle error
//	}
//
// For a complete program that drives a Parser and a Writer together,
// see cmd/jsonsaxfmt.
package jsonsax
