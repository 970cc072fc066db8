package jsonsax

import (
	"bytes"
	"context"
	"io"
)

// Version reports the module's semantic version components.
func Version() (major, minor, micro int) { return 0, 1, 0 }

// Valid reports whether data is a single well-formed JSON document,
// reusing the incremental Parser instead of building a DOM just to
// throw it away.
func Valid(data []byte) bool {
	p := NewParser()
	return p.Parse(data, true) == nil
}

// ValidateReader reports whether r contains a single well-formed JSON
// document, reading it incrementally rather than buffering it whole.
func ValidateReader(r io.Reader) error {
	p := NewParser()
	return p.ParseReader(context.Background(), r)
}

// validateReaderChunked exists for tests that want to exercise
// ValidateReader's chunk-boundary behavior without relying on a real
// io.Reader's natural read sizes.
func validateReaderChunked(data []byte, chunkSize int) error {
	p := NewParser()
	return p.ParseReader(context.Background(), &fixedChunkReader{r: bytes.NewReader(data), size: chunkSize})
}

type fixedChunkReader struct {
	r    *bytes.Reader
	size int
}

func (f *fixedChunkReader) Read(p []byte) (int, error) {
	if len(p) > f.size {
		p = p[:f.size]
	}
	return f.r.Read(p)
}
