package dicom

import (
	"fmt"
	"io"
	"sync"

	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
)

// Handling selects how a Reader treats a PixelData element's value at parse time.
type Handling int

const (
	// Eager reads the bytes into memory immediately (or parses fragment structure, for
	// encapsulated data).
	Eager Handling = iota
	// Lazy requires a seekable source; the value is skipped in the current buffer and loaded on
	// first access. Encapsulated data still parses its fragment structure eagerly, since frame
	// addressing depends on it.
	Lazy
	// Skip records the value's offset and length without reading it; any later access fails with
	// PixelDataSkippedError.
	Skip
	// Callback defers the Eager/Lazy/Skip decision to a configured Arbiter, given the parsed
	// PixelDataContext.
	Callback
)

// PixelDataContext is the dimensional and framing metadata available once the reader reaches
// the PixelData element, drawn from the already-parsed elements of the enclosing dataset.
type PixelDataContext struct {
	Rows              int
	Columns           int
	BitsAllocated     int
	SamplesPerPixel   int
	NumberOfFrames    int
	TransferSyntax    transfer.Syntax
	Encapsulated      bool
	DeclaredLength    int64
}

// FrameSize returns rows·cols·samples·⌈bits_allocated/8⌉, the byte size of one native frame.
func (c PixelDataContext) FrameSize() int {
	bytesPerSample := (c.BitsAllocated + 7) / 8
	return c.Rows * c.Columns * c.SamplesPerPixel * bytesPerSample
}

// Arbiter decides, given a PixelDataContext, which of Eager/Lazy/Skip a Callback-handling reader
// should actually use. Returning Callback is a configuration error.
type Arbiter func(PixelDataContext) Handling

// sourceState is the lazy pixel-data source's lifecycle state.
type sourceState int32

const (
	stateNotLoaded sourceState = iota
	stateLoading
	stateLoaded
	stateFailed
)

// lazySource loads its bytes at most once across concurrent callers via a single-flight mutex.
// Every Load takes the mutex, including after the source is Loaded.
type lazySource struct {
	mu     sync.Mutex
	state  sourceState
	reader io.ReaderAt
	offset int64
	length int64
	data   []byte
	err    error
}

// Load reads the backing bytes on first call; subsequent calls return the cached result. A
// failed load leaves the source in the Failed state until Reset returns it to NotLoaded. Load
// takes no context and cannot be cancelled once started.
func (l *lazySource) Load() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case stateLoaded:
		return l.data, nil
	case stateFailed:
		return nil, l.err
	}
	l.state = stateLoading
	buf := make([]byte, l.length)
	if _, err := l.reader.ReadAt(buf, l.offset); err != nil && err != io.EOF {
		l.state = stateFailed
		l.err = fmt.Errorf("dicom: lazy pixel data load at offset %d: %w", l.offset, err)
		return nil, l.err
	}
	l.data = buf
	l.state = stateLoaded
	return buf, nil
}

// Reset transitions a Loading or Failed source back to NotLoaded, making a retry possible. It is
// a no-op once Loaded.
func (l *lazySource) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateLoaded {
		l.state = stateNotLoaded
		l.err = nil
	}
}

// State reports the lazy source's current lifecycle state.
func (l *lazySource) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case stateNotLoaded:
		return "NotLoaded"
	case stateLoading:
		return "Loading"
	case stateLoaded:
		return "Loaded"
	default:
		return "Failed"
	}
}

// skippedSource retains only the value's stream coordinates; any data access fails.
type skippedSource struct {
	offset int64
	length int64
}

// PixelDataValue wraps a pixel-data source (Immediate, Lazy, or Skipped) plus the context needed
// to address individual frames.
type PixelDataValue struct {
	Context      PixelDataContext
	Encapsulated bool
	Fragments    *FragmentSequence // parsed eagerly for encapsulated data, Eager and Lazy alike

	immediate []byte
	lazy      *lazySource
	skipped   *skippedSource
}

// NewImmediatePixelData wraps bytes already held in memory.
func NewImmediatePixelData(ctx PixelDataContext, data []byte) *PixelDataValue {
	return &PixelDataValue{Context: ctx, Encapsulated: ctx.Encapsulated, immediate: data}
}

// NewLazyPixelData wraps a seekable source, deferring the read until first access.
func NewLazyPixelData(ctx PixelDataContext, reader io.ReaderAt, offset, length int64) *PixelDataValue {
	return &PixelDataValue{
		Context:      ctx,
		Encapsulated: ctx.Encapsulated,
		lazy:         &lazySource{reader: reader, offset: offset, length: length},
	}
}

// NewSkippedPixelData records offset/length only; Bytes and GetFrame always fail.
func NewSkippedPixelData(ctx PixelDataContext, offset, length int64) *PixelDataValue {
	return &PixelDataValue{Context: ctx, Encapsulated: ctx.Encapsulated, skipped: &skippedSource{offset: offset, length: length}}
}

// Bytes returns the native pixel-data value's bytes, loading a Lazy source on first access.
// Always fails for a Skipped source or for encapsulated data (use Fragments instead).
func (p *PixelDataValue) Bytes() ([]byte, error) {
	if p.Encapsulated {
		return nil, fmt.Errorf("dicom: pixel data is encapsulated; use Fragments")
	}
	switch {
	case p.immediate != nil:
		return p.immediate, nil
	case p.lazy != nil:
		return p.lazy.Load()
	case p.skipped != nil:
		return nil, &PixelDataSkippedError{}
	}
	return nil, &InvariantViolationError{Detail: "pixel data value has no source"}
}

// GetFrame returns native frame i, bounds-checked against Context.NumberOfFrames (defaulting to
// 1 when absent) and against the dataset's declared dimensions.
func (p *PixelDataValue) GetFrame(i int) ([]byte, error) {
	n := p.Context.NumberOfFrames
	if n == 0 {
		n = 1
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("dicom: frame index %d out of range [0,%d)", i, n)
	}
	size := p.Context.FrameSize()
	if size <= 0 {
		return nil, fmt.Errorf("dicom: frame size is zero; dimensions incomplete")
	}
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	start, end := i*size, (i+1)*size
	if end > len(data) {
		return nil, fmt.Errorf("dicom: frame index %d out of range of %d available bytes", i, len(data))
	}
	return data[start:end], nil
}

// IsSkipped reports whether this value's source was read under Skip handling.
func (p *PixelDataValue) IsSkipped() bool { return p.skipped != nil }

// LazyState reports the lazy source's lifecycle state, or "" if this is not a Lazy source.
func (p *PixelDataValue) LazyState() string {
	if p.lazy == nil {
		return ""
	}
	return p.lazy.State()
}

// ToOwned converts the source to an Immediate, in-memory copy. Fails for a Skipped source, per
// spec: a skipped value's bytes were never retained and cannot be materialized.
func (p *PixelDataValue) ToOwned() (*PixelDataValue, error) {
	if p.skipped != nil {
		return nil, fmt.Errorf("dicom: cannot materialize a Skipped pixel data source")
	}
	cp := &PixelDataValue{Context: p.Context, Encapsulated: p.Encapsulated}
	if p.Fragments != nil {
		fs := *p.Fragments
		fs.BasicOffsetTable = append([]uint32(nil), p.Fragments.BasicOffsetTable...)
		fs.Fragments = make([][]byte, len(p.Fragments.Fragments))
		for i, f := range p.Fragments.Fragments {
			fs.Fragments[i] = append([]byte(nil), f...)
		}
		cp.Fragments = &fs
	}
	if p.Encapsulated {
		return cp, nil
	}
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	cp.immediate = append([]byte(nil), data...)
	return cp, nil
}
