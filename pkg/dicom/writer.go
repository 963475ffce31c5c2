package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
)

// CountingWriter wraps an io.Writer, tracking the total number of bytes written. Grounded on the
// teacher's writer.go CountingWriter; it is exported for callers and is not used by this
// package's own writers.
type CountingWriter struct {
	Writer io.Writer
	Count  atomic.Int64
}

func (w *CountingWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	w.Count.Add(int64(n))
	return n, err
}

// Writer is the element codec's writer: it encodes elements and whole datasets in the active
// (Explicit/Implicit)×(Little/Big Endian) combination.
type Writer struct {
	cfg *WriterConfig
}

// NewWriter returns a Writer configured by cfg.
func NewWriter(cfg *WriterConfig) *Writer { return &Writer{cfg: cfg} }

func (w *Writer) explicitVR() bool   { return w.cfg.TransferSyntax.ExplicitVR }
func (w *Writer) littleEndian() bool { return w.cfg.TransferSyntax.LittleEndian }
func (w *Writer) order() binary.ByteOrder {
	if w.littleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// WriteDataset iterates ds in sorted tag order and writes each element, skipping group-0002
// (File Meta Information) elements, which belong only to the Part-10 FMI block.
func (w *Writer) WriteDataset(out io.Writer, ds *Dataset) error {
	for _, e := range ds.Iter() {
		if e.Tag.IsGroup0002() {
			continue
		}
		if err := w.WriteElement(out, e); err != nil {
			return fmt.Errorf("dicom: writing %s: %w", e.Tag, err)
		}
	}
	return nil
}

// WriteElement emits one element in the active transfer syntax, dispatching sequences and
// encapsulated pixel data to their dedicated encoders.
func (w *Writer) WriteElement(out io.Writer, e *Element) error {
	switch e.Kind {
	case KindSequence:
		return w.writeSequence(out, e)
	case KindPixelData:
		return w.writePixelData(out, e)
	case KindFragmentSequence:
		return w.writeFragments(out, e.Tag, e.VR, e.Fragments)
	default:
		return w.writeValueElement(out, e.Tag, e.VR, w.pad(e.VR, e.raw))
	}
}

func (w *Writer) pad(v vr.VR, raw []byte) []byte {
	if len(raw)%2 == 0 {
		return raw
	}
	return append(append([]byte(nil), raw...), v.PaddingByte())
}

func (w *Writer) writeTag(out io.Writer, t Tag) error {
	buf := make([]byte, 4)
	w.order().PutUint16(buf[0:2], t.Group)
	w.order().PutUint16(buf[2:4], t.Element)
	_, err := out.Write(buf)
	return err
}

// writeHeader emits tag+VR+length for a concrete (non-undefined) length value.
func (w *Writer) writeHeader(out io.Writer, t Tag, v vr.VR, length uint32) error {
	if err := w.writeTag(out, t); err != nil {
		return err
	}
	if !w.explicitVR() {
		buf := make([]byte, 4)
		w.order().PutUint32(buf, length)
		_, err := out.Write(buf)
		return err
	}
	if _, err := out.Write([]byte(v)); err != nil {
		return err
	}
	info, _ := vr.Lookup(v)
	if info.Uses16BitLength {
		buf := make([]byte, 2)
		w.order().PutUint16(buf, uint16(length))
		_, err := out.Write(buf)
		return err
	}
	if _, err := out.Write([]byte{0, 0}); err != nil { // reserved
		return err
	}
	buf := make([]byte, 4)
	w.order().PutUint32(buf, length)
	_, err := out.Write(buf)
	return err
}

func (w *Writer) writeValueElement(out io.Writer, t Tag, v vr.VR, raw []byte) error {
	if err := w.writeHeader(out, t, v, uint32(len(raw))); err != nil {
		return err
	}
	_, err := out.Write(raw)
	return err
}

// writeSequence emits a sequence per cfg.SequenceLengthMode: Undefined always frames with
// Item/Sequence delimiters; Defined pre-computes lengths by rendering each item into a buffer and falls back to
// Undefined if any computed length would overflow a 32-bit field.
func (w *Writer) writeSequence(out io.Writer, e *Element) error {
	if w.cfg.SequenceLengthMode == SequenceLengthDefined {
		if bodies, ok := w.tryEncodeDefinedSequence(e.Items); ok {
			return w.writeDefinedSequence(out, e.Tag, bodies)
		}
	}
	return w.writeUndefinedSequence(out, e.Tag, e.Items)
}

func (w *Writer) writeUndefinedSequence(out io.Writer, t Tag, items []*Dataset) error {
	if err := w.writeHeader(out, t, vr.SQ, undefinedLength); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.writeTag(out, tag.Item); err != nil {
			return err
		}
		if err := w.writeLen(out, undefinedLength); err != nil {
			return err
		}
		if err := w.WriteDatasetAllowPrivate(out, item); err != nil {
			return err
		}
		if err := w.writeTag(out, tag.ItemDelimitationItem); err != nil {
			return err
		}
		if err := w.writeLen(out, 0); err != nil {
			return err
		}
	}
	if err := w.writeTag(out, tag.SequenceDelimitationItem); err != nil {
		return err
	}
	return w.writeLen(out, 0)
}

// tryEncodeDefinedSequence pre-renders each item's body to compute its exact byte length. It
// reports ok=false if any item or the total sequence body would overflow a 32-bit length field.
func (w *Writer) tryEncodeDefinedSequence(items []*Dataset) ([][]byte, bool) {
	bodies := make([][]byte, len(items))
	var total uint64
	for i, item := range items {
		buf := &bytes.Buffer{}
		if err := w.WriteDatasetAllowPrivate(buf, item); err != nil {
			return nil, false
		}
		if uint64(buf.Len()) > 0xFFFFFFFE {
			return nil, false
		}
		bodies[i] = buf.Bytes()
		total += uint64(8 + len(bodies[i])) // item header + body
	}
	if total > 0xFFFFFFFE {
		return nil, false
	}
	return bodies, true
}

func (w *Writer) writeDefinedSequence(out io.Writer, t Tag, bodies [][]byte) error {
	var total uint32
	for _, b := range bodies {
		total += uint32(8 + len(b))
	}
	if err := w.writeHeader(out, t, vr.SQ, total); err != nil {
		return err
	}
	for _, b := range bodies {
		if err := w.writeTag(out, tag.Item); err != nil {
			return err
		}
		if err := w.writeLen(out, uint32(len(b))); err != nil {
			return err
		}
		if _, err := out.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeLen(out io.Writer, length uint32) error {
	buf := make([]byte, 4)
	w.order().PutUint32(buf, length)
	_, err := out.Write(buf)
	return err
}

// WriteDatasetAllowPrivate writes ds's elements in sorted order without skipping group-0002
// elements; used for sequence item bodies, which may legitimately carry group-0002-shaped
// private data in pathological inputs the writer must still round-trip.
func (w *Writer) WriteDatasetAllowPrivate(out io.Writer, ds *Dataset) error {
	for _, e := range ds.Iter() {
		if err := w.WriteElement(out, e); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFragments(out io.Writer, t Tag, v vr.VR, fs *FragmentSequence) error {
	if err := w.writeHeader(out, t, v, undefinedLength); err != nil {
		return err
	}
	if err := w.writeTag(out, tag.Item); err != nil {
		return err
	}
	botBytes := make([]byte, 4*len(fs.BasicOffsetTable))
	for i, off := range fs.BasicOffsetTable {
		w.order().PutUint32(botBytes[i*4:], off)
	}
	if err := w.writeLen(out, uint32(len(botBytes))); err != nil {
		return err
	}
	if _, err := out.Write(botBytes); err != nil {
		return err
	}
	for _, frag := range fs.Fragments {
		if err := w.writeTag(out, tag.Item); err != nil {
			return err
		}
		if err := w.writeLen(out, uint32(len(frag))); err != nil {
			return err
		}
		if _, err := out.Write(frag); err != nil {
			return err
		}
	}
	if err := w.writeTag(out, tag.SequenceDelimitationItem); err != nil {
		return err
	}
	return w.writeLen(out, 0)
}

func (w *Writer) writePixelData(out io.Writer, e *Element) error {
	if e.Pixel == nil {
		return &InvariantViolationError{Detail: "pixel data element has no value"}
	}
	if e.Pixel.Encapsulated {
		if e.Pixel.Fragments == nil {
			return fmt.Errorf("dicom: encapsulated pixel data has no parsed fragments to write")
		}
		return w.writeFragments(out, e.Tag, e.VR, e.Pixel.Fragments)
	}
	data, err := e.Pixel.Bytes()
	if err != nil {
		return err
	}
	return w.writeValueElement(out, e.Tag, e.VR, w.pad(e.VR, data))
}
