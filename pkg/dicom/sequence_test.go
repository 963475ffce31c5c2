package dicom

import (
	"bytes"
	"testing"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUndefinedLengthSequenceRoundTrip is scenario E3: a sequence of two empty items encoded
// with the undefined-length/delimiter framing decodes back to two empty item datasets.
func TestUndefinedLengthSequenceRoundTrip(t *testing.T) {
	seqTag := tag.New(0x0008, 0x1140)
	ds, err := BuildDataset(WithSequence(seqTag, NewDataset(), NewDataset()))
	require.NoError(t, err)

	wcfg, err := NewWriterConfig(WithSequenceLengthMode(SequenceLengthUndefined))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewWriter(wcfg).WriteDataset(&buf, ds))

	expectedTail := []byte{0xFE, 0xFF, 0xDD, 0xE0, 0x00, 0x00, 0x00, 0x00}
	assert.Equal(t, expectedTail, buf.Bytes()[len(buf.Bytes())-8:])

	rcfg, err := NewReaderConfig()
	require.NoError(t, err)
	out := NewDataset()
	require.NoError(t, NewReader(&buf, rcfg).ReadDataset(out, 0))

	e, ok := out.Get(seqTag)
	require.True(t, ok)
	require.Len(t, e.Items, 2)
	assert.Equal(t, 0, e.Items[0].Count())
	assert.Equal(t, 0, e.Items[1].Count())
}

// TestEncapsulatedPixelDataFragmentParsing is scenario E4.
func TestEncapsulatedPixelDataFragmentParsing(t *testing.T) {
	var raw []byte
	raw = append(raw, 0xE0, 0x7F, 0x10, 0x00) // PixelData (7FE0,0010), LE
	raw = append(raw, 'O', 'B', 0, 0)          // VR + reserved
	raw = append(raw, 0xFF, 0xFF, 0xFF, 0xFF)  // undefined length
	raw = append(raw, 0xFE, 0xFF, 0x00, 0xE0)  // Item (BOT)
	raw = append(raw, 0x00, 0x00, 0x00, 0x00)  // BOT length 0
	raw = append(raw, 0xFE, 0xFF, 0x00, 0xE0)  // Item (fragment)
	raw = append(raw, 0x04, 0x00, 0x00, 0x00)  // fragment length 4
	raw = append(raw, 0xAA, 0xBB, 0xCC, 0xDD)
	raw = append(raw, 0xFE, 0xFF, 0xDD, 0xE0) // Sequence-Delimitation
	raw = append(raw, 0x00, 0x00, 0x00, 0x00)

	rcfg, err := NewReaderConfig()
	require.NoError(t, err)
	r := NewReader(bytes.NewReader(raw), rcfg)
	ds := NewDataset()
	elem, err := r.ReadElement(ds, 0)
	require.NoError(t, err)

	require.Equal(t, KindPixelData, elem.Kind)
	require.NotNil(t, elem.Pixel)
	assert.True(t, elem.Pixel.Encapsulated)
	require.NotNil(t, elem.Pixel.Fragments)
	assert.Empty(t, elem.Pixel.Fragments.BasicOffsetTable)
	assert.Equal(t, [][]byte{{0xAA, 0xBB, 0xCC, 0xDD}}, elem.Pixel.Fragments.Fragments)
}

// TestMaxSequenceDepthExceeded is the boundary behavior: nesting one level past the configured
// max_sequence_depth fails with DepthExceededError.
func TestMaxSequenceDepthExceeded(t *testing.T) {
	rcfg, err := NewReaderConfig(WithMaxSequenceDepth(1))
	require.NoError(t, err)

	inner := NewDataset()
	middle, err := BuildDataset(WithSequence(tag.New(0x0009, 0x1001), inner))
	require.NoError(t, err)
	outer, err := BuildDataset(WithSequence(tag.New(0x0009, 0x1000), middle))
	require.NoError(t, err)

	wcfg, err := NewWriterConfig(WithSequenceLengthMode(SequenceLengthUndefined))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewWriter(wcfg).WriteDataset(&buf, outer))

	out := NewDataset()
	err = NewReader(&buf, rcfg).ReadDataset(out, 0)
	require.Error(t, err)
	var depthErr *DepthExceededError
	assert.ErrorAs(t, err, &depthErr)
}

// TestPrivateCreatorSurfacedOnlyWhenPrecededByCreatorElement is universal invariant 5: a private
// data tag (g, xxyy) surfaces its creator iff a (g, 00xx) LO element with a non-empty value
// preceded it in the same dataset.
func TestPrivateCreatorSurfacedOnlyWhenPrecededByCreatorElement(t *testing.T) {
	ds := NewDataset()
	ds.Insert(NewStringElementFromString(tag.New(0x0009, 0x0010), vr.LO, "ACME"))
	ds.Insert(NewStringElementFromString(tag.New(0x0009, 0x1001), vr.LO, "private value"))

	creator, ok := ds.PrivateCreator(0x0009, 0x10)
	require.True(t, ok)
	assert.Equal(t, "ACME", creator)

	fresh := NewDataset()
	fresh.Insert(NewStringElementFromString(tag.New(0x0009, 0x1001), vr.LO, "private value"))
	_, ok = fresh.PrivateCreator(0x0009, 0x10)
	assert.False(t, ok)
}

// TestFailOnOrphanPrivateElementsRejectsUnregisteredSlot exercises the FailOnOrphanPrivateElements
// policy wired into ReadDataset: a private-data element whose owning slot was never registered
// with a creator aborts the read.
func TestFailOnOrphanPrivateElementsRejectsUnregisteredSlot(t *testing.T) {
	ds, err := BuildDataset(WithString(tag.New(0x0009, 0x1001), vr.LO, "orphaned"))
	require.NoError(t, err)

	wcfg, err := NewWriterConfig()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewWriter(wcfg).WriteDataset(&buf, ds))

	rcfg, err := NewReaderConfig(WithFailOnOrphanPrivateElements(true))
	require.NoError(t, err)
	out := NewDataset()
	err = NewReader(&buf, rcfg).ReadDataset(out, 0)
	require.Error(t, err)
	var orphanErr *OrphanPrivateElementError
	assert.ErrorAs(t, err, &orphanErr)
}

// TestFailOnOrphanPrivateElementsAllowsRegisteredSlot confirms the same policy does not fire when
// the creator was registered first, matching the wire order the invariant requires.
func TestFailOnOrphanPrivateElementsAllowsRegisteredSlot(t *testing.T) {
	ds, err := BuildDataset(
		WithString(tag.New(0x0009, 0x0010), vr.LO, "ACME"),
		WithString(tag.New(0x0009, 0x1001), vr.LO, "owned"),
	)
	require.NoError(t, err)

	wcfg, err := NewWriterConfig()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewWriter(wcfg).WriteDataset(&buf, ds))

	rcfg, err := NewReaderConfig(WithFailOnOrphanPrivateElements(true))
	require.NoError(t, err)
	out := NewDataset()
	require.NoError(t, NewReader(&buf, rcfg).ReadDataset(out, 0))
}

// TestFailOnDuplicatePrivateSlotsRejectsRepeatedCreator covers the other half of review comment
// 4: the same private-creator string registered under two different slots in one group aborts
// the read when the policy is enabled.
func TestFailOnDuplicatePrivateSlotsRejectsRepeatedCreator(t *testing.T) {
	ds, err := BuildDataset(
		WithString(tag.New(0x0009, 0x0010), vr.LO, "ACME"),
		WithString(tag.New(0x0009, 0x0011), vr.LO, "ACME"),
	)
	require.NoError(t, err)

	wcfg, err := NewWriterConfig()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewWriter(wcfg).WriteDataset(&buf, ds))

	rcfg, err := NewReaderConfig(WithFailOnDuplicatePrivateSlots(true))
	require.NoError(t, err)
	out := NewDataset()
	err = NewReader(&buf, rcfg).ReadDataset(out, 0)
	require.Error(t, err)
	var dupErr *DuplicatePrivateSlotError
	assert.ErrorAs(t, err, &dupErr)
}

// TestFailOnDuplicatePrivateSlotsIsOffByDefault confirms the duplicate-slot policy is a no-op
// unless explicitly enabled, matching spec §9.
func TestFailOnDuplicatePrivateSlotsIsOffByDefault(t *testing.T) {
	ds, err := BuildDataset(
		WithString(tag.New(0x0009, 0x0010), vr.LO, "ACME"),
		WithString(tag.New(0x0009, 0x0011), vr.LO, "ACME"),
		WithString(tag.New(0x0009, 0x1001), vr.LO, "value"),
	)
	require.NoError(t, err)

	wcfg, err := NewWriterConfig()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, NewWriter(wcfg).WriteDataset(&buf, ds))

	rcfg, err := NewReaderConfig()
	require.NoError(t, err)
	out := NewDataset()
	require.NoError(t, NewReader(&buf, rcfg).ReadDataset(out, 0))
}
