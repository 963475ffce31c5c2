package dicom

import (
	"testing"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDatasetAppliesOptionsInOrder(t *testing.T) {
	ds, err := BuildDataset(
		WithString(tag.Modality, vr.CS, "CT"),
		WithElement(tag.New(0x0028, 0x0100), vr.US, []byte{8, 0}),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Count())

	e, ok := ds.Get(tag.Modality)
	require.True(t, ok)
	assert.Equal(t, KindString, e.Kind)

	e, ok = ds.Get(tag.New(0x0028, 0x0100))
	require.True(t, ok)
	assert.Equal(t, KindNumeric, e.Kind)
}

func TestBuildDatasetPropagatesOptionError(t *testing.T) {
	ctx := PixelDataContext{Encapsulated: true}
	_, err := BuildDataset(WithPixelData(ctx, []byte{1, 2}))
	assert.Error(t, err)
}

func TestWithDictionaryElementResolvesVRFromDictionary(t *testing.T) {
	ds, err := BuildDataset(WithDictionaryElement(tag.Modality, []byte("CT"), tag.DefaultDictionary()))
	require.NoError(t, err)
	e, ok := ds.Get(tag.Modality)
	require.True(t, ok)
	assert.Equal(t, vr.CS, e.VR)
}

func TestResolveVRFallsBackToUNWhenDictionaryMisses(t *testing.T) {
	ds := NewDataset()
	v := ResolveVR(tag.New(0x0009, 0x1001), ds, tag.DefaultDictionary())
	assert.Equal(t, vr.UN, v)
}

func TestResolveVRUsesMultiVRRuleAheadOfDictionary(t *testing.T) {
	ds := NewDataset()
	ds.Insert(NewNumericElement(tag.BitsAllocated, vr.US, []byte{16, 0}, nil))
	v := ResolveVR(tag.PixelData, ds, tag.DefaultDictionary())
	assert.Equal(t, vr.OW, v)
}

func TestWithSequenceBuildsSequenceElement(t *testing.T) {
	item := NewDataset()
	item.Insert(NewStringElementFromString(tag.Modality, vr.CS, "CT"))
	ds, err := BuildDataset(WithSequence(tag.New(0x0008, 0x1140), item))
	require.NoError(t, err)

	e, ok := ds.Get(tag.New(0x0008, 0x1140))
	require.True(t, ok)
	assert.Equal(t, KindSequence, e.Kind)
	require.Len(t, e.Items, 1)
}

func TestWithFileMetaRecordsSOPIdentifiers(t *testing.T) {
	ds, err := BuildDataset(WithFileMeta("1.2.3", "4.5.6"))
	require.NoError(t, err)

	e, ok := ds.Get(tag.SOPClassUID)
	require.True(t, ok)
	s, err := e.GetString(ds.Registry(), nil)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", s)

	e, ok = ds.Get(tag.SOPInstanceUID)
	require.True(t, ok)
	s, err = e.GetString(ds.Registry(), nil)
	require.NoError(t, err)
	assert.Equal(t, "4.5.6", s)
}

func TestWithPixelDataChoosesOBOrOWFromBitsAllocated(t *testing.T) {
	ds, err := BuildDataset(WithPixelData(PixelDataContext{BitsAllocated: 8}, []byte{1, 2}))
	require.NoError(t, err)
	e, ok := ds.Get(tag.PixelData)
	require.True(t, ok)
	assert.Equal(t, vr.OB, e.VR)

	ds, err = BuildDataset(WithPixelData(PixelDataContext{BitsAllocated: 16}, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	e, ok = ds.Get(tag.PixelData)
	require.True(t, ok)
	assert.Equal(t, vr.OW, e.VR)
}

func TestWithEncapsulatedPixelDataBuildsFragmentTrain(t *testing.T) {
	ds, err := BuildDataset(WithEncapsulatedPixelData(PixelDataContext{}, []uint32{0}, [][]byte{{0xAA}}))
	require.NoError(t, err)
	e, ok := ds.Get(tag.PixelData)
	require.True(t, ok)
	require.NotNil(t, e.Pixel)
	assert.True(t, e.Pixel.Encapsulated)
	require.NotNil(t, e.Pixel.Fragments)
	assert.Equal(t, [][]byte{{0xAA}}, e.Pixel.Fragments.Fragments)
}
