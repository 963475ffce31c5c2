package vr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownAndUnknownVR(t *testing.T) {
	info, ok := Lookup(PN)
	require.True(t, ok)
	assert.Equal(t, byte(' '), info.Padding)
	assert.Equal(t, uint32(64), info.MaxLength)

	_, ok = Lookup(VR("ZZ"))
	assert.False(t, ok)
}

func TestRecognized(t *testing.T) {
	assert.True(t, Recognized(US))
	assert.False(t, Recognized(VR("ZZ")))
}

func TestStringVsNumericClassification(t *testing.T) {
	assert.True(t, CS.IsString())
	assert.False(t, CS.IsNumeric())
	assert.True(t, US.IsNumeric())
	assert.False(t, US.IsString())
	assert.False(t, VR("ZZ").IsString())
}

func TestSequenceAndUndefinedLength(t *testing.T) {
	assert.True(t, SQ.IsSequence())
	assert.False(t, OB.IsSequence())
	assert.True(t, SQ.MayBeUndefinedLength())
	assert.True(t, OB.MayBeUndefinedLength())
	assert.False(t, CS.MayBeUndefinedLength())
}

func TestPaddingByteDefaultsToZeroForBinaryAndUnknown(t *testing.T) {
	assert.Equal(t, byte(0), UI.PaddingByte())
	assert.Equal(t, byte(0), OB.PaddingByte())
	assert.Equal(t, byte(0), VR("ZZ").PaddingByte())
}

func TestUses16BitLengthDistinguishesShortAndLongForms(t *testing.T) {
	assert.True(t, PN.Uses16BitLength())
	assert.False(t, OB.Uses16BitLength())
	assert.False(t, VR("ZZ").Uses16BitLength())
}

func TestElementSizeForFixedWidthVRs(t *testing.T) {
	assert.Equal(t, 2, US.ElementSize())
	assert.Equal(t, 4, UL.ElementSize())
	assert.Equal(t, 0, PN.ElementSize())
}
