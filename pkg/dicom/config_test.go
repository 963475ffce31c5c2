package dicom

import (
	"testing"

	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReaderConfigDefaults(t *testing.T) {
	cfg, err := NewReaderConfig()
	require.NoError(t, err)
	assert.Equal(t, Optional, cfg.PreambleHandling)
	assert.Equal(t, FmiOptional, cfg.FmiHandling)
	assert.Equal(t, InvalidVRMapToUN, cfg.InvalidVR)
	assert.Equal(t, uint32(defaultMaxElementLength), cfg.MaxElementLength)
	assert.Equal(t, 128, cfg.MaxSequenceDepth)
	assert.Equal(t, 100000, cfg.MaxTotalItems)
	assert.Equal(t, Eager, cfg.PixelDataHandling)
	assert.True(t, cfg.RetainUnknownPrivateTags)
	assert.False(t, cfg.FailOnOrphanPrivateElements)
	assert.False(t, cfg.FailOnDuplicatePrivateSlots)
	assert.Equal(t, ValidationNone, cfg.ValidationProfile)
	assert.NotNil(t, cfg.Dictionary)
	assert.NotNil(t, cfg.VendorDictionary)
	assert.NotNil(t, cfg.Charset)
}

func TestNewReaderConfigRejectsZeroLimits(t *testing.T) {
	_, err := NewReaderConfig(WithMaxElementLength(0))
	assert.Error(t, err)

	_, err = NewReaderConfig(WithMaxSequenceDepth(0))
	assert.Error(t, err)

	_, err = NewReaderConfig(WithMaxTotalItems(0))
	assert.Error(t, err)
}

func TestNewReaderConfigCallbackHandlingRequiresArbiter(t *testing.T) {
	_, err := NewReaderConfig(WithPixelDataHandling(Callback))
	assert.Error(t, err)

	arbiter := Arbiter(func(PixelDataContext) Handling { return Eager })
	cfg, err := NewReaderConfig(WithPixelDataHandling(Callback), WithPixelDataArbiter(arbiter))
	require.NoError(t, err)
	assert.Equal(t, Callback, cfg.PixelDataHandling)
	assert.NotNil(t, cfg.PixelDataArbiter)
}

func TestReaderOptionsApplyInOrderLastWins(t *testing.T) {
	cfg, err := NewReaderConfig(WithMaxSequenceDepth(5), WithMaxSequenceDepth(10))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxSequenceDepth)
}

func TestNewWriterConfigDefaults(t *testing.T) {
	cfg, err := NewWriterConfig()
	require.NoError(t, err)
	assert.Equal(t, transfer.Lookup(transfer.ExplicitVRLittleEndian).UID, cfg.TransferSyntax.UID)
	assert.Equal(t, SequenceLengthUndefined, cfg.SequenceLengthMode)
	assert.True(t, cfg.AutoGenerateFMI)
	assert.True(t, cfg.ValidateFmiUIDs)
}

func TestWithPreambleRejectsOversizedInput(t *testing.T) {
	_, err := NewWriterConfig(WithPreamble(make([]byte, 129)))
	assert.Error(t, err)

	cfg, err := NewWriterConfig(WithPreamble([]byte{0xAA, 0xBB}))
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), cfg.Preamble[0])
	assert.Equal(t, byte(0xBB), cfg.Preamble[1])
	assert.Equal(t, byte(0x00), cfg.Preamble[2])
}
