package dimse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommandSetEchoRQ(t *testing.T) {
	cs := CommandSet{
		CommandField:        CommandCEchoRQ,
		MessageID:           7,
		AffectedSOPClassUID: VerificationSOPClassUID,
		CommandDataSetType:  DataSetNotPresent,
	}
	raw, err := EncodeCommandSet(cs)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, err := DecodeCommandSet(raw)
	require.NoError(t, err)
	assert.Equal(t, CommandCEchoRQ, got.CommandField)
	assert.Equal(t, uint16(7), got.MessageID)
	assert.Equal(t, VerificationSOPClassUID, got.AffectedSOPClassUID)
	assert.Equal(t, DataSetNotPresent, got.CommandDataSetType)
	assert.False(t, got.IsResponse())
}

func TestEncodeDecodeCommandSetEchoRSPCarriesStatus(t *testing.T) {
	cs := CommandSet{
		CommandField:              CommandCEchoRSP,
		MessageIDBeingRespondedTo: 7,
		AffectedSOPClassUID:       VerificationSOPClassUID,
		CommandDataSetType:        DataSetNotPresent,
		Status:                    StatusSuccess,
	}
	raw, err := EncodeCommandSet(cs)
	require.NoError(t, err)

	got, err := DecodeCommandSet(raw)
	require.NoError(t, err)
	assert.True(t, got.IsResponse())
	assert.Equal(t, uint16(7), got.MessageIDBeingRespondedTo)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestIsResponse(t *testing.T) {
	assert.False(t, CommandSet{CommandField: CommandCEchoRQ}.IsResponse())
	assert.True(t, CommandSet{CommandField: CommandCEchoRSP}.IsResponse())
}
