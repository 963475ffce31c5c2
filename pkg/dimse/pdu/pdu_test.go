package pdu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociateRQRoundTrip(t *testing.T) {
	rq := &AssociateRQ{
		CalledAETitle:      PadAETitle("CALLED"),
		CallingAETitle:     PadAETitle("CALLING"),
		ApplicationContext: ApplicationContextName,
		PresentationContexts: []PresentationContextRQ{{
			ID:               1,
			AbstractSyntax:   "1.2.840.10008.1.1",
			TransferSyntaxes: []string{"1.2.840.10008.1.2"},
		}},
		UserInfo: UserInformation{
			MaxPDULength:           16384,
			ImplementationClassUID: "1.2.3.4",
			ImplementationVersion:  "TEST_1_0",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, rq.Encode(&buf))

	p, err := ReadPDU(&buf)
	require.NoError(t, err)

	got, ok := p.(*AssociateRQ)
	require.True(t, ok)
	assert.Equal(t, "CALLED", TrimAETitle(got.CalledAETitle))
	assert.Equal(t, "CALLING", TrimAETitle(got.CallingAETitle))
	assert.Equal(t, ApplicationContextName, got.ApplicationContext)
	require.Len(t, got.PresentationContexts, 1)
	assert.Equal(t, byte(1), got.PresentationContexts[0].ID)
	assert.Equal(t, "1.2.840.10008.1.1", got.PresentationContexts[0].AbstractSyntax)
	assert.Equal(t, []string{"1.2.840.10008.1.2"}, got.PresentationContexts[0].TransferSyntaxes)
	assert.Equal(t, uint32(16384), got.UserInfo.MaxPDULength)
	assert.Equal(t, "1.2.3.4", got.UserInfo.ImplementationClassUID)
}

func TestAssociateACRoundTrip(t *testing.T) {
	ac := &AssociateAC{
		CalledAETitle:      PadAETitle("CALLED"),
		CallingAETitle:     PadAETitle("CALLING"),
		ApplicationContext: ApplicationContextName,
		PresentationContexts: []PresentationContextAC{{
			ID:             1,
			Result:         ResultAcceptance,
			TransferSyntax: "1.2.840.10008.1.2",
		}},
		UserInfo: UserInformation{MaxPDULength: 16384},
	}

	var buf bytes.Buffer
	require.NoError(t, ac.Encode(&buf))

	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	got := p.(*AssociateAC)
	require.Len(t, got.PresentationContexts, 1)
	assert.Equal(t, ResultAcceptance, got.PresentationContexts[0].Result)
	assert.Equal(t, "1.2.840.10008.1.2", got.PresentationContexts[0].TransferSyntax)
}

func TestAssociateACRejectedContextCarriesNoTransferSyntax(t *testing.T) {
	ac := &AssociateAC{
		CalledAETitle:  PadAETitle("A"),
		CallingAETitle: PadAETitle("B"),
		PresentationContexts: []PresentationContextAC{{
			ID:     1,
			Result: ResultAbstractSyntaxNotSupported,
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, ac.Encode(&buf))
	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	got := p.(*AssociateAC)
	assert.Equal(t, ResultAbstractSyntaxNotSupported, got.PresentationContexts[0].Result)
	assert.Empty(t, got.PresentationContexts[0].TransferSyntax)
}

func TestAssociateRJRoundTrip(t *testing.T) {
	rj := &AssociateRJ{Result: RJResultPermanent, Source: RJSourceServiceUser, Reason: RJReasonCalledAETitleNotRecognized}
	var buf bytes.Buffer
	require.NoError(t, rj.Encode(&buf))
	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	got := p.(*AssociateRJ)
	assert.Equal(t, RJResultPermanent, got.Result)
	assert.Equal(t, RJSourceServiceUser, got.Source)
	assert.Equal(t, RJReasonCalledAETitleNotRecognized, got.Reason)
}

func TestAbortRoundTrip(t *testing.T) {
	a := &Abort{Source: AbortSourceServiceProvider, Reason: AbortReasonUnexpectedPDU}
	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf))
	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	got := p.(*Abort)
	assert.Equal(t, AbortSourceServiceProvider, got.Source)
	assert.Equal(t, AbortReasonUnexpectedPDU, got.Reason)
}

func TestReleaseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&ReleaseRQ{}).Encode(&buf))
	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	_, ok := p.(*ReleaseRQ)
	assert.True(t, ok)

	buf.Reset()
	require.NoError(t, (&ReleaseRP{}).Encode(&buf))
	p, err = ReadPDU(&buf)
	require.NoError(t, err)
	_, ok = p.(*ReleaseRP)
	assert.True(t, ok)
}

func TestDataTFRoundTripSingleFragment(t *testing.T) {
	dtf := &DataTF{Items: []PresentationDataValue{
		NewPDV(1, true, true, []byte{0x01, 0x02, 0x03}),
	}}
	var buf bytes.Buffer
	require.NoError(t, dtf.Encode(&buf))

	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	got := p.(*DataTF)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].IsCommand())
	assert.True(t, got.Items[0].IsLastFragment())
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got.Items[0].Data)
}

func TestDataTFMultipleFragmentsFlags(t *testing.T) {
	dtf := &DataTF{Items: []PresentationDataValue{
		NewPDV(1, false, false, []byte{0xAA}),
		NewPDV(1, false, true, []byte{0xBB}),
	}}
	var buf bytes.Buffer
	require.NoError(t, dtf.Encode(&buf))

	p, err := ReadPDU(&buf)
	require.NoError(t, err)
	got := p.(*DataTF)
	require.Len(t, got.Items, 2)
	assert.False(t, got.Items[0].IsCommand())
	assert.False(t, got.Items[0].IsLastFragment())
	assert.True(t, got.Items[1].IsLastFragment())
}

func TestPadAndTrimAETitle(t *testing.T) {
	padded := PadAETitle("AE")
	assert.Equal(t, 16, len(padded))
	assert.Equal(t, "AE", TrimAETitle(padded))

	truncated := PadAETitle("THIS_TITLE_IS_WAY_TOO_LONG_FOR_16_BYTES")
	assert.Equal(t, 16, len(truncated))
}

func TestReadPDURejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeader(&buf, TypeData, MaxPDULength+1))
	_, err := ReadPDU(&buf)
	assert.Error(t, err)
}

func TestReadPDUUnknownType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeader(&buf, 0xFF, 0))
	_, err := ReadPDU(&buf)
	assert.Error(t, err)
}
