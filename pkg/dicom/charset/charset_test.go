package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAcceptsDefaultAndKnownTerms(t *testing.T) {
	r := New()
	assert.NoError(t, r.Resolve(nil))
	assert.NoError(t, r.Resolve([]Term{Default}))
	assert.NoError(t, r.Resolve([]Term{"ISO_IR 100"}))
	assert.NoError(t, r.Resolve([]Term{"ISO_IR 192"}))
}

func TestResolveRejectsISO2022AndUnknownTerms(t *testing.T) {
	r := New()
	err := r.Resolve([]Term{"ISO 2022 IR 149"})
	assert.Error(t, err)

	err = r.Resolve([]Term{"NOT_A_REAL_TERM"})
	assert.Error(t, err)
}

func TestDecodeDefaultIsPassthrough(t *testing.T) {
	r := New()
	s, err := r.Decode(nil, []byte("DOE^JOHN"))
	require.NoError(t, err)
	assert.Equal(t, "DOE^JOHN", s)
}

func TestDecodeSingleByteCharmap(t *testing.T) {
	r := New()
	// 0xE9 is e-acute in ISO 8859-1.
	s, err := r.Decode([]Term{"ISO_IR 100"}, []byte{0xE9})
	require.NoError(t, err)
	assert.Equal(t, "é", s)
}

func TestDecodeUnsupportedTermFails(t *testing.T) {
	r := New()
	_, err := r.Decode([]Term{"ISO 2022 IR 6"}, []byte("x"))
	assert.Error(t, err)
}

func TestParseTermsSplitsAndTrims(t *testing.T) {
	terms := ParseTerms(`ISO_IR 100\ISO_IR 144 `)
	require.Len(t, terms, 2)
	assert.Equal(t, Term("ISO_IR 100"), terms[0])
	assert.Equal(t, Term("ISO_IR 144"), terms[1])
}

func TestParseTermsEmptyValueYieldsNil(t *testing.T) {
	assert.Nil(t, ParseTerms(""))
}
