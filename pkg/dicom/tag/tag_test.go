package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagOrderingMatchesUint32(t *testing.T) {
	a := New(0x0008, 0x0060)
	b := New(0x0010, 0x0010)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, uint32(0x00080060), a.Uint32())
}

func TestTagEquals(t *testing.T) {
	assert.True(t, New(1, 2).Equals(New(1, 2)))
	assert.False(t, New(1, 2).Equals(New(1, 3)))
}

func TestIsPrivateAndGroup0002(t *testing.T) {
	assert.True(t, New(0x0009, 0x0010).IsPrivate())
	assert.False(t, New(0x0008, 0x0010).IsPrivate())
	assert.True(t, New(0x0002, 0x0010).IsGroup0002())
	assert.False(t, New(0x0008, 0x0010).IsGroup0002())
}

func TestIsPrivateCreatorRange(t *testing.T) {
	assert.True(t, New(0x0009, 0x0010).IsPrivateCreator())
	assert.True(t, New(0x0009, 0x00FF).IsPrivateCreator())
	assert.False(t, New(0x0009, 0x000F).IsPrivateCreator())
	assert.False(t, New(0x0009, 0x0100).IsPrivateCreator())
	assert.False(t, New(0x0008, 0x0010).IsPrivateCreator())
}

func TestIsPrivateDataResolvesCreatorSlot(t *testing.T) {
	creator, ok := New(0x0009, 0x1001).IsPrivateData()
	assert.True(t, ok)
	assert.Equal(t, New(0x0009, 0x0010), creator)

	_, ok = New(0x0009, 0x0010).IsPrivateData()
	assert.False(t, ok, "a creator slot itself is not private data")

	_, ok = New(0x0008, 0x1001).IsPrivateData()
	assert.False(t, ok, "even groups are never private")
}

func TestDefaultDictionaryLookup(t *testing.T) {
	dict := DefaultDictionary()
	entry, ok := dict.Lookup(Modality)
	assert.True(t, ok)
	assert.Equal(t, "Modality", entry.Keyword)

	_, ok = dict.Lookup(New(0x0009, 0x1001))
	assert.False(t, ok)
}

func TestNoVendorDictionaryNeverResolves(t *testing.T) {
	_, ok := NoVendorDictionary().Lookup("ACME", 0x01)
	assert.False(t, ok)
}
