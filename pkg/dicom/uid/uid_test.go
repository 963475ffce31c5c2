package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateFormatRules is universal invariant 6: UID format and length validation.
func TestValidateFormatRules(t *testing.T) {
	cases := []struct {
		name    string
		uid     UID
		wantErr bool
	}{
		{"valid simple", "1.2.840.10008.1.1", false},
		{"valid single digit component", "1.2.3", false},
		{"empty", "", true},
		{"too long", UID(makeDigits(65)), true},
		{"max length ok", UID(makeComponent(MaxLength)), false},
		{"leading zero", "1.02.3", true},
		{"empty component", "1..3", true},
		{"non-digit", "1.2a.3", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Validate(c.uid)
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func makeDigits(n int) string {
	s := make([]byte, n)
	for i := range s {
		s[i] = '1'
	}
	return string(s)
}

func makeComponent(n int) string {
	return makeDigits(n)
}

func TestGenerateProducesValidUUIDDerivedUID(t *testing.T) {
	u := Generate()
	assert.NoError(t, Validate(u))
	assert.Contains(t, string(u), "2.25.")
}

func TestGenerateWithRootFallsBackWhenOverLength(t *testing.T) {
	longRoot := UID(makeDigits(60))
	u := GenerateWithRoot(longRoot)
	assert.NoError(t, Validate(u))
}

func TestGenerateDeterministicIsStableForSameInput(t *testing.T) {
	a := GenerateDeterministic("1.2.3", "study-1")
	b := GenerateDeterministic("1.2.3", "study-1")
	assert.Equal(t, a, b)

	c := GenerateDeterministic("1.2.3", "study-2")
	assert.NotEqual(t, a, c)
}

func TestGenerateDeterministicDefaultsRootWhenEmpty(t *testing.T) {
	u := GenerateDeterministic("", "study-1")
	assert.Contains(t, string(u), "2.25.")
	assert.NoError(t, Validate(u))
}
