// Package uid implements the DICOM UID value type and its three generation strategies:
// UUID-derived (2.25.*), root+timestamp+random, and deterministic-from-name via SHA-256.
//
// Grounded on the teacher's pkg/util.HashUUID hashing pattern (hash bytes, fold into a
// identifier), generalized to the spec's UID format and length bound instead of a bare UUID
// string.
package uid

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxLength is the maximum byte length of a UID, per the DICOM standard.
const MaxLength = 64

// UID is a validated DICOM unique identifier: ASCII, at most MaxLength bytes, of the form
// `digits ('.' digits)*` with no leading zeros on multi-digit components. Equality is
// byte-wise (a plain string comparison suffices).
type UID string

// Verification is the well-known Verification SOP Class UID used by C-ECHO.
const Verification UID = "1.2.840.10008.1.1"

// Validate reports whether u satisfies the UID format and length bound.
func Validate(u UID) error {
	s := string(u)
	if len(s) == 0 {
		return fmt.Errorf("uid: empty")
	}
	if len(s) > MaxLength {
		return fmt.Errorf("uid: %q exceeds %d bytes", s, MaxLength)
	}
	for _, component := range strings.Split(s, ".") {
		if len(component) == 0 {
			return fmt.Errorf("uid: %q has an empty component", s)
		}
		if len(component) > 1 && component[0] == '0' {
			return fmt.Errorf("uid: %q has a leading zero in component %q", s, component)
		}
		for _, c := range component {
			if c < '0' || c > '9' {
				return fmt.Errorf("uid: %q has a non-digit in component %q", s, component)
			}
		}
	}
	return nil
}

// Generate produces a UUID-derived UID of the form 2.25.<128-bit-uuid-as-decimal>.
func Generate() UID {
	id := uuid.New()
	return UID("2.25." + uuidToDecimal(id))
}

// GenerateWithRoot produces a UID rooted at root, followed by a timestamp and a random
// component, e.g. "<root>.<unixnano>.<random>". Fails closed to Generate's UUID form if root
// itself would push the result over MaxLength.
func GenerateWithRoot(root UID) UID {
	suffix := fmt.Sprintf("%d.%s", time.Now().UnixNano(), randomDigits(6))
	candidate := UID(string(root) + "." + suffix)
	if len(candidate) > MaxLength {
		return Generate()
	}
	return candidate
}

// GenerateDeterministic derives a UID from name: SHA-256 of its UTF-8 bytes, then the decimal
// representation of the first 16 hash bytes, prefixed with root (default "2.25" if root is
// empty). Calling this twice with the same name and root yields the same UID.
func GenerateDeterministic(root UID, name string) UID {
	if root == "" {
		root = "2.25"
	}
	sum := sha256.Sum256([]byte(name))
	n := new(big.Int).SetBytes(sum[:16])
	return UID(string(root) + "." + n.String())
}

func uuidToDecimal(id uuid.UUID) string {
	b := id[:]
	n := new(big.Int).SetBytes(b)
	return n.String()
}

func randomDigits(n int) string {
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, new(big.Int).Sub(max, lo))
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano()%max.Int64(), 10)
	}
	return v.Add(v, lo).String()
}
