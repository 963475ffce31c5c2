// Package charset implements the Registry collaborator the core codec consults to decode
// string-VR element values according to the Specific Character Set (0008,0005) in effect for a
// dataset. Grounded on golang.org/x/text's encoding framework, the same library the pack's
// giesekow-go-netdicom example wires in for this concern.
package charset

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Term is a Specific Character Set defined term, e.g. "ISO_IR 100" or "ISO 2022 IR 149".
type Term string

// Default is the character set assumed when SpecificCharacterSet is absent: the DICOM default
// repertoire, a subset of ISO-IR 6 equivalent to ASCII.
const Default Term = ""

// Registry resolves Specific Character Set defined terms to decoders and decodes raw bytes.
type Registry interface {
	// Resolve reports whether terms (the possibly multi-valued contents of SpecificCharacterSet)
	// are supported by this registry.
	Resolve(terms []Term) error
	// Decode converts raw bytes encoded under terms into a UTF-8 string.
	Decode(terms []Term, raw []byte) (string, error)
}

type entry struct {
	enc encoding.Encoding
}

// registry is the built-in Registry covering the single-byte and simplified-Chinese term sets
// most commonly seen outside of ISO 2022 escape-sequence switching, which this registry does
// not support.
type registry struct {
	byTerm map[Term]entry
}

var singleByteTerms = map[Term]*charmap.Charmap{
	"ISO_IR 100": charmap.ISO8859_1,
	"ISO_IR 101": charmap.ISO8859_2,
	"ISO_IR 109": charmap.ISO8859_3,
	"ISO_IR 110": charmap.ISO8859_4,
	"ISO_IR 144": charmap.ISO8859_5,
	"ISO_IR 127": charmap.ISO8859_6,
	"ISO_IR 126": charmap.ISO8859_7,
	"ISO_IR 138": charmap.ISO8859_8,
	"ISO_IR 148": charmap.ISO8859_9,
	"ISO_IR 203": charmap.ISO8859_15,
}

// New returns the built-in Registry, covering the DICOM default repertoire (treated as UTF-8
// passthrough), the single-byte ISO_IR character sets, GB18030, GBK, and UTF-8 (ISO_IR 192).
func New() Registry {
	r := &registry{byTerm: make(map[Term]entry, len(singleByteTerms)+2)}
	for term, cm := range singleByteTerms {
		r.byTerm[term] = entry{enc: cm}
	}
	r.byTerm["GB18030"] = entry{enc: simplifiedchinese.GB18030}
	r.byTerm["GBK"] = entry{enc: simplifiedchinese.GBK}
	return r
}

func (r *registry) Resolve(terms []Term) error {
	for _, t := range terms {
		if t == Default || t == "ISO_IR 192" {
			continue
		}
		if strings.HasPrefix(string(t), "ISO 2022") {
			return fmt.Errorf("charset: ISO 2022 code-extension techniques (%q) are not supported", t)
		}
		if _, ok := r.byTerm[t]; !ok {
			return fmt.Errorf("charset: unsupported defined term %q", t)
		}
	}
	return nil
}

func (r *registry) Decode(terms []Term, raw []byte) (string, error) {
	if err := r.Resolve(terms); err != nil {
		return "", err
	}
	term := Default
	for _, t := range terms {
		if t != Default {
			term = t
			break
		}
	}
	if term == Default || term == "ISO_IR 192" {
		return string(raw), nil
	}
	e, ok := r.byTerm[term]
	if !ok {
		return "", fmt.Errorf("charset: unsupported defined term %q", term)
	}
	decoded, err := e.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("charset: decoding %q: %w", term, err)
	}
	return string(bytes.TrimRight(decoded, "\x00")), nil
}

// ParseTerms splits the backslash-delimited, possibly-empty SpecificCharacterSet value into its
// component defined terms, trimming the padding space DICOM strings carry.
func ParseTerms(value string) []Term {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, `\`)
	terms := make([]Term, len(parts))
	for i, p := range parts {
		terms[i] = Term(strings.TrimSpace(p))
	}
	return terms
}
