package dicom

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jpfielding/dicomgo/pkg/dicom/charset"
	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
)

// defaultRegistry backs Element.String()/MarshalJSON's string decode. An Element holds no link
// to its Dataset, so it is always used with no SpecificCharacterSet terms, including when a
// Dataset formats its elements.
var defaultRegistry = charset.New()

// nameDictionary backs String()/MarshalJSON's best-effort tag name lookup. It deliberately
// reuses the same DefaultDictionary a bare ReaderConfig would, rather than a full PS3.6 table:
// pretty-printing a tag this codec doesn't itself need context for just shows no name.
var nameDictionary = tag.DefaultDictionary()

// String returns a human-readable one-line summary of the element: its tag, VR, optional
// dictionary name, and a value summary appropriate to its Kind.
func (e *Element) String() string {
	name := ""
	if entry, ok := nameDictionary.Lookup(e.Tag); ok {
		name = " " + entry.Keyword
	}
	return fmt.Sprintf("[%s] %s%s: %s", e.Tag, e.VR, name, e.valueSummary(defaultRegistry, nil))
}

func (e *Element) valueSummary(reg charset.Registry, terms []charset.Term) string {
	switch e.Kind {
	case KindSequence:
		return fmt.Sprintf("Sequence (%d items)", len(e.Items))
	case KindFragmentSequence:
		return fmt.Sprintf("Fragments (%d, BOT %d entries)", len(e.Fragments.Fragments), len(e.Fragments.BasicOffsetTable))
	case KindPixelData:
		if e.Pixel == nil {
			return "Pixel Data (empty)"
		}
		if e.Pixel.Encapsulated {
			return fmt.Sprintf("Pixel Data (encapsulated, %d fragments)", len(e.Pixel.Fragments.Fragments))
		}
		if s := e.Pixel.LazyState(); s != "" {
			return fmt.Sprintf("Pixel Data (%d bytes, %s)", e.Pixel.Context.DeclaredLength, s)
		}
		return fmt.Sprintf("Pixel Data (%d bytes)", e.Pixel.Context.DeclaredLength)
	case KindNumeric:
		if len(e.raw) > 20 {
			return fmt.Sprintf("Numeric Data (%d bytes)", len(e.raw))
		}
		vals, err := e.GetInts()
		if err != nil {
			floats, ferr := e.GetFloats()
			if ferr == nil {
				return fmt.Sprintf("%v", floats)
			}
			return fmt.Sprintf("Numeric Data (%d bytes)", len(e.raw))
		}
		return fmt.Sprintf("%v", vals)
	case KindBinary:
		if len(e.raw) > 20 {
			return fmt.Sprintf("Binary Data (%d bytes)", len(e.raw))
		}
		return fmt.Sprintf("%v", e.raw)
	default: // KindString
		s, err := e.GetString(reg, terms)
		if err != nil {
			return string(e.raw)
		}
		return s
	}
}

// MarshalJSON emits a compact JSON object for the element: tag, optional dictionary name, VR,
// and a kind-appropriate value.
func (e *Element) MarshalJSON() ([]byte, error) {
	name := ""
	if entry, ok := nameDictionary.Lookup(e.Tag); ok {
		name = entry.Keyword
	}
	var value interface{}
	switch e.Kind {
	case KindSequence:
		value = e.Items
	case KindFragmentSequence:
		value = map[string]interface{}{
			"basicOffsetTable": e.Fragments.BasicOffsetTable,
			"fragmentCount":    len(e.Fragments.Fragments),
		}
	case KindPixelData:
		if e.Pixel != nil {
			value = map[string]interface{}{"encapsulated": e.Pixel.Encapsulated, "length": e.Pixel.Context.DeclaredLength}
		}
	case KindNumeric:
		vals, err := e.GetInts()
		if err == nil {
			value = vals
		} else {
			value = e.raw
		}
	case KindBinary:
		value = e.raw
	default:
		value = e.valueSummary(defaultRegistry, nil)
	}
	return json.Marshal(&struct {
		Tag   string      `json:"tag"`
		Name  string      `json:"name,omitempty"`
		VR    string      `json:"vr"`
		Value interface{} `json:"value"`
	}{Tag: e.Tag.String(), Name: name, VR: string(e.VR), Value: value})
}

// String returns a multi-line dump of ds's elements in ascending tag order, one per line.
func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	for _, e := range ds.Iter() {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	return b.String()
}

// MarshalJSON emits ds as a JSON array of elements in ascending tag order (not a tag-keyed
// object), matching the teacher's own dataset_string.go convention.
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(ds.Iter())
}
