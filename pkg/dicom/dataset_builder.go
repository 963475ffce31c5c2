package dicom

import (
	"fmt"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
)

// Option configures a Dataset during construction. Grounded on the teacher's dataset_builder.go
// functional-options pattern, generalized from a fixed DICOS element set to arbitrary
// tag/VR/value triples resolved against a Dictionary collaborator.
type Option func(*Dataset) error

// BuildDataset applies opts in order to a freshly constructed Dataset. Renamed from the
// teacher's NewDataset to avoid colliding with the core Dataset's own no-argument constructor.
func BuildDataset(opts ...Option) (*Dataset, error) {
	ds := NewDataset()
	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// WithElement inserts a raw-bytes element, classifying it as numeric, string, or binary from v's
// metadata.
func WithElement(t Tag, v vr.VR, raw []byte) Option {
	return func(ds *Dataset) error {
		kind := KindBinary
		switch {
		case v.IsNumeric():
			kind = KindNumeric
		case v.IsString():
			kind = KindString
		}
		ds.Insert(&Element{Tag: t, VR: v, Kind: kind, raw: raw, byteOrder: ds.byteOrder})
		return nil
	}
}

// WithString inserts a string-VR element from a Go string.
func WithString(t Tag, v vr.VR, value string) Option {
	return func(ds *Dataset) error {
		ds.Insert(NewStringElementFromString(t, v, value))
		return nil
	}
}

// WithDictionaryElement inserts raw with its VR resolved by ResolveVR (the tag/context-sensitive
// multi-VR rule first, then dict, then UN), for callers building a dataset from
// (tag, value) pairs without tracking VRs themselves.
func WithDictionaryElement(t Tag, raw []byte, dict tag.Dictionary) Option {
	return func(ds *Dataset) error {
		v := ResolveVR(t, ds, dict)
		return WithElement(t, v, raw)(ds)
	}
}

// ResolveVR resolves t's VR: the context-sensitive multi-VR rule first (PixelData, US/SS
// ambiguous tags), then dict, defaulting to UN.
func ResolveVR(t Tag, ds *Dataset, dict tag.Dictionary) vr.VR {
	if v, ok := specialMultiVR(t, ds, false); ok {
		return v
	}
	if entry, ok := dict.Lookup(t); ok && len(entry.VRs) > 0 {
		return entry.VRs[0]
	}
	return vr.UN
}

// WithSequence inserts a sequence element built from already-constructed item datasets. Items
// are not re-parented on insert: only items created with NewChildDataset(ds) inherit ds's
// encoding()/BitsAllocated().
func WithSequence(t Tag, items ...*Dataset) Option {
	return func(ds *Dataset) error {
		ds.Insert(NewSequenceElement(t, items, false))
		return nil
	}
}

// WithFileMeta records SOPClassUID and SOPInstanceUID on the dataset; WritePart10's FMI
// autogeneration reads them from here when building the group-0002 block.
func WithFileMeta(sopClassUID, sopInstanceUID string) Option {
	return func(ds *Dataset) error {
		ds.Insert(NewStringElementFromString(tag.SOPClassUID, vr.UI, sopClassUID))
		ds.Insert(NewStringElementFromString(tag.SOPInstanceUID, vr.UI, sopInstanceUID))
		return nil
	}
}

// WithPixelData inserts native (uncompressed) pixel data, resolving OB/OW per the multi-VR rule
// from ctx.BitsAllocated.
func WithPixelData(ctx PixelDataContext, data []byte) Option {
	return func(ds *Dataset) error {
		if ctx.Encapsulated {
			return fmt.Errorf("dicom: WithPixelData is for native data; use WithEncapsulatedPixelData")
		}
		v := vr.OB
		if ctx.BitsAllocated > 8 {
			v = vr.OW
		}
		ds.Insert(NewPixelDataElement(tag.PixelData, v, NewImmediatePixelData(ctx, data)))
		return nil
	}
}

// WithEncapsulatedPixelData inserts encapsulated (compressed) pixel data as a fragment train
// with the given Basic Offset Table.
func WithEncapsulatedPixelData(ctx PixelDataContext, bot []uint32, fragments [][]byte) Option {
	return func(ds *Dataset) error {
		ctx.Encapsulated = true
		pdv := NewImmediatePixelData(ctx, nil)
		pdv.Fragments = &FragmentSequence{BasicOffsetTable: bot, Fragments: fragments}
		ds.Insert(NewPixelDataElement(tag.PixelData, vr.OB, pdv))
		return nil
	}
}
