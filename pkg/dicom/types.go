// Package dicom implements the DICOM wire-format engine: the element codec, the Part-10 file
// envelope, and the in-memory dataset model they operate on. It is grounded on the teacher
// repository's pkg/dicos package (Dataset/Element/reader/writer shape), generalized from a
// single application's fixed tag set to the full standard element model described by PS3.5.
package dicom

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jpfielding/dicomgo/pkg/dicom/charset"
	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
)

// Tag aliases tag.Tag so callers need not import the subpackage for common use.
type Tag = tag.Tag

// Kind identifies which variant of element value is held.
type Kind int

const (
	// KindString holds raw bytes decoded on demand through the dataset's active encoding.
	KindString Kind = iota
	// KindNumeric holds raw bytes interpreted as little- or big-endian primitives per VR.
	KindNumeric
	// KindBinary holds opaque bytes (OB/UN and similar non-numeric binary VRs).
	KindBinary
	// KindSequence holds a list of item datasets.
	KindSequence
	// KindFragmentSequence holds an encapsulated pixel-data fragment train.
	KindFragmentSequence
	// KindPixelData wraps a pixel-data source; see pixeldata.go.
	KindPixelData
)

// FragmentSequence is the parsed structure of an encapsulated pixel-data value: a Basic Offset
// Table, an ordered list of fragments, and an optional 64-bit extended offset table.
type FragmentSequence struct {
	BasicOffsetTable           []uint32
	Fragments                  [][]byte
	ExtendedOffsetTable        []uint64
	ExtendedOffsetTableLengths []uint64
}

// Element is a single DICOM data element. Exactly one of the payload fields is meaningful,
// selected by Kind.
type Element struct {
	Tag  Tag
	VR   vr.VR
	Kind Kind

	raw []byte // KindString, KindNumeric, KindBinary
	// byteOrder governs numeric decode/encode of raw for KindNumeric.
	byteOrder binary.ByteOrder

	Items []*Dataset // KindSequence

	Fragments *FragmentSequence // KindFragmentSequence

	Pixel *PixelDataValue // KindPixelData

	// undefinedLength records whether this element was parsed (or is to be written) with the
	// 0xFFFFFFFF length sentinel rather than a concrete byte count.
	undefinedLength bool
}

// Length reports the byte length of the element's owned raw value, or -1 for sequences and
// other undefined-length containers, matching the invariant every element reports to external
// consumers.
func (e *Element) Length() int64 {
	switch e.Kind {
	case KindSequence, KindFragmentSequence:
		if e.undefinedLength {
			return -1
		}
	case KindPixelData:
		if e.Pixel != nil && e.Pixel.Encapsulated {
			return -1
		}
	}
	if e.undefinedLength {
		return -1
	}
	return int64(len(e.raw))
}

// Raw returns the element's owned bytes for KindString, KindNumeric, and KindBinary elements.
func (e *Element) Raw() []byte { return e.raw }

// NewStringElement constructs a string-VR element from an already-encoded byte value. Callers
// that have a Go string in the dataset's target encoding should use NewStringElementFromString.
func NewStringElement(t Tag, v vr.VR, raw []byte) *Element {
	return &Element{Tag: t, VR: v, Kind: KindString, raw: raw}
}

// NewStringElementFromString constructs a string-VR element, storing value's bytes verbatim;
// multi-valued strings should already contain the VR's backslash delimiter.
func NewStringElementFromString(t Tag, v vr.VR, value string) *Element {
	return NewStringElement(t, v, []byte(value))
}

// NewBinaryElement constructs an opaque binary element (OB, UN, and similar).
func NewBinaryElement(t Tag, v vr.VR, raw []byte) *Element {
	return &Element{Tag: t, VR: v, Kind: KindBinary, raw: raw}
}

// NewNumericElement constructs a numeric element from raw little-endian bytes. order defaults
// to binary.LittleEndian when nil.
func NewNumericElement(t Tag, v vr.VR, raw []byte, order binary.ByteOrder) *Element {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Element{Tag: t, VR: v, Kind: KindNumeric, raw: raw, byteOrder: order}
}

// NewSequenceElement constructs a sequence element from already-built item datasets.
// undefinedLength controls whether Length() reports -1 regardless of the items' own size.
func NewSequenceElement(t Tag, items []*Dataset, undefinedLength bool) *Element {
	return &Element{Tag: t, VR: vr.SQ, Kind: KindSequence, Items: items, undefinedLength: undefinedLength}
}

// NewFragmentSequenceElement constructs an encapsulated-pixel-data fragment train element.
func NewFragmentSequenceElement(t Tag, v vr.VR, fs *FragmentSequence) *Element {
	return &Element{Tag: t, VR: v, Kind: KindFragmentSequence, Fragments: fs, undefinedLength: true}
}

// NewPixelDataElement constructs a pixel-data element wrapping src.
func NewPixelDataElement(t Tag, v vr.VR, src *PixelDataValue) *Element {
	return &Element{Tag: t, VR: v, Kind: KindPixelData, Pixel: src, undefinedLength: src != nil && src.Encapsulated}
}

// GetString decodes the element's raw bytes as a single string value through reg under terms,
// trimming trailing VR padding. It is an error to call this on a non-string element.
func (e *Element) GetString(reg charset.Registry, terms []charset.Term) (string, error) {
	if e.Kind != KindString {
		return "", fmt.Errorf("dicom: element %s is not a string element", e.Tag)
	}
	decoded, err := reg.Decode(terms, e.raw)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(decoded, " \x00"), nil
}

// GetStrings decodes the element's raw bytes and splits on the VR's multi-value delimiter.
func (e *Element) GetStrings(reg charset.Registry, terms []charset.Term) ([]string, error) {
	s, err := e.GetString(reg, terms)
	if err != nil {
		return nil, err
	}
	delim := e.VR.PaddingByte()
	info, ok := vr.Lookup(e.VR)
	if ok && info.Delimiter != 0 {
		parts := strings.Split(s, string(rune(info.Delimiter)))
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	_ = delim
	return []string{s}, nil
}

// GetInt returns the element's first value as an int, coercing across numeric and IS/DS string
// representations.
func (e *Element) GetInt(reg charset.Registry, terms []charset.Term) (int, bool) {
	switch e.Kind {
	case KindNumeric:
		vals, err := e.numericInt64s()
		if err != nil || len(vals) == 0 {
			return 0, false
		}
		return int(vals[0]), true
	case KindString:
		s, err := e.GetString(reg, terms)
		if err != nil {
			return 0, false
		}
		s = strings.TrimSpace(strings.SplitN(s, `\`, 2)[0])
		var n int
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (e *Element) numericInt64s() ([]int64, error) {
	if e.Kind != KindNumeric {
		return nil, fmt.Errorf("dicom: element %s is not numeric", e.Tag)
	}
	order := e.byteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	size := e.VR.ElementSize()
	if size == 0 {
		return nil, fmt.Errorf("dicom: VR %s has no fixed element size", e.VR)
	}
	if len(e.raw)%size != 0 {
		return nil, fmt.Errorf("dicom: element %s raw length %d not a multiple of %d", e.Tag, len(e.raw), size)
	}
	n := len(e.raw) / size
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		chunk := e.raw[i*size : (i+1)*size]
		switch e.VR {
		case vr.SS:
			out[i] = int64(int16(order.Uint16(chunk)))
		case vr.US:
			out[i] = int64(order.Uint16(chunk))
		case vr.SL:
			out[i] = int64(int32(order.Uint32(chunk)))
		case vr.UL, vr.AT:
			out[i] = int64(order.Uint32(chunk))
		case vr.SV:
			out[i] = int64(order.Uint64(chunk))
		case vr.UV, vr.OV:
			out[i] = int64(order.Uint64(chunk))
		default:
			return nil, fmt.Errorf("dicom: VR %s is not an integer VR", e.VR)
		}
	}
	return out, nil
}

// GetInts returns all of the element's values as ints.
func (e *Element) GetInts() ([]int, error) {
	vals, err := e.numericInt64s()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out, nil
}

// GetFloats returns the element's values as float64s (FL/FD).
func (e *Element) GetFloats() ([]float64, error) {
	if e.Kind != KindNumeric {
		return nil, fmt.Errorf("dicom: element %s is not numeric", e.Tag)
	}
	order := e.byteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	switch e.VR {
	case vr.FL:
		n := len(e.raw) / 4
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(order.Uint32(e.raw[i*4:])))
		}
		return out, nil
	case vr.FD:
		n := len(e.raw) / 8
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(order.Uint64(e.raw[i*8:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("dicom: VR %s is not a floating-point VR", e.VR)
	}
}

// ToOwned deep-copies the element: raw bytes are copied, sequence items are recursively
// ToOwned'd with their parent link dropped, and pixel data is converted per PixelDataValue's
// own ToOwned rule (which errors for a Skipped source).
func (e *Element) ToOwned() (*Element, error) {
	cp := &Element{Tag: e.Tag, VR: e.VR, Kind: e.Kind, byteOrder: e.byteOrder, undefinedLength: e.undefinedLength}
	if e.raw != nil {
		cp.raw = append([]byte(nil), e.raw...)
	}
	if e.Items != nil {
		cp.Items = make([]*Dataset, len(e.Items))
		for i, item := range e.Items {
			cp.Items[i] = item.ToOwned()
		}
	}
	if e.Fragments != nil {
		fs := *e.Fragments
		fs.BasicOffsetTable = append([]uint32(nil), e.Fragments.BasicOffsetTable...)
		fs.Fragments = make([][]byte, len(e.Fragments.Fragments))
		for i, f := range e.Fragments.Fragments {
			fs.Fragments[i] = append([]byte(nil), f...)
		}
		cp.Fragments = &fs
	}
	if e.Pixel != nil {
		owned, err := e.Pixel.ToOwned()
		if err != nil {
			return nil, err
		}
		cp.Pixel = owned
	}
	return cp, nil
}

// privateSlot keys the private-creator registry by group and creator slot (the element's high
// byte, in [0x10, 0xFF]).
type privateSlot struct {
	Group uint16
	Slot  uint16
}

// Dataset is an ordered mapping of Tag to Element with a cached sorted iteration view, a weak
// parent back-reference for context inheritance, and cached multi-VR/encoding context.
type Dataset struct {
	elements map[Tag]*Element
	sorted   []Tag
	dirty    bool

	// parent is consulted for encoding inheritance only; it is never mutated through this
	// reference and is dropped by ToOwned.
	parent *Dataset

	bitsAllocatedSet       bool
	bitsAllocated          int
	pixelRepresentationSet bool
	pixelRepresentation    int

	charsetSet bool
	charset    []charset.Term
	registry   charset.Registry

	privateCreators map[privateSlot]string

	byteOrder binary.ByteOrder
}

// NewDataset returns an empty, detached Dataset using the default charset Registry and
// little-endian byte order.
func NewDataset() *Dataset {
	return &Dataset{
		elements:        make(map[Tag]*Element),
		registry:        charset.New(),
		privateCreators: make(map[privateSlot]string),
		byteOrder:       binary.LittleEndian,
	}
}

// SetRegistry overrides the charset.Registry used for string decode/encode.
func (ds *Dataset) SetRegistry(r charset.Registry) { ds.registry = r }

// SetByteOrder overrides the numeric byte order new elements are decoded/encoded with. Readers
// set this once, from the negotiated transfer syntax, before inserting any numeric element.
func (ds *Dataset) SetByteOrder(order binary.ByteOrder) { ds.byteOrder = order }

// ByteOrder returns the dataset's configured numeric byte order.
func (ds *Dataset) ByteOrder() binary.ByteOrder { return ds.byteOrder }

// Registry returns the dataset's charset.Registry.
func (ds *Dataset) Registry() charset.Registry { return ds.registry }

func newChildDataset(parent *Dataset) *Dataset {
	ds := NewDataset()
	ds.parent = parent
	if parent != nil {
		ds.byteOrder = parent.byteOrder
		ds.registry = parent.registry
	}
	return ds
}

// NewChildDataset returns an empty Dataset whose encoding() inherits from parent. Used by the
// sequence/fragment parser (C5) to build item datasets.
func NewChildDataset(parent *Dataset) *Dataset { return newChildDataset(parent) }

// Insert adds or replaces elem, keyed by its Tag, and marks the sorted view dirty. If the tag is
// SpecificCharacterSet, BitsAllocated, or PixelRepresentation, the cached context is updated
// before Insert returns, so the update is observable to subsequent readers immediately.
// Inserting a private-creator element additionally records the (group, slot) → creator mapping.
func (ds *Dataset) Insert(elem *Element) {
	ds.elements[elem.Tag] = elem
	ds.dirty = true
	switch elem.Tag {
	case tag.BitsAllocated:
		if v, ok := elem.GetInt(ds.registry, nil); ok {
			ds.bitsAllocated = v
			ds.bitsAllocatedSet = true
		}
	case tag.PixelRepresentation:
		if v, ok := elem.GetInt(ds.registry, nil); ok {
			ds.pixelRepresentation = v
			ds.pixelRepresentationSet = true
		}
	case tag.SpecificCharacterSet:
		if s, err := elem.GetString(ds.registry, nil); err == nil {
			ds.charset = charset.ParseTerms(s)
			ds.charsetSet = true
		}
	}
	if elem.Tag.IsPrivateCreator() {
		if s, err := elem.GetString(ds.registry, ds.Encoding()); err == nil && strings.TrimSpace(s) != "" {
			slot := privateSlot{Group: elem.Tag.Group, Slot: elem.Tag.Element}
			ds.privateCreators[slot] = strings.TrimSpace(s)
		}
	}
}

// Get returns the element for t, if present.
func (ds *Dataset) Get(t Tag) (*Element, bool) {
	e, ok := ds.elements[t]
	return e, ok
}

// Contains reports whether t is present.
func (ds *Dataset) Contains(t Tag) bool {
	_, ok := ds.elements[t]
	return ok
}

// Remove deletes t, marking the sorted view dirty.
func (ds *Dataset) Remove(t Tag) {
	if _, ok := ds.elements[t]; ok {
		delete(ds.elements, t)
		ds.dirty = true
	}
}

// Count returns the number of elements in the dataset.
func (ds *Dataset) Count() int { return len(ds.elements) }

// Iter returns the dataset's elements in strictly ascending tag order. The returned slice is a
// cached view recomputed on demand; it is invalidated by the next mutation.
func (ds *Dataset) Iter() []*Element {
	if ds.dirty || ds.sorted == nil {
		tags := make([]Tag, 0, len(ds.elements))
		for t := range ds.elements {
			tags = append(tags, t)
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i].Less(tags[j]) })
		ds.sorted = tags
		ds.dirty = false
	}
	out := make([]*Element, len(ds.sorted))
	for i, t := range ds.sorted {
		out[i] = ds.elements[t]
	}
	return out
}

// Encoding returns the dataset's cached Specific Character Set terms: locally set if present,
// otherwise inherited from parent, otherwise the DICOM default repertoire.
func (ds *Dataset) Encoding() []charset.Term {
	if ds.charsetSet {
		return ds.charset
	}
	if ds.parent != nil {
		return ds.parent.Encoding()
	}
	return nil
}

// BitsAllocated returns the cached Bits Allocated value, inherited from parent if not locally
// set, defaulting to 16.
func (ds *Dataset) BitsAllocated() int {
	if ds.bitsAllocatedSet {
		return ds.bitsAllocated
	}
	if ds.parent != nil {
		return ds.parent.BitsAllocated()
	}
	return 16
}

// PixelRepresentation returns the cached Pixel Representation value, inherited from parent,
// defaulting to 0 (unsigned).
func (ds *Dataset) PixelRepresentation() int {
	if ds.pixelRepresentationSet {
		return ds.pixelRepresentation
	}
	if ds.parent != nil {
		return ds.parent.PixelRepresentation()
	}
	return 0
}

// Rows returns Rows (0028,0010), or 0 if absent.
func (ds *Dataset) Rows() int {
	if e, ok := ds.Get(tag.Rows); ok {
		if v, ok := e.GetInt(ds.registry, ds.Encoding()); ok {
			return v
		}
	}
	return 0
}

// Columns returns Columns (0028,0011), or 0 if absent.
func (ds *Dataset) Columns() int {
	if e, ok := ds.Get(tag.Columns); ok {
		if v, ok := e.GetInt(ds.registry, ds.Encoding()); ok {
			return v
		}
	}
	return 0
}

// SamplesPerPixel returns SamplesPerPixel (0028,0002), defaulting to 1 if absent.
func (ds *Dataset) SamplesPerPixel() int {
	if e, ok := ds.Get(tag.SamplesPerPixel); ok {
		if v, ok := e.GetInt(ds.registry, ds.Encoding()); ok {
			return v
		}
	}
	return 1
}

// NumberOfFramesOrDefault returns NumberOfFrames (0028,0008), defaulting to 1 if absent.
func (ds *Dataset) NumberOfFramesOrDefault() int {
	if e, ok := ds.Get(tag.NumberOfFrames); ok {
		if v, ok := e.GetInt(ds.registry, ds.Encoding()); ok {
			return v
		}
	}
	return 1
}

// Modality returns Modality (0008,0060), or "" if absent.
func (ds *Dataset) Modality() string {
	if e, ok := ds.Get(tag.Modality); ok {
		if s, err := e.GetString(ds.registry, ds.Encoding()); err == nil {
			return s
		}
	}
	return ""
}

// PrivateCreator returns the creator string registered for (group, slot), checking this dataset
// and then its parent chain.
func (ds *Dataset) PrivateCreator(group, slot uint16) (string, bool) {
	if c, ok := ds.privateCreators[privateSlot{Group: group, Slot: slot}]; ok {
		return c, true
	}
	if ds.parent != nil {
		return ds.parent.PrivateCreator(group, slot)
	}
	return "", false
}

// slotsForCreator returns, sorted, the slots in group currently registered to creator. More than
// one slot for the same creator string is a duplicate-registration condition.
func (ds *Dataset) slotsForCreator(group uint16, creator string) []uint16 {
	var slots []uint16
	for slot, c := range ds.privateCreators {
		if slot.Group == group && c == creator {
			slots = append(slots, slot.Slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// AllocatePrivateSlot returns the first unused private-creator slot in [0x10, 0xFF] for group.
func (ds *Dataset) AllocatePrivateSlot(group uint16) (uint16, error) {
	used := make(map[uint16]bool)
	for slot := range ds.privateCreators {
		if slot.Group == group {
			used[slot.Slot] = true
		}
	}
	for s := uint16(0x10); s <= 0xFF; s++ {
		if !used[s] {
			return s, nil
		}
	}
	return 0, fmt.Errorf("dicom: no free private-creator slot in group %04X", group)
}

// CompactPrivateGroup reassigns group's private-creator slots to a contiguous range starting at
// 0x10, in ascending order of their current slot, and returns the old→new slot mapping so
// callers can rewrite the corresponding private-data tags.
func (ds *Dataset) CompactPrivateGroup(group uint16) map[uint16]uint16 {
	type pair struct {
		slot    uint16
		creator string
	}
	var present []pair
	for slot, creator := range ds.privateCreators {
		if slot.Group == group {
			present = append(present, pair{slot.Slot, creator})
		}
	}
	sort.Slice(present, func(i, j int) bool { return present[i].slot < present[j].slot })

	mapping := make(map[uint16]uint16, len(present))
	next := uint16(0x10)
	for _, p := range present {
		old := p.slot
		delete(ds.privateCreators, privateSlot{Group: group, Slot: old})
		ds.privateCreators[privateSlot{Group: group, Slot: next}] = p.creator
		mapping[old] = next
		if old != next {
			if e, ok := ds.elements[Tag{Group: group, Element: old}]; ok {
				ds.Remove(Tag{Group: group, Element: old})
				e.Tag = Tag{Group: group, Element: next}
				ds.Insert(e)
			}
		}
		next++
	}
	return mapping
}

// ToOwned deep-copies the dataset: every element is ToOwned'd and the parent back-reference is
// dropped. It does not fail: an element whose pixel data cannot be copied (such as a Skipped
// source) is kept as it is, and its error surfaces when that pixel data is accessed.
func (ds *Dataset) ToOwned() *Dataset {
	cp := NewDataset()
	cp.registry = ds.registry
	cp.byteOrder = ds.byteOrder
	cp.charsetSet = ds.charsetSet
	cp.charset = append([]charset.Term(nil), ds.charset...)
	cp.bitsAllocatedSet = ds.bitsAllocatedSet
	cp.bitsAllocated = ds.bitsAllocated
	cp.pixelRepresentationSet = ds.pixelRepresentationSet
	cp.pixelRepresentation = ds.pixelRepresentation
	for slot, creator := range ds.privateCreators {
		cp.privateCreators[slot] = creator
	}
	for _, e := range ds.Iter() {
		owned, err := e.ToOwned()
		if err != nil {
			// A Skipped pixel-data source cannot be owned; retain the original element so the
			// error surfaces only when the caller actually accesses its data, per spec.
			cp.elements[e.Tag] = e
			cp.dirty = true
			continue
		}
		cp.elements[owned.Tag] = owned
		cp.dirty = true
	}
	return cp
}
