package dicom

import (
	"io"
	"strings"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
)

// ReadDataset reads elements from r into ds until the underlying source is cleanly exhausted
// (io.EOF at an element boundary) or an Item-Delimitation/Sequence-Delimitation tag is seen,
// which is left unconsumed for the caller (a sequence/item parser) to handle. depth is the
// current sequence-nesting depth, enforced against cfg.MaxSequenceDepth by readSequenceElement.
func (r *Reader) ReadDataset(ds *Dataset, depth int) error {
	for {
		t, err := r.PeekTag()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t == tag.ItemDelimitationItem || t == tag.SequenceDelimitationItem {
			return nil
		}
		elem, err := r.ReadElement(ds, depth)
		if err != nil {
			return err
		}
		ds.Insert(elem)
		if err := r.checkPrivatePolicy(ds, elem); err != nil {
			return err
		}
	}
}

// checkPrivatePolicy enforces FailOnOrphanPrivateElements and FailOnDuplicatePrivateSlots against
// elem, which has already been inserted into ds. Both checks are no-ops unless their config flag
// is set, matching spec §9: every recognized option has exactly one documented effect.
func (r *Reader) checkPrivatePolicy(ds *Dataset, elem *Element) error {
	if r.cfg.FailOnOrphanPrivateElements {
		if creator, ok := elem.Tag.IsPrivateData(); ok {
			if _, found := ds.PrivateCreator(elem.Tag.Group, creator.Element); !found {
				return &OrphanPrivateElementError{Tag: elem.Tag.String(), Slot: creator.String()}
			}
		}
	}
	if r.cfg.FailOnDuplicatePrivateSlots && elem.Tag.IsPrivateCreator() {
		if s, err := elem.GetString(ds.registry, ds.Encoding()); err == nil {
			if creator := strings.TrimSpace(s); creator != "" {
				if slots := ds.slotsForCreator(elem.Tag.Group, creator); len(slots) > 1 {
					return &DuplicatePrivateSlotError{Group: elem.Tag.Group, Creator: creator, Slots: slots}
				}
			}
		}
	}
	return nil
}

// ReadElement reads exactly one element, dispatching sequences to readSequenceElement and pixel
// data to readPixelDataElement. ds provides the multi-VR resolution context (BitsAllocated,
// PixelRepresentation) for the element currently being read.
func (r *Reader) ReadElement(ds *Dataset, depth int) (*Element, error) {
	t, v, length, err := r.TryReadElementHeader(ds)
	if err != nil {
		return nil, err
	}
	if t == tag.PixelData {
		return r.readPixelDataElement(ds, v, length)
	}
	if v == vr.SQ {
		return r.readSequenceElement(ds, t, length, depth)
	}
	if length == undefinedLength {
		if v == vr.UN {
			// Implicit-VR sequences occasionally appear dictionary-resolved to UN with an
			// undefined length; treat them as sequences, matching common decoder behavior.
			return r.readSequenceElement(ds, t, length, depth)
		}
		return nil, &MalformedHeaderError{Tag: t.String(), Reason: "undefined length on a non-sequence, non-pixel-data element"}
	}
	raw, err := r.TryReadValue(t, length)
	if err != nil {
		return nil, err
	}
	kind := KindBinary
	switch {
	case v.IsNumeric():
		kind = KindNumeric
	case v.IsString():
		kind = KindString
	}
	return &Element{Tag: t, VR: v, Kind: kind, raw: raw, byteOrder: r.order}, nil
}

// readSequenceElement parses a sequence body (C5) into item datasets.
func (r *Reader) readSequenceElement(ds *Dataset, t Tag, length uint32, depth int) (*Element, error) {
	if depth+1 > r.cfg.MaxSequenceDepth {
		return nil, &DepthExceededError{Max: r.cfg.MaxSequenceDepth}
	}
	undefined := length == undefinedLength
	items, err := r.parseSequenceItems(ds, undefined, length, depth+1)
	if err != nil {
		return nil, err
	}
	return NewSequenceElement(t, items, undefined), nil
}

// parseSequenceItems implements the §4.2 algorithm: peek for Sequence-Delimitation (undefined
// length only), otherwise require an Item and parse its body, either by bounding a sub-Reader to
// the item's defined length or by looping until Item-Delimitation for undefined-length items.
func (r *Reader) parseSequenceItems(parent *Dataset, undefined bool, definedLength uint32, depth int) ([]*Dataset, error) {
	var items []*Dataset
	if !undefined {
		sub := r.subReader(int64(definedLength))
		for {
			_, err := sub.PeekTag()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			item, err := sub.readOneItem(parent, depth)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if err := r.countItem(); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
	for {
		t, err := r.PeekTag()
		if err != nil {
			return nil, err
		}
		if t == tag.SequenceDelimitationItem {
			if _, err := r.readTag(); err != nil {
				return nil, err
			}
			if _, err := r.readN(4); err != nil {
				return nil, err
			}
			break
		}
		item, err := r.readOneItem(parent, depth)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if err := r.countItem(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *Reader) countItem() error {
	*r.totalItems++
	if *r.totalItems > r.cfg.MaxTotalItems {
		return &ItemCountExceededError{Max: r.cfg.MaxTotalItems}
	}
	return nil
}

// readOneItem reads one Item header and its body, returning a child dataset whose parent is
// the enclosing dataset.
func (r *Reader) readOneItem(parent *Dataset, depth int) (*Dataset, error) {
	t, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if t != tag.Item {
		return nil, &MalformedHeaderError{Tag: t.String(), Reason: "expected Item (FFFE,E000)"}
	}
	lenBuf, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	itemLen := r.order.Uint32(lenBuf)
	item := NewChildDataset(parent)
	if itemLen == undefinedLength {
		if err := r.readItemBodyUndefined(item, depth); err != nil {
			return nil, err
		}
		return item, nil
	}
	sub := r.subReader(int64(itemLen))
	if err := sub.ReadDataset(item, depth); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Reader) readItemBodyUndefined(item *Dataset, depth int) error {
	for {
		t, err := r.PeekTag()
		if err != nil {
			return err
		}
		if t == tag.ItemDelimitationItem {
			if _, err := r.readTag(); err != nil {
				return err
			}
			if _, err := r.readN(4); err != nil {
				return err
			}
			return nil
		}
		elem, err := r.ReadElement(item, depth)
		if err != nil {
			return err
		}
		item.Insert(elem)
		if err := r.checkPrivatePolicy(item, elem); err != nil {
			return err
		}
	}
}

// parseFragments implements the encapsulated pixel-data fragment parser: the first item is the
// Basic Offset Table, subsequent items are fragments with defined length (undefined length in a
// fragment is illegal), terminated by Sequence-Delimitation. When retain is false, fragment
// bytes are discarded after reading (used under Skip handling, which must still consume the
// stream correctly without retaining pixel bytes).
func (r *Reader) parseFragments(retain bool) (*FragmentSequence, error) {
	fs := &FragmentSequence{}
	t, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if t != tag.Item {
		return nil, &MalformedHeaderError{Tag: t.String(), Reason: "expected Basic Offset Table Item"}
	}
	lenBuf, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	botLen := r.order.Uint32(lenBuf)
	if botLen == undefinedLength {
		return nil, &MalformedHeaderError{Tag: t.String(), Reason: "Basic Offset Table may not have undefined length"}
	}
	if botLen > 0 {
		botBytes, err := r.readN(int(botLen))
		if err != nil {
			return nil, err
		}
		fs.BasicOffsetTable = make([]uint32, len(botBytes)/4)
		for i := range fs.BasicOffsetTable {
			fs.BasicOffsetTable[i] = r.order.Uint32(botBytes[i*4:])
		}
	}
	for {
		t, err := r.PeekTag()
		if err != nil {
			return nil, err
		}
		if t == tag.SequenceDelimitationItem {
			if _, err := r.readTag(); err != nil {
				return nil, err
			}
			if _, err := r.readN(4); err != nil {
				return nil, err
			}
			break
		}
		ft, err := r.readTag()
		if err != nil {
			return nil, err
		}
		if ft != tag.Item {
			return nil, &MalformedHeaderError{Tag: ft.String(), Reason: "expected fragment Item"}
		}
		flenBuf, err := r.readN(4)
		if err != nil {
			return nil, err
		}
		fragLen := r.order.Uint32(flenBuf)
		if fragLen == undefinedLength {
			return nil, &MalformedHeaderError{Tag: ft.String(), Reason: "undefined length is illegal in an encapsulated fragment"}
		}
		if retain {
			data, err := r.readN(int(fragLen))
			if err != nil {
				return nil, err
			}
			fs.Fragments = append(fs.Fragments, data)
		} else {
			if err := r.Skip(int64(fragLen)); err != nil {
				return nil, err
			}
			fs.Fragments = append(fs.Fragments, nil)
		}
		if err := r.countItem(); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// readPixelDataElement handles the PixelData element per the configured Handling, consulting an
// Arbiter under Callback handling. Native data may be read Eager, Lazy (when the source supports
// seeking), or Skip. Encapsulated data always parses its fragment structure (addressing depends
// on it); Skip discards fragment bytes after parsing rather than retaining them.
func (r *Reader) readPixelDataElement(ds *Dataset, wireVR vr.VR, length uint32) (*Element, error) {
	ctx := PixelDataContext{
		Rows:            ds.Rows(),
		Columns:         ds.Columns(),
		BitsAllocated:   ds.BitsAllocated(),
		SamplesPerPixel: ds.SamplesPerPixel(),
		NumberOfFrames:  ds.NumberOfFramesOrDefault(),
		Encapsulated:    length == undefinedLength,
		DeclaredLength:  int64(length),
	}
	handling := r.cfg.PixelDataHandling
	if handling == Callback {
		handling = r.cfg.PixelDataArbiter(ctx)
	}

	if ctx.Encapsulated {
		retain := handling != Skip
		fs, err := r.parseFragments(retain)
		if err != nil {
			return nil, err
		}
		if ot, ok := ds.Get(tag.ExtendedOffsetTable); ok {
			vals, _ := ot.GetInts()
			fs.ExtendedOffsetTable = toUint64s(vals)
		}
		if otl, ok := ds.Get(tag.ExtendedOffsetTableLengths); ok {
			vals, _ := otl.GetInts()
			fs.ExtendedOffsetTableLengths = toUint64s(vals)
		}
		var pdv *PixelDataValue
		if retain {
			pdv = NewImmediatePixelData(ctx, nil)
			pdv.Fragments = fs
		} else {
			pdv = NewSkippedPixelData(ctx, r.Offset(), 0)
			pdv.Fragments = fs
		}
		return NewPixelDataElement(tag.PixelData, wireVR, pdv), nil
	}

	switch handling {
	case Lazy:
		ra, ok := r.seeker.(io.ReaderAt)
		if !ok {
			raw, err := r.TryReadValue(tag.PixelData, length)
			if err != nil {
				return nil, err
			}
			return NewPixelDataElement(tag.PixelData, wireVR, NewImmediatePixelData(ctx, raw)), nil
		}
		offset := r.Offset()
		if err := r.Skip(int64(length)); err != nil {
			return nil, err
		}
		return NewPixelDataElement(tag.PixelData, wireVR, NewLazyPixelData(ctx, ra, offset, int64(length))), nil
	case Skip:
		offset := r.Offset()
		if err := r.Skip(int64(length)); err != nil {
			return nil, err
		}
		return NewPixelDataElement(tag.PixelData, wireVR, NewSkippedPixelData(ctx, offset, int64(length))), nil
	default: // Eager
		raw, err := r.TryReadValue(tag.PixelData, length)
		if err != nil {
			return nil, err
		}
		return NewPixelDataElement(tag.PixelData, wireVR, NewImmediatePixelData(ctx, raw)), nil
	}
}

func toUint64s(ints []int) []uint64 {
	out := make([]uint64, len(ints))
	for i, v := range ints {
		out[i] = uint64(v)
	}
	return out
}
