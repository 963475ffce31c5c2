package dimse

import (
	"bytes"
	"fmt"

	"github.com/jpfielding/dicomgo/pkg/dicom"
	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
)

// Command field values this package dispatches (PS3.7 Table 9.3-1). Only the Verification
// service's pair is handled end to end; the rest are recognized so a command dataset built by
// another implementation decodes without error.
const (
	CommandCStoreRQ  uint16 = 0x0001
	CommandCStoreRSP uint16 = 0x8001
	CommandCGetRQ    uint16 = 0x0010
	CommandCGetRSP   uint16 = 0x8010
	CommandCFindRQ   uint16 = 0x0020
	CommandCFindRSP  uint16 = 0x8020
	CommandCMoveRQ   uint16 = 0x0021
	CommandCMoveRSP  uint16 = 0x8021
	CommandCEchoRQ   uint16 = 0x0030
	CommandCEchoRSP  uint16 = 0x8030
)

// Status codes (PS3.7 Annex C). This package only ever issues StatusSuccess itself, but decodes
// whatever status a peer or a pluggable handler returns.
const (
	StatusSuccess           uint16 = 0x0000
	StatusProcessingFailure uint16 = 0x0110
)

// Command dataset type values, DIMSE command tag (0000,0800).
const (
	DataSetPresent    uint16 = 0x0000
	DataSetNotPresent uint16 = 0x0101
)

// VerificationSOPClassUID is the Verification SOP Class, the only abstract syntax C-ECHO is
// defined against.
const VerificationSOPClassUID = "1.2.840.10008.1.1"

// Command-group tags (group 0000), PS3.7 Table E.1-1. These never appear in pkg/dicom/tag's
// DefaultDictionary — that dictionary is scoped to what the core codec itself consults for
// multi-VR resolution — so this package keeps its own small dictionary for resolving Implicit VR
// Little Endian on the command dataset, which DIMSE always uses regardless of the negotiated
// presentation-context transfer syntax.
var (
	tagCommandGroupLength        = tag.New(0x0000, 0x0000)
	tagAffectedSOPClassUID       = tag.New(0x0000, 0x0002)
	tagCommandField              = tag.New(0x0000, 0x0100)
	tagMessageID                 = tag.New(0x0000, 0x0110)
	tagMessageIDBeingRespondedTo = tag.New(0x0000, 0x0120)
	tagDataSetType               = tag.New(0x0000, 0x0800)
	tagStatus                    = tag.New(0x0000, 0x0900)
)

type commandDictionary struct{ tag.Dictionary }

func (d commandDictionary) Lookup(t tag.Tag) (tag.Entry, bool) {
	switch t {
	case tagCommandGroupLength:
		return tag.Entry{Keyword: "CommandGroupLength", VRs: []vr.VR{vr.UL}}, true
	case tagAffectedSOPClassUID:
		return tag.Entry{Keyword: "AffectedSOPClassUID", VRs: []vr.VR{vr.UI}}, true
	case tagCommandField:
		return tag.Entry{Keyword: "CommandField", VRs: []vr.VR{vr.US}}, true
	case tagMessageID:
		return tag.Entry{Keyword: "MessageID", VRs: []vr.VR{vr.US}}, true
	case tagMessageIDBeingRespondedTo:
		return tag.Entry{Keyword: "MessageIDBeingRespondedTo", VRs: []vr.VR{vr.US}}, true
	case tagDataSetType:
		return tag.Entry{Keyword: "CommandDataSetType", VRs: []vr.VR{vr.US}}, true
	case tagStatus:
		return tag.Entry{Keyword: "Status", VRs: []vr.VR{vr.US}}, true
	}
	return d.Dictionary.Lookup(t)
}

// commandReaderConfig and commandWriterConfig fix Implicit VR Little Endian and route Implicit-VR
// resolution through commandDictionary, per PS3.7 §6.3.1: "the Command Set shall be encoded using
// the Implicit VR Little Endian Transfer Syntax" regardless of the context's negotiated dataset
// transfer syntax.
var (
	commandReaderConfig *dicom.ReaderConfig
	commandWriterConfig *dicom.WriterConfig
)

func init() {
	var err error
	commandReaderConfig, err = dicom.NewReaderConfig(dicom.WithDictionary(commandDictionary{tag.DefaultDictionary()}))
	if err != nil {
		panic(fmt.Sprintf("dimse: building command reader config: %v", err))
	}
	commandWriterConfig, err = dicom.NewWriterConfig(dicom.WithTransferSyntax(transfer.Lookup(transfer.ImplicitVRLittleEndian)))
	if err != nil {
		panic(fmt.Sprintf("dimse: building command writer config: %v", err))
	}
}

// CommandSet is a decoded DIMSE command dataset: the fields the Verification (C-ECHO) service
// needs. Grounded on the pack's codeninja55-go-radx dimse/dimse.CommandSet, trimmed to the
// spec's scope (no C-STORE/C-FIND/C-MOVE/C-GET fields).
type CommandSet struct {
	CommandField              uint16
	MessageID                 uint16
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	CommandDataSetType        uint16
	Status                    uint16
}

// IsResponse reports whether CommandField's high bit marks this as a response (a RSP rather than
// an RQ), matching every DIMSE command field pair (0x8000 | request).
func (cs CommandSet) IsResponse() bool { return cs.CommandField&0x8000 != 0 }

// EncodeCommandSet renders cs as an Implicit VR Little Endian dataset, the exact bytes a P-DATA
// command PDV carries.
func EncodeCommandSet(cs CommandSet) ([]byte, error) {
	ds := dicom.NewDataset()
	ds.Insert(dicom.NewStringElementFromString(tagAffectedSOPClassUID, vr.UI, cs.AffectedSOPClassUID))
	ds.Insert(dicom.NewNumericElement(tagCommandField, vr.US, uint16LE(cs.CommandField), nil))
	if cs.MessageID != 0 {
		ds.Insert(dicom.NewNumericElement(tagMessageID, vr.US, uint16LE(cs.MessageID), nil))
	}
	if cs.MessageIDBeingRespondedTo != 0 {
		ds.Insert(dicom.NewNumericElement(tagMessageIDBeingRespondedTo, vr.US, uint16LE(cs.MessageIDBeingRespondedTo), nil))
	}
	ds.Insert(dicom.NewNumericElement(tagDataSetType, vr.US, uint16LE(cs.CommandDataSetType), nil))
	if cs.IsResponse() {
		ds.Insert(dicom.NewNumericElement(tagStatus, vr.US, uint16LE(cs.Status), nil))
	}

	w := dicom.NewWriter(commandWriterConfig)
	var body bytes.Buffer
	if err := w.WriteDataset(&body, ds); err != nil {
		return nil, fmt.Errorf("dimse: encoding command dataset: %w", err)
	}

	groupLength := dicom.NewNumericElement(tagCommandGroupLength, vr.UL, uint32LE(uint32(body.Len())), nil)
	var out bytes.Buffer
	if err := w.WriteElement(&out, groupLength); err != nil {
		return nil, err
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// DecodeCommandSet parses an Implicit VR Little Endian command dataset (the payload of a command
// PDV train) into a CommandSet.
func DecodeCommandSet(raw []byte) (CommandSet, error) {
	ds := dicom.NewDataset()
	r := dicom.NewReader(bytes.NewReader(raw), commandReaderConfig)
	r.SetTransferSyntax(transfer.Lookup(transfer.ImplicitVRLittleEndian))
	if err := r.ReadDataset(ds, 0); err != nil {
		return CommandSet{}, fmt.Errorf("dimse: decoding command dataset: %w", err)
	}

	var cs CommandSet
	if e, ok := ds.Get(tagCommandField); ok {
		if v, err := e.GetInts(); err == nil && len(v) > 0 {
			cs.CommandField = uint16(v[0])
		}
	}
	if e, ok := ds.Get(tagMessageID); ok {
		if v, err := e.GetInts(); err == nil && len(v) > 0 {
			cs.MessageID = uint16(v[0])
		}
	}
	if e, ok := ds.Get(tagMessageIDBeingRespondedTo); ok {
		if v, err := e.GetInts(); err == nil && len(v) > 0 {
			cs.MessageIDBeingRespondedTo = uint16(v[0])
		}
	}
	if e, ok := ds.Get(tagAffectedSOPClassUID); ok {
		if s, err := e.GetString(ds.Registry(), nil); err == nil {
			cs.AffectedSOPClassUID = s
		}
	}
	if e, ok := ds.Get(tagDataSetType); ok {
		if v, err := e.GetInts(); err == nil && len(v) > 0 {
			cs.CommandDataSetType = uint16(v[0])
		}
	}
	if e, ok := ds.Get(tagStatus); ok {
		if v, err := e.GetInts(); err == nil && len(v) > 0 {
			cs.Status = uint16(v[0])
		}
	}
	return cs, nil
}

func uint16LE(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func uint32LE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
