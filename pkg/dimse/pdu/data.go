package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DataTF is the P-DATA-TF PDU: one or more Presentation Data Values sharing one TCP segment.
type DataTF struct {
	Items []PresentationDataValue
}

// PresentationDataValue is one PDV: a presentation-context ID, a 1-byte message control header,
// and the fragment payload itself.
type PresentationDataValue struct {
	PresentationContextID byte
	MessageControlHeader  byte
	Data                  []byte
}

// Message control header bits, PS3.8 §9.3.1.1: bit 0 selects command vs. data stream, bit 1 marks
// the last fragment of that stream.
const (
	ControlCommand      byte = 0x01
	ControlLastFragment byte = 0x02
)

// NewPDV builds a PresentationDataValue's control header from the two independent flags.
func NewPDV(contextID byte, isCommand, isLast bool, data []byte) PresentationDataValue {
	var h byte
	if isCommand {
		h |= ControlCommand
	}
	if isLast {
		h |= ControlLastFragment
	}
	return PresentationDataValue{PresentationContextID: contextID, MessageControlHeader: h, Data: data}
}

// IsCommand reports whether this PDV carries command-stream bytes (vs. data-stream bytes).
func (p PresentationDataValue) IsCommand() bool { return p.MessageControlHeader&ControlCommand != 0 }

// IsLastFragment reports whether this PDV is the last fragment of its stream.
func (p PresentationDataValue) IsLastFragment() bool {
	return p.MessageControlHeader&ControlLastFragment != 0
}

func (p *DataTF) Type() byte { return TypeData }

func (p *DataTF) Encode(w io.Writer) error {
	var buf bytes.Buffer
	for _, item := range p.Items {
		if err := encodePDV(&buf, item); err != nil {
			return err
		}
	}
	if err := writeHeader(w, TypeData, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *DataTF) Decode(r io.Reader) error {
	for {
		item, err := decodePDV(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		p.Items = append(p.Items, item)
	}
}

func encodePDV(w io.Writer, pdv PresentationDataValue) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(2+len(pdv.Data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{pdv.PresentationContextID, pdv.MessageControlHeader}); err != nil {
		return err
	}
	_, err := w.Write(pdv.Data)
	return err
}

func decodePDV(r io.Reader) (PresentationDataValue, error) {
	var pdv PresentationDataValue
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return pdv, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length < 2 {
		return pdv, fmt.Errorf("pdu: PDV item length %d too small to hold its own header", length)
	}
	if length > MaxPDULength {
		return pdv, fmt.Errorf("pdu: PDV item length %d exceeds maximum %d", length, MaxPDULength)
	}
	var control [2]byte
	if _, err := io.ReadFull(r, control[:]); err != nil {
		return pdv, err
	}
	pdv.PresentationContextID, pdv.MessageControlHeader = control[0], control[1]
	pdv.Data = make([]byte, length-2)
	if _, err := io.ReadFull(r, pdv.Data); err != nil {
		return pdv, err
	}
	return pdv, nil
}
