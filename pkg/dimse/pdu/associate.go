package pdu

import (
	"bytes"
	"encoding/binary"
	"io"
)

// AssociateRQ is the A-ASSOCIATE-RQ PDU: the association-opening request from an SCU.
type AssociateRQ struct {
	CalledAETitle        [16]byte
	CallingAETitle       [16]byte
	ApplicationContext   string
	PresentationContexts []PresentationContextRQ
	UserInfo             UserInformation
}

// PresentationContextRQ offers one abstract syntax under a caller-chosen odd ID, together with
// every transfer syntax the offerer is willing to use for it.
type PresentationContextRQ struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

// AssociateAC is the A-ASSOCIATE-AC PDU: the acceptor's per-context negotiation results.
type AssociateAC struct {
	CalledAETitle        [16]byte
	CallingAETitle       [16]byte
	ApplicationContext   string
	PresentationContexts []PresentationContextAC
	UserInfo             UserInformation
}

// PresentationContextAC carries the negotiation Result for the context with the matching ID, and
// the single transfer syntax chosen when Result is Acceptance.
type PresentationContextAC struct {
	ID             byte
	Result         byte
	TransferSyntax string
}

// Presentation context negotiation results, PS3.8 Table 9-18.
const (
	ResultAcceptance                   byte = 0
	ResultUserRejection                byte = 1
	ResultProviderRejection            byte = 2
	ResultAbstractSyntaxNotSupported   byte = 3
	ResultTransferSyntaxesNotSupported byte = 4
)

// AssociateRJ is the A-ASSOCIATE-RJ PDU, returned instead of an AssociateAC when the acceptor
// refuses the association itself (as opposed to rejecting individual presentation contexts).
type AssociateRJ struct {
	Result byte
	Source byte
	Reason byte
}

// Result values, PS3.8 Table 9-21.
const (
	RJResultPermanent byte = 1
	RJResultTransient byte = 2
)

// Source values, PS3.8 Table 9-21.
const (
	RJSourceServiceUser         byte = 1
	RJSourceServiceProviderACSE byte = 2
	RJSourceServiceProviderPres byte = 3
)

// Reason values for RJSourceServiceUser, PS3.8 Table 9-21.
const (
	RJReasonNoReasonGiven                byte = 1
	RJReasonApplicationContextNotSup     byte = 2
	RJReasonCallingAETitleNotRecognized byte = 3
	RJReasonCalledAETitleNotRecognized   byte = 7
)

// UserInformation is the association's user-information sub-item group: the negotiated maximum
// PDU length and implementation identification.
type UserInformation struct {
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
}

func (p *AssociateRQ) Type() byte { return TypeAssociateRQ }

func (p *AssociateRQ) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01, 0x00, 0x00}) // protocol version 1, reserved
	buf.Write(p.CalledAETitle[:])
	buf.Write(p.CallingAETitle[:])
	buf.Write(make([]byte, 32)) // reserved
	if err := encodeItem(&buf, itemApplicationContext, []byte(p.ApplicationContext)); err != nil {
		return err
	}
	for _, pc := range p.PresentationContexts {
		if err := encodePresentationContextRQ(&buf, pc); err != nil {
			return err
		}
	}
	if err := encodeUserInformation(&buf, p.UserInfo); err != nil {
		return err
	}
	if err := writeHeader(w, TypeAssociateRQ, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *AssociateRQ) Decode(r io.Reader) error {
	var fixed [68]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return err
	}
	copy(p.CalledAETitle[:], fixed[4:20])
	copy(p.CallingAETitle[:], fixed[20:36])
	for {
		itemType, data, err := readItem(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch itemType {
		case itemApplicationContext:
			p.ApplicationContext = string(data)
		case itemPresentationContextRQ:
			pc, err := decodePresentationContextRQ(data)
			if err != nil {
				return err
			}
			p.PresentationContexts = append(p.PresentationContexts, pc)
		case itemUserInformation:
			ui, err := decodeUserInformation(data)
			if err != nil {
				return err
			}
			p.UserInfo = ui
		}
	}
}

func (p *AssociateAC) Type() byte { return TypeAssociateAC }

func (p *AssociateAC) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x01, 0x00, 0x00})
	buf.Write(p.CalledAETitle[:])
	buf.Write(p.CallingAETitle[:])
	buf.Write(make([]byte, 32))
	if err := encodeItem(&buf, itemApplicationContext, []byte(p.ApplicationContext)); err != nil {
		return err
	}
	for _, pc := range p.PresentationContexts {
		if err := encodePresentationContextAC(&buf, pc); err != nil {
			return err
		}
	}
	if err := encodeUserInformation(&buf, p.UserInfo); err != nil {
		return err
	}
	if err := writeHeader(w, TypeAssociateAC, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *AssociateAC) Decode(r io.Reader) error {
	var fixed [68]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return err
	}
	copy(p.CalledAETitle[:], fixed[4:20])
	copy(p.CallingAETitle[:], fixed[20:36])
	for {
		itemType, data, err := readItem(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch itemType {
		case itemApplicationContext:
			p.ApplicationContext = string(data)
		case itemPresentationContextAC:
			pc, err := decodePresentationContextAC(data)
			if err != nil {
				return err
			}
			p.PresentationContexts = append(p.PresentationContexts, pc)
		case itemUserInformation:
			ui, err := decodeUserInformation(data)
			if err != nil {
				return err
			}
			p.UserInfo = ui
		}
	}
}

func (p *AssociateRJ) Type() byte { return TypeAssociateRJ }

func (p *AssociateRJ) Encode(w io.Writer) error {
	body := []byte{0x00, p.Result, p.Source, p.Reason}
	if err := writeHeader(w, TypeAssociateRJ, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func (p *AssociateRJ) Decode(r io.Reader) error {
	var body [4]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return err
	}
	p.Result, p.Source, p.Reason = body[1], body[2], body[3]
	return nil
}

func encodePresentationContextRQ(w io.Writer, pc PresentationContextRQ) error {
	var buf bytes.Buffer
	buf.Write([]byte{pc.ID, 0, 0, 0})
	if err := encodeItem(&buf, itemAbstractSyntax, []byte(pc.AbstractSyntax)); err != nil {
		return err
	}
	for _, ts := range pc.TransferSyntaxes {
		if err := encodeItem(&buf, itemTransferSyntax, []byte(ts)); err != nil {
			return err
		}
	}
	return encodeItem(w, itemPresentationContextRQ, buf.Bytes())
}

func decodePresentationContextRQ(data []byte) (PresentationContextRQ, error) {
	r := bytes.NewReader(data)
	var pc PresentationContextRQ
	var fixed [4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return pc, err
	}
	pc.ID = fixed[0]
	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return pc, nil
		}
		if err != nil {
			return pc, err
		}
		switch itemType {
		case itemAbstractSyntax:
			pc.AbstractSyntax = string(itemData)
		case itemTransferSyntax:
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, string(itemData))
		}
	}
}

func encodePresentationContextAC(w io.Writer, pc PresentationContextAC) error {
	var buf bytes.Buffer
	buf.Write([]byte{pc.ID, 0, pc.Result, 0})
	if pc.Result == ResultAcceptance {
		if err := encodeItem(&buf, itemTransferSyntax, []byte(pc.TransferSyntax)); err != nil {
			return err
		}
	}
	return encodeItem(w, itemPresentationContextAC, buf.Bytes())
}

func decodePresentationContextAC(data []byte) (PresentationContextAC, error) {
	r := bytes.NewReader(data)
	var pc PresentationContextAC
	var fixed [4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return pc, err
	}
	pc.ID, pc.Result = fixed[0], fixed[2]
	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return pc, nil
		}
		if err != nil {
			return pc, err
		}
		if itemType == itemTransferSyntax {
			pc.TransferSyntax = string(itemData)
		}
	}
}

func encodeUserInformation(w io.Writer, ui UserInformation) error {
	var buf bytes.Buffer
	if ui.MaxPDULength > 0 {
		var lengthBuf [4]byte
		binary.BigEndian.PutUint32(lengthBuf[:], ui.MaxPDULength)
		if err := encodeItem(&buf, itemMaxLength, lengthBuf[:]); err != nil {
			return err
		}
	}
	if ui.ImplementationClassUID != "" {
		if err := encodeItem(&buf, itemImplementationClassUID, []byte(ui.ImplementationClassUID)); err != nil {
			return err
		}
	}
	if ui.ImplementationVersion != "" {
		if err := encodeItem(&buf, itemImplementationVersion, []byte(ui.ImplementationVersion)); err != nil {
			return err
		}
	}
	return encodeItem(w, itemUserInformation, buf.Bytes())
}

func decodeUserInformation(data []byte) (UserInformation, error) {
	r := bytes.NewReader(data)
	var ui UserInformation
	for {
		itemType, itemData, err := readItem(r)
		if err == io.EOF {
			return ui, nil
		}
		if err != nil {
			return ui, err
		}
		switch itemType {
		case itemMaxLength:
			if len(itemData) == 4 {
				ui.MaxPDULength = binary.BigEndian.Uint32(itemData)
			}
		case itemImplementationClassUID:
			ui.ImplementationClassUID = string(itemData)
		case itemImplementationVersion:
			ui.ImplementationVersion = string(itemData)
		}
	}
}
