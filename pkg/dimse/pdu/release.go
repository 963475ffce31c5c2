package pdu

import "io"

// ReleaseRQ is the A-RELEASE-RQ PDU: a request to end the association gracefully. Its body is
// four reserved bytes and carries no other information.
type ReleaseRQ struct{}

// ReleaseRP is the A-RELEASE-RP PDU acknowledging a ReleaseRQ.
type ReleaseRP struct{}

func (p *ReleaseRQ) Type() byte { return TypeReleaseRQ }

func (p *ReleaseRQ) Encode(w io.Writer) error {
	if err := writeHeader(w, TypeReleaseRQ, 4); err != nil {
		return err
	}
	_, err := w.Write(make([]byte, 4))
	return err
}

func (p *ReleaseRQ) Decode(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (p *ReleaseRP) Type() byte { return TypeReleaseRP }

func (p *ReleaseRP) Encode(w io.Writer) error {
	if err := writeHeader(w, TypeReleaseRP, 4); err != nil {
		return err
	}
	_, err := w.Write(make([]byte, 4))
	return err
}

func (p *ReleaseRP) Decode(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}
