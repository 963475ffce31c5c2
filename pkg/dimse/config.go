package dimse

import (
	"context"
	"fmt"
	"time"

	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
	"github.com/jpfielding/dicomgo/pkg/dimse/pdu"
)

// defaultArtimTimeout is the ARTIM timer's default duration, per spec §4.7: applied while
// awaiting the first PDU after TCP accept, and while Releasing.
const defaultArtimTimeout = 30 * time.Second

// implementationClassUID and implementationVersionName identify this library's DIMSE stack in
// the User Information item of every A-ASSOCIATE-RQ/AC it sends, mirroring the Part-10
// ImplementationClassUID/ImplementationVersionName this module already mints in pkg/dicom.
const (
	implementationClassUID    = "1.2.826.0.1.3680043.9.dicomgo.1"
	implementationVersionName = "DICOMGO_DIMSE_1_0"
)

// PresentationContext is one abstract-syntax/transfer-syntax offer or result, shared by both the
// client's request and the server's negotiated acceptance.
type PresentationContext struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string // offered (client) or the single negotiated syntax (server, len 1)
}

// ClientConfig configures an outbound association request.
type ClientConfig struct {
	CallingAETitle       string
	CalledAETitle        string
	PresentationContexts []PresentationContext
	MaxPDULength         uint32
	ArtimTimeout         time.Duration
}

// ServerConfig configures an accepting association endpoint.
type ServerConfig struct {
	AETitle         string
	MaxPDULength    uint32
	MaxAssociations int64
	ArtimTimeout    time.Duration

	// SupportedContexts maps an offered abstract syntax to the transfer syntaxes this server
	// accepts for it, in preference order; the first offered transfer syntax also present here
	// is chosen, per spec §4.7 negotiation rule 2.
	SupportedContexts map[string][]string

	// AcceptCallingAETitle, when non-nil, may reject an association by calling-AE title before
	// presentation-context negotiation runs; returning false rejects with
	// (PermanentRejection, ServiceUser, CallingAETitleNotRecognized). A nil func accepts any
	// calling AE title.
	AcceptCallingAETitle func(callingAE string) bool

	// EchoHandler answers a C-ECHO-RQ with a DIMSE status code. A nil handler returns
	// StatusSuccess unconditionally, the spec's default handler.
	EchoHandler func(ctx context.Context, req CommandSet) uint16
}

func (c *ClientConfig) setDefaults() error {
	if c.CallingAETitle == "" || c.CalledAETitle == "" {
		return fmt.Errorf("dimse: ClientConfig requires CallingAETitle and CalledAETitle")
	}
	if len(c.PresentationContexts) == 0 {
		return fmt.Errorf("dimse: ClientConfig requires at least one PresentationContext")
	}
	if c.MaxPDULength == 0 {
		c.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if c.ArtimTimeout == 0 {
		c.ArtimTimeout = defaultArtimTimeout
	}
	return nil
}

func (c *ServerConfig) setDefaults() error {
	if c.AETitle == "" {
		return fmt.Errorf("dimse: ServerConfig requires AETitle")
	}
	if c.MaxPDULength == 0 {
		c.MaxPDULength = pdu.DefaultMaxPDULength
	}
	if c.MaxAssociations <= 0 {
		c.MaxAssociations = 16
	}
	if c.ArtimTimeout == 0 {
		c.ArtimTimeout = defaultArtimTimeout
	}
	if c.SupportedContexts == nil {
		c.SupportedContexts = map[string][]string{
			VerificationSOPClassUID: {string(transfer.ImplicitVRLittleEndian)},
		}
	}
	return nil
}
