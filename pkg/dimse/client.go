package dimse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpfielding/dicomgo/pkg/dimse/pdu"
)

// Client is an SCU: it dials a remote AE, negotiates an association, and issues DIMSE services
// against it. The spec scopes this to C-ECHO; Echo is the only service method.
type Client struct {
	cfg ClientConfig
	log *slog.Logger
}

// NewClient validates cfg and returns a Client ready to Dial.
func NewClient(cfg ClientConfig, log *slog.Logger) (*Client, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: log}, nil
}

// Dial opens a TCP connection to addr and negotiates an association, returning it Established or
// an error wrapping *AssociationRejectedError, *AssociationAbortedError, or *ArtimTimeoutError.
func (c *Client) Dial(ctx context.Context, addr string) (*Association, error) {
	conn, err := dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	conn.setArtimTimeout(c.cfg.ArtimTimeout)

	a := &Association{
		conn:     conn,
		log:      c.log,
		state:    StateRequesting,
		calling:  c.cfg.CallingAETitle,
		called:   c.cfg.CalledAETitle,
		contexts: map[byte]negotiatedContext{},
	}

	rq := &pdu.AssociateRQ{
		CalledAETitle:      pdu.PadAETitle(c.cfg.CalledAETitle),
		CallingAETitle:     pdu.PadAETitle(c.cfg.CallingAETitle),
		ApplicationContext: pdu.ApplicationContextName,
		UserInfo: pdu.UserInformation{
			MaxPDULength:           c.cfg.MaxPDULength,
			ImplementationClassUID: implementationClassUID,
			ImplementationVersion:  implementationVersionName,
		},
	}
	for _, pc := range c.cfg.PresentationContexts {
		rq.PresentationContexts = append(rq.PresentationContexts, pdu.PresentationContextRQ{
			ID:               pc.ID,
			AbstractSyntax:   pc.AbstractSyntax,
			TransferSyntaxes: pc.TransferSyntaxes,
		})
	}

	if err := conn.sendPDU(rq); err != nil {
		_ = conn.close()
		return nil, err
	}

	reply, err := conn.readPDU()
	if err != nil {
		_ = conn.close()
		return nil, err
	}

	switch v := reply.(type) {
	case *pdu.AssociateAC:
		if v.UserInfo.MaxPDULength > 0 && v.UserInfo.MaxPDULength < c.cfg.MaxPDULength {
			a.maxPDULength = v.UserInfo.MaxPDULength
		} else {
			a.maxPDULength = c.cfg.MaxPDULength
		}
		for _, ac := range v.PresentationContexts {
			if ac.Result != pdu.ResultAcceptance {
				continue
			}
			for _, pc := range rq.PresentationContexts {
				if pc.ID == ac.ID {
					a.contexts[ac.ID] = negotiatedContext{
						ID:             ac.ID,
						AbstractSyntax: pc.AbstractSyntax,
						TransferSyntax: ac.TransferSyntax,
					}
				}
			}
		}
		if len(a.contexts) == 0 {
			_ = conn.close()
			return nil, fmt.Errorf("dimse: peer accepted association but rejected every presentation context")
		}
		a.setState(StateEstablished)
		return a, nil
	case *pdu.AssociateRJ:
		_ = conn.close()
		return nil, &AssociationRejectedError{Result: v.Result, Source: v.Source, Reason: v.Reason}
	case *pdu.Abort:
		_ = conn.close()
		return nil, &AssociationAbortedError{Source: v.Source, Reason: v.Reason}
	default:
		_ = conn.close()
		return nil, fmt.Errorf("dimse: unexpected PDU %T in response to A-ASSOCIATE-RQ", reply)
	}
}

// Echo issues a C-ECHO-RQ over a (an already-established association) and returns the peer's
// status code, per PS3.7 §9.3.5. StatusSuccess (0x0000) indicates the peer is reachable and
// responsive.
func (c *Client) Echo(ctx context.Context, a *Association) (uint16, error) {
	if a.State() != StateEstablished {
		return 0, fmt.Errorf("dimse: Echo requires an Established association, got %s", a.State())
	}
	nc, ok := a.contextFor(VerificationSOPClassUID)
	if !ok {
		return 0, fmt.Errorf("dimse: no negotiated presentation context for %s", VerificationSOPClassUID)
	}

	req := CommandSet{
		CommandField:        CommandCEchoRQ,
		MessageID:           a.nextMessageID(),
		AffectedSOPClassUID: VerificationSOPClassUID,
		CommandDataSetType:  DataSetNotPresent,
	}
	if err := a.sendCommand(nc.ID, req); err != nil {
		return 0, err
	}

	resp, err := a.receiveCommand()
	if err != nil {
		return 0, err
	}
	if resp.CommandField != CommandCEchoRSP {
		return 0, fmt.Errorf("dimse: expected C-ECHO-RSP, got command field 0x%04x", resp.CommandField)
	}
	return resp.Status, nil
}
