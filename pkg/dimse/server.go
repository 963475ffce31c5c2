package dimse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/jpfielding/dicomgo/pkg/dimse/pdu"
)

// Server is an SCP: it listens for TCP connections, negotiates each association, and dispatches
// the DIMSE services its ServerConfig supports. The spec scopes this to C-ECHO.
type Server struct {
	cfg ServerConfig
	log *slog.Logger

	active int64 // atomic, bounded by cfg.MaxAssociations
}

// NewServer validates cfg and returns a Server ready to Serve.
func NewServer(cfg ServerConfig, log *slog.Logger) (*Server, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, log: log}, nil
}

// Serve accepts connections on l until ctx is canceled or Accept fails, running each association
// on its own goroutine. It returns nil on context cancellation.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dimse: accept: %w", err)
		}
		if atomic.AddInt64(&s.active, 1) > s.cfg.MaxAssociations {
			atomic.AddInt64(&s.active, -1)
			s.log.Warn("rejecting connection: max associations reached", "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, netConn net.Conn) {
	defer atomic.AddInt64(&s.active, -1)

	conn := newConnection(netConn, s.cfg.MaxPDULength, s.cfg.ArtimTimeout)
	defer conn.close()

	a := &Association{
		conn:     conn,
		log:      s.log,
		state:    StateAwaitingRequest,
		called:   s.cfg.AETitle,
		contexts: map[byte]negotiatedContext{},
	}

	p, err := conn.readPDU()
	if err != nil {
		var artim *ArtimTimeoutError
		if errors.As(err, &artim) {
			s.log.Warn("ARTIM timeout awaiting A-ASSOCIATE-RQ", "remote", netConn.RemoteAddr())
		}
		return
	}
	rq, ok := p.(*pdu.AssociateRQ)
	if !ok {
		_ = conn.sendPDU(&pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU})
		return
	}
	a.calling = pdu.TrimAETitle(rq.CallingAETitle)

	calledAE := pdu.TrimAETitle(rq.CalledAETitle)
	if calledAE != s.cfg.AETitle {
		_ = conn.sendPDU(&pdu.AssociateRJ{
			Result: pdu.RJResultPermanent,
			Source: pdu.RJSourceServiceUser,
			Reason: pdu.RJReasonCalledAETitleNotRecognized,
		})
		return
	}
	if s.cfg.AcceptCallingAETitle != nil && !s.cfg.AcceptCallingAETitle(a.calling) {
		_ = conn.sendPDU(&pdu.AssociateRJ{
			Result: pdu.RJResultPermanent,
			Source: pdu.RJSourceServiceUser,
			Reason: pdu.RJReasonCallingAETitleNotRecognized,
		})
		return
	}

	ac := &pdu.AssociateAC{
		CalledAETitle:      rq.CalledAETitle,
		CallingAETitle:     rq.CallingAETitle,
		ApplicationContext: pdu.ApplicationContextName,
		UserInfo: pdu.UserInformation{
			MaxPDULength:           s.cfg.MaxPDULength,
			ImplementationClassUID: implementationClassUID,
			ImplementationVersion:  implementationVersionName,
		},
	}

	negotiatedMax := s.cfg.MaxPDULength
	if rq.UserInfo.MaxPDULength > 0 && rq.UserInfo.MaxPDULength < negotiatedMax {
		negotiatedMax = rq.UserInfo.MaxPDULength
	}
	a.maxPDULength = negotiatedMax

	for _, pc := range rq.PresentationContexts {
		result, chosen := s.negotiateContext(pc)
		ac.PresentationContexts = append(ac.PresentationContexts, pdu.PresentationContextAC{
			ID:             pc.ID,
			Result:         result,
			TransferSyntax: chosen,
		})
		if result == pdu.ResultAcceptance {
			a.contexts[pc.ID] = negotiatedContext{ID: pc.ID, AbstractSyntax: pc.AbstractSyntax, TransferSyntax: chosen}
		}
	}

	if err := conn.sendPDU(ac); err != nil {
		return
	}
	if len(a.contexts) == 0 {
		_ = conn.sendPDU(&pdu.Abort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDUParam})
		return
	}
	a.setState(StateEstablished)
	s.log.Info("association established", "calling", a.calling, "called", a.called, "remote", netConn.RemoteAddr())

	s.serveAssociation(ctx, a)
}

// negotiateContext applies spec §4.7's per-context acceptance rule: accept the first offered
// transfer syntax this server supports for the abstract syntax; otherwise reject with the most
// specific applicable reason.
func (s *Server) negotiateContext(pc pdu.PresentationContextRQ) (result byte, transferSyntax string) {
	supported, ok := s.cfg.SupportedContexts[pc.AbstractSyntax]
	if !ok {
		return pdu.ResultAbstractSyntaxNotSupported, ""
	}
	for _, offered := range pc.TransferSyntaxes {
		for _, ts := range supported {
			if offered == ts {
				return pdu.ResultAcceptance, ts
			}
		}
	}
	return pdu.ResultTransferSyntaxesNotSupported, ""
}

// serveAssociation dispatches command streams on an Established association until the peer
// releases, aborts, or the ARTIM timer expires.
func (s *Server) serveAssociation(ctx context.Context, a *Association) {
	for {
		p, err := a.conn.readPDU()
		if err != nil {
			var artim *ArtimTimeoutError
			if errors.As(err, &artim) {
				_ = a.Abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonNotSpecified)
			}
			return
		}
		switch v := p.(type) {
		case *pdu.DataTF:
			if err := s.dispatchCommand(ctx, a, v); err != nil {
				s.log.Warn("dispatching command", "err", err)
				return
			}
		case *pdu.ReleaseRQ:
			a.setState(StateReleasing)
			_ = a.conn.sendPDU(&pdu.ReleaseRP{})
			a.setState(StateClosed)
			return
		case *pdu.Abort:
			a.setState(StateAborted)
			s.log.Info("association aborted by peer", "source", v.Source, "reason", v.Reason)
			return
		default:
			_ = a.Abort(pdu.AbortSourceServiceProvider, pdu.AbortReasonUnexpectedPDU)
			return
		}
	}
}

// dispatchCommand reassembles the command stream that began with the first DataTF PDU (seeding
// it back through receiveStream) and routes it to the matching service handler.
func (s *Server) dispatchCommand(ctx context.Context, a *Association, first *pdu.DataTF) error {
	var raw []byte
	for _, item := range first.Items {
		if !item.IsCommand() {
			continue
		}
		raw = append(raw, item.Data...)
		if item.IsLastFragment() {
			return s.handleCommand(ctx, a, raw)
		}
	}
	rest, err := a.receiveStream(true)
	if err != nil {
		return err
	}
	return s.handleCommand(ctx, a, append(raw, rest...))
}

func (s *Server) handleCommand(ctx context.Context, a *Association, raw []byte) error {
	cs, err := DecodeCommandSet(raw)
	if err != nil {
		return err
	}
	nc, ok := a.contextFor(cs.AffectedSOPClassUID)
	if !ok {
		return fmt.Errorf("dimse: command dataset references unnegotiated SOP class %s", cs.AffectedSOPClassUID)
	}

	switch cs.CommandField {
	case CommandCEchoRQ:
		status := StatusSuccess
		if s.cfg.EchoHandler != nil {
			status = s.cfg.EchoHandler(ctx, cs)
		}
		resp := CommandSet{
			CommandField:              CommandCEchoRSP,
			MessageIDBeingRespondedTo: cs.MessageID,
			AffectedSOPClassUID:       cs.AffectedSOPClassUID,
			CommandDataSetType:        DataSetNotPresent,
			Status:                    status,
		}
		return a.sendCommand(nc.ID, resp)
	default:
		return fmt.Errorf("dimse: unsupported command field 0x%04x", cs.CommandField)
	}
}
