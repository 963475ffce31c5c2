package dimse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jpfielding/dicomgo/pkg/dimse/pdu"
)

// negotiatedContext is one presentation context both sides agreed on: an ID, an abstract syntax,
// and the single transfer syntax chosen for it.
type negotiatedContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
}

// Association is one upper-layer association, client- or server-side. It owns the TCP connection,
// the negotiated presentation contexts, and the association's State per spec §4.7.
type Association struct {
	conn *connection
	log  *slog.Logger

	mu    sync.Mutex
	state State

	calling, called string
	maxPDULength    uint32 // negotiated: min(offered, configured)
	contexts        map[byte]negotiatedContext

	messageID uint32 // atomic; wraps 0xFFFF -> 1, per spec §4.7 message-ID allocation
}

func (a *Association) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Association) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}

// nextMessageID allocates this association's next Message ID, wrapping from 0xFFFF back to 1 so
// the ID never collides with the reserved 0 value.
func (a *Association) nextMessageID() uint16 {
	for {
		cur := atomic.LoadUint32(&a.messageID)
		next := cur + 1
		if next > 0xFFFF {
			next = 1
		}
		if atomic.CompareAndSwapUint32(&a.messageID, cur, next) {
			return uint16(next)
		}
	}
}

// contextFor returns the sole negotiated context for abstractSyntax, since this package only ever
// negotiates the Verification SOP Class per association.
func (a *Association) contextFor(abstractSyntax string) (negotiatedContext, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, nc := range a.contexts {
		if nc.AbstractSyntax == abstractSyntax {
			return nc, true
		}
	}
	return negotiatedContext{}, false
}

// fragmentSize is the largest payload a single PDV may carry under the negotiated Max PDU Length,
// per spec §4.6: the PDV's own 6-byte length+context+control header must fit inside the limit too.
func (a *Association) fragmentSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := int(a.maxPDULength) - 6
	if n < 1 {
		n = 1
	}
	return n
}

// sendCommand writes cs as a single-PDV (or fragmented multi-PDV) command stream, command=1 on
// every PDV and last=1 on the final one, per spec §4.6 fragmentation rule.
func (a *Association) sendCommand(contextID byte, cs CommandSet) error {
	raw, err := EncodeCommandSet(cs)
	if err != nil {
		return err
	}
	return a.sendFragmented(contextID, raw, true)
}

func (a *Association) sendFragmented(contextID byte, raw []byte, isCommand bool) error {
	size := a.fragmentSize()
	if len(raw) == 0 {
		pdv := pdu.NewPDV(contextID, isCommand, true, nil)
		return a.conn.sendPDU(&pdu.DataTF{Items: []pdu.PresentationDataValue{pdv}})
	}
	for offset := 0; offset < len(raw); offset += size {
		end := offset + size
		if end > len(raw) {
			end = len(raw)
		}
		last := end == len(raw)
		pdv := pdu.NewPDV(contextID, isCommand, last, raw[offset:end])
		if err := a.conn.sendPDU(&pdu.DataTF{Items: []pdu.PresentationDataValue{pdv}}); err != nil {
			return err
		}
	}
	return nil
}

// receiveCommand reads P-DATA-TF PDUs on contextID until a command PDV train completes (last=1),
// reassembling the fragments and decoding the resulting command dataset. Any non-DataTF PDU ends
// the read early: an A-ABORT with an *AssociationAbortedError, any other PDU with a plain error.
func (a *Association) receiveCommand() (CommandSet, error) {
	raw, err := a.receiveStream(true)
	if err != nil {
		return CommandSet{}, err
	}
	return DecodeCommandSet(raw)
}

func (a *Association) receiveStream(wantCommand bool) ([]byte, error) {
	var out []byte
	for {
		p, err := a.conn.readPDU()
		if err != nil {
			return nil, err
		}
		switch v := p.(type) {
		case *pdu.DataTF:
			for _, item := range v.Items {
				if item.IsCommand() != wantCommand {
					continue
				}
				out = append(out, item.Data...)
				if item.IsLastFragment() {
					return out, nil
				}
			}
		case *pdu.Abort:
			a.setState(StateAborted)
			return nil, &AssociationAbortedError{Source: v.Source, Reason: v.Reason}
		default:
			a.setState(StateAborted)
			return nil, fmt.Errorf("dimse: unexpected PDU %T while reading stream", p)
		}
	}
}

// Release performs a graceful A-RELEASE exchange: send A-RELEASE-RQ, await A-RELEASE-RP, close.
// Per spec §4.7 the ARTIM timer also bounds the wait for the reply.
func (a *Association) Release(ctx context.Context) error {
	a.setState(StateReleasing)
	if err := a.conn.sendPDU(&pdu.ReleaseRQ{}); err != nil {
		return err
	}
	p, err := a.conn.readPDU()
	if err != nil {
		a.setState(StateAborted)
		_ = a.conn.close()
		return err
	}
	if _, ok := p.(*pdu.ReleaseRP); !ok {
		a.setState(StateAborted)
		return fmt.Errorf("dimse: expected A-RELEASE-RP, got %T", p)
	}
	a.setState(StateClosed)
	return a.conn.close()
}

// Abort sends A-ABORT and closes the transport immediately, without awaiting any reply.
func (a *Association) Abort(source, reason byte) error {
	_ = a.conn.sendPDU(&pdu.Abort{Source: source, Reason: reason})
	a.setState(StateAborted)
	return a.conn.close()
}

// Close closes the underlying transport without any release/abort handshake. Safe to call after
// Release or Abort has already run.
func (a *Association) Close() error {
	return a.conn.close()
}
