package dimse

import (
	"fmt"

	"github.com/jpfielding/dicomgo/pkg/dimse/pdu"
)

// AssociationRejectedError is returned when a peer responds to A-ASSOCIATE-RQ with
// A-ASSOCIATE-RJ, carrying the rejection's result/source/reason exactly as received.
type AssociationRejectedError struct {
	Result byte
	Source byte
	Reason byte
}

func (e *AssociationRejectedError) Error() string {
	return fmt.Sprintf("dimse: association rejected (result=%d source=%d reason=%d)", e.Result, e.Source, e.Reason)
}

// AssociationAbortedError is returned when an A-ABORT was received from, or sent to, the peer.
// Own is true when this side originated the abort.
type AssociationAbortedError struct {
	Source byte
	Reason byte
	Own    bool
}

func (e *AssociationAbortedError) Error() string {
	if e.Own {
		return fmt.Sprintf("dimse: association aborted by this side (source=%d reason=%d)", e.Source, e.Reason)
	}
	return fmt.Sprintf("dimse: association aborted by peer (source=%d reason=%d)", e.Source, e.Reason)
}

// ArtimTimeoutError is returned when the ARTIM timer expires while awaiting the first PDU after
// TCP accept, or while releasing. The association is aborted and closed as a side effect.
type ArtimTimeoutError struct {
	Timeout string
}

func (e *ArtimTimeoutError) Error() string {
	return fmt.Sprintf("dimse: ARTIM timer expired after %s", e.Timeout)
}

// abortReasonForError picks the A-ABORT reason code this side reports to the peer when closing
// the connection because of err, per PS3.8 Table 9-26's service-provider reasons.
func abortReasonForError(err error) byte {
	switch err.(type) {
	case *ArtimTimeoutError:
		return pdu.AbortReasonNotSpecified
	default:
		return pdu.AbortReasonUnexpectedPDU
	}
}
