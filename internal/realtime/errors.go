package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryClosed is returned once the registry has shut down.
	ErrRegistryClosed = errors.New("realtime registry closed")
	// ErrClientClosed is returned when subscribing through a closed client.
	ErrClientClosed = errors.New("realtime client closed")
	// ErrUnknownTable is returned for a table that publishes no change events.
	ErrUnknownTable = errors.New("unknown change table")
)

// DeliveryReason says why the server closed a client.
type DeliveryReason string

const (
	// ReasonOverflow means the client's mailbox filled up.
	ReasonOverflow DeliveryReason = "overflow"
	// ReasonTransport means writing to the client failed or timed out.
	ReasonTransport DeliveryReason = "transport"
	// ReasonShutdown means the registry closed.
	ReasonShutdown DeliveryReason = "shutdown"
	// ReasonResync means the change feed had a gap; the client must
	// resnapshot to catch up.
	ReasonResync DeliveryReason = "resync"
)

// DeliveryError is the terminal error of a client the server dropped. It
// only ever affects that one client.
type DeliveryError struct {
	ClientID string
	Reason   DeliveryReason
	Err      error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery to client %s failed (%s): %v", e.ClientID, e.Reason, e.Err)
	}
	return fmt.Sprintf("delivery to client %s failed (%s)", e.ClientID, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsOverflow reports whether err is a DeliveryError caused by a full mailbox.
func IsOverflow(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Reason == ReasonOverflow
}
