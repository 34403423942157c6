package smpp

import (
	"fmt"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// Error implements the error and Temporary interfaces used throughout the
// package to signal whether a failure warrants a reconnect/back-off cycle.
type Error struct {
	Msg  string
	Temp bool
}

func (e Error) Error() string {
	return e.Msg
}

// Temporary implements the Temporary interface consumed by the reconnect
// scheduler.
func (e Error) Temporary() bool {
	return e.Temp
}

// FramingError reports a malformed length-prefixed frame. The session must
// be closed when this occurs.
type FramingError struct {
	Msg string
}

func (e *FramingError) Error() string { return "smpp: framing error: " + e.Msg }

// Temporary reports true: the session is closed when this occurs, and a
// fresh connection can legitimately retry.
func (e *FramingError) Temporary() bool { return true }

// StateError reports an operation attempted while the session was in the
// wrong state, e.g. submitting while not bound. Sessions stay open.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("smpp: %s not valid in state %s", e.Op, e.State)
}

// Temporary reports false: the session stays open, and retrying without
// reaching the right state first will fail the same way.
func (e *StateError) Temporary() bool { return false }

// NonOKStatusError wraps a non-ESME_ROK command_status received on a
// response PDU.
type NonOKStatusError struct {
	CommandID pdu.CommandID
	Status    uint32
}

func (e *NonOKStatusError) Error() string {
	return fmt.Sprintf("smpp: command_id 0x%08X returned non-OK status 0x%08X", uint32(e.CommandID), e.Status)
}

// Temporary reports false: the SMSC rejected this specific request, and
// resending the same PDU will draw the same status.
func (e *NonOKStatusError) Temporary() bool { return false }

// UnknownCommandError reports a command_id the dispatcher has no handler
// for. It is logged and the PDU discarded; the session stays up.
type UnknownCommandError struct {
	CommandID uint32
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("smpp: unknown command_id 0x%08X", e.CommandID)
}

// Temporary reports false: the session stays up and nothing about
// reconnecting changes which command_ids this dispatcher recognises.
func (e *UnknownCommandError) Temporary() bool { return false }

// DecodeError wraps a failure to unmarshal a PDU body during deliver
// dispatch. The specific PDU is dropped; the session stays up.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "smpp: decode error: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Temporary reports false: the session stays up and the malformed PDU body
// would decode the same way again.
func (e *DecodeError) Temporary() bool { return false }

// TransportError reports an I/O failure on the underlying connection. It is
// surfaced to the reconnect layer, not handled by the core.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "smpp: transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Temporary() bool {
	type temporary interface{ Temporary() bool }
	if t, ok := e.Err.(temporary); ok {
		return t.Temporary()
	}
	return true
}
