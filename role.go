package smpp

import "github.com/praekeltfoundation/smppesme/pdu"

// State is the session's position in the bind lifecycle (§4.1).
type State int

const (
	// StateClosed is the initial and terminal state; no transport owned.
	StateClosed State = iota
	// StateOpen is transport-up, bind request sent, awaiting response.
	StateOpen
	// StateBoundTx is bound as transmitter.
	StateBoundTx
	// StateBoundRx is bound as receiver.
	StateBoundRx
	// StateBoundTRx is bound as transceiver.
	StateBoundTRx
	// StateUnbinding is unbind sent or received, awaiting transport close.
	StateUnbinding
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateBoundTx:
		return "BOUND_TX"
	case StateBoundRx:
		return "BOUND_RX"
	case StateBoundTRx:
		return "BOUND_TRX"
	case StateUnbinding:
		return "UNBINDING"
	default:
		return "UNKNOWN"
	}
}

// Role parameterises a Session by which bind PDU it sends and which bound
// state a successful bind response puts it in, replacing the teacher's
// inheritance-based Transmitter/Receiver/Transceiver split with a single
// session type carrying one of three Role values (design notes, role
// polymorphism).
type Role int

const (
	// Transmitter binds as transmitter: may submit_sm, cannot receive
	// deliver_sm.
	Transmitter Role = iota
	// Receiver binds as receiver: may receive deliver_sm, cannot submit_sm.
	Receiver
	// Transceiver binds as transceiver: both directions.
	Transceiver
)

func (r Role) String() string {
	switch r {
	case Transmitter:
		return "transmitter"
	case Receiver:
		return "receiver"
	case Transceiver:
		return "transceiver"
	default:
		return "unknown"
	}
}

// boundState returns the State a successful bind response for this role
// transitions the session into.
func (r Role) boundState() State {
	switch r {
	case Transmitter:
		return StateBoundTx
	case Receiver:
		return StateBoundRx
	default:
		return StateBoundTRx
	}
}

// bindPDU builds the bind request PDU for this role.
func (r Role) bindPDU(bc BindConf) pdu.PDU {
	switch r {
	case Transmitter:
		return &pdu.BindTx{
			SystemID:         bc.SystemID,
			Password:         bc.Password,
			SystemType:       bc.SystemType,
			InterfaceVersion: Version,
			AddrTon:          bc.AddrTon,
			AddrNpi:          bc.AddrNpi,
			AddressRange:     bc.AddrRange,
		}
	case Receiver:
		return &pdu.BindRx{
			SystemID:         bc.SystemID,
			Password:         bc.Password,
			SystemType:       bc.SystemType,
			InterfaceVersion: Version,
			AddrTon:          bc.AddrTon,
			AddrNpi:          bc.AddrNpi,
			AddressRange:     bc.AddrRange,
		}
	default:
		return &pdu.BindTRx{
			SystemID:         bc.SystemID,
			Password:         bc.Password,
			SystemType:       bc.SystemType,
			InterfaceVersion: Version,
			AddrTon:          bc.AddrTon,
			AddrNpi:          bc.AddrNpi,
			AddressRange:     bc.AddrRange,
		}
	}
}
