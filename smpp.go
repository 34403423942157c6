// Package smpp implements the core of an SMPP 3.4 ESME client: the bind
// lifecycle, PDU framing and dispatch, the submit pipeline with long-message
// segmentation, and the sequence-number and unacked-request bookkeeping
// backed by an external Store.
package smpp

import (
	"context"
	"io"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// Version is the interface_version sent on every bind request.
const Version = 0x34

// BindConf carries the parameters of a bind_* request, common to all three
// roles.
type BindConf struct {
	SystemID   string
	Password   string
	SystemType string
	AddrTon    int
	AddrNpi    int
	AddrRange  string
}

// Dial constructs a Session over conn, bound with the given role and
// credentials. conn is already-connected; establishing and reconnecting the
// transport is outside the core (§1 Out of scope) — see the reconnect
// subpackage for a back-off-driven dialer built on top of this.
func Dial(conn io.ReadWriteCloser, role Role, bc BindConf, cfg Config, store Store, opts ...Option) *Session {
	sess := newSession(conn, role, bc, cfg, store)
	for _, o := range opts {
		o(sess)
	}
	sess.run()
	return sess
}

// Option configures optional Session collaborators at construction time.
type Option func(*Session)

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCallbacks registers the lifecycle and delivery callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(s *Session) { s.callbacks = cb }
}

// WithDeliveryReportProcessor overrides the default text-receipt-only
// DeliveryReportProcessor.
func WithDeliveryReportProcessor(p DeliveryReportProcessor) Option {
	return func(s *Session) { s.drProcessor = p }
}

// WithShortMessageProcessor overrides the default UDH/SAR reassembling
// ShortMessageProcessor.
func WithShortMessageProcessor(p ShortMessageProcessor) Option {
	return func(s *Session) { s.smProcessor = p }
}

// BindTransmitter dials a transmitter-role session: may Submit, never
// receives deliver_sm.
func BindTransmitter(conn io.ReadWriteCloser, bc BindConf, cfg Config, store Store, opts ...Option) *Session {
	return Dial(conn, Transmitter, bc, cfg, store, opts...)
}

// BindReceiver dials a receiver-role session: receives deliver_sm, Submit
// fails with StateError.
func BindReceiver(conn io.ReadWriteCloser, bc BindConf, cfg Config, store Store, opts ...Option) *Session {
	return Dial(conn, Receiver, bc, cfg, store, opts...)
}

// BindTransceiver dials a transceiver-role session: both directions.
func BindTransceiver(conn io.ReadWriteCloser, bc BindConf, cfg Config, store Store, opts ...Option) *Session {
	return Dial(conn, Transceiver, bc, cfg, store, opts...)
}

// Unbind sends an unbind request and waits for unbind_resp or ctx
// cancellation, then tears the session down. It is the ESME-initiated
// counterpart to the SMSC-initiated unbind handled automatically by §4.4.
func (sess *Session) Unbind(ctx context.Context) error {
	_, err := sess.sendAwait(ctx, &pdu.Unbind{})
	sess.teardown()
	return err
}
