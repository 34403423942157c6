package smpp

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// decodedFrame pairs a decoded header and body as handed from the Framer to
// the dispatch loop.
type decodedFrame struct {
	header pdu.Header
	p      pdu.PDU
}

// response is what a response command_id delivers to a sendAwait caller.
type response struct {
	p   pdu.PDU
	err error
}

// Session is a single connection to one SMSC: the bind lifecycle (§4.1), the
// framing and dispatch pipeline (§4.2-4.3), and the handlers (§4.4-4.5) that
// act on it. One Session exclusively owns its Framer buffer and its pending
// timer handles; the SequenceAllocator and UnackedLedger's backing Store is
// shared across every session bound against the same SMSC.
type Session struct {
	conn  io.ReadWriteCloser
	role  Role
	bc    BindConf
	cfg   Config
	store Store

	logger      Logger
	callbacks   Callbacks
	drProcessor DeliveryReportProcessor
	smProcessor ShortMessageProcessor

	seqAlloc *SequenceAllocator
	ledger   *UnackedLedger
	framer   *Framer

	writeMu sync.Mutex
	enc     *pdu.Encoder

	mu            sync.Mutex
	state         State
	bindTimer     *time.Timer
	stopLinkCheck chan struct{}
	pending       map[uint32]chan response

	inbound chan decodedFrame
	closed  chan struct{}
	wg      sync.WaitGroup

	teardownOnce sync.Once
}

func newSession(conn io.ReadWriteCloser, role Role, bc BindConf, cfg Config, store Store) *Session {
	sess := &Session{
		conn:          conn,
		role:          role,
		bc:            bc,
		cfg:           cfg,
		store:         store,
		logger:        DefaultLogger{},
		framer:        NewFramer(),
		stopLinkCheck: make(chan struct{}),
		pending:       make(map[uint32]chan response),
		inbound:       make(chan decodedFrame, 32),
		closed:        make(chan struct{}),
		state:         StateClosed,
	}
	sess.enc = pdu.NewEncoder(conn, pdu.NewSequencer(1))
	return sess
}

// run starts the reader and dispatcher, transitions CLOSED -> OPEN, and
// sends the bind request (§4.1, row 1).
func (sess *Session) run() {
	sess.seqAlloc = NewSequenceAllocator(sess.store, sess.logger)
	sess.ledger = NewUnackedLedger(sess.store)
	if sess.drProcessor == nil {
		sess.drProcessor = newDefaultDeliveryReportProcessor(sess.callbacks)
	}
	if sess.smProcessor == nil {
		sess.smProcessor = newDefaultShortMessageProcessor(sess.callbacks)
	}

	sess.wg.Add(2)
	go sess.readLoop()
	go sess.dispatchLoop()

	sess.mu.Lock()
	sess.state = StateOpen
	sess.mu.Unlock()

	ctx := context.Background()
	seq, err := sess.seqAlloc.Next(ctx)
	if err != nil {
		sess.logger.ErrorF("smpp: allocating bind sequence: %+v", err)
		sess.teardown()
		return
	}
	if _, err := sess.encodeSeq(sess.role.bindPDU(sess.bc), seq); err != nil {
		sess.logger.ErrorF("smpp: sending bind request: %+v", err)
		sess.teardown()
		return
	}
	sess.armBindTimeout()
}

// State returns the session's current position in the bind lifecycle.
func (sess *Session) State() State {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}

// Closed returns a channel that is closed once the transport has been torn
// down. The disconnect callback fires after this, once the session's
// background goroutines have exited.
func (sess *Session) Closed() <-chan struct{} {
	return sess.closed
}

func (sess *Session) armBindTimeout() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	timeout := sess.cfg.BindTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sess.bindTimer = time.AfterFunc(timeout, func() {
		sess.logger.ErrorF("smpp: bind timeout exceeded, closing session")
		sess.teardown()
	})
}

// cancelBindTimeoutLocked stops the bind timer. Callers must hold sess.mu.
func (sess *Session) cancelBindTimeoutLocked() {
	if sess.bindTimer != nil {
		sess.bindTimer.Stop()
		sess.bindTimer = nil
	}
}

// startLinkCheckLoop begins the periodic enquire_link loop once bound (§4.1
// row 2, §5 Timers).
func (sess *Session) startLinkCheckLoop() {
	sess.wg.Add(1)
	go sess.linkCheckLoop()
}

func (sess *Session) linkCheckLoop() {
	defer sess.wg.Done()
	interval := sess.cfg.EnquireLinkInterval
	if interval <= 0 {
		interval = 55 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sess.mu.Lock()
			bound := sess.state == StateBoundTx || sess.state == StateBoundRx || sess.state == StateBoundTRx
			sess.mu.Unlock()
			if !bound {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := sess.sendAwait(ctx, &pdu.EnquireLink{}); err != nil {
				sess.logger.ErrorF("smpp: enquire_link: %+v", err)
			}
			cancel()
		case <-sess.stopLinkCheck:
			return
		}
	}
}

// readLoop feeds inbound bytes to the Framer and pushes decoded frames to
// the single-consumer dispatch loop (§4.2, §4.3).
func (sess *Session) readLoop() {
	defer sess.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := sess.conn.Read(buf)
		if n > 0 {
			sess.framer.Feed(buf[:n])
			if !sess.drainFrames() {
				return
			}
		}
		if err != nil {
			sess.logger.InfoF("smpp: transport read ended: %+v", err)
			sess.teardown()
			return
		}
	}
}

// drainFrames pops every complete frame currently buffered and forwards it
// to the dispatcher. It returns false if the session is tearing down and the
// caller should stop reading.
func (sess *Session) drainFrames() bool {
	for {
		frame, err := sess.framer.Pop()
		if err != nil {
			sess.logger.ErrorF("smpp: %+v", err)
			sess.teardown()
			return false
		}
		if frame == nil {
			return true
		}
		header, p, ok := decodeFrame(frame)
		if !ok {
			sess.logger.ErrorF("smpp: dropping unparseable frame (%d bytes)", len(frame))
			continue
		}
		select {
		case sess.inbound <- decodedFrame{header: header, p: p}:
		case <-sess.closed:
			return false
		}
	}
}

// decodeFrame turns one length-delimited frame into a (header, PDU) pair.
// pdu.NewPDU panics on a command_id it does not recognise, so an unknown
// command surfaces here as ok == false rather than as a crash.
func decodeFrame(frame []byte) (header pdu.Header, p pdu.PDU, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	h, pd, err := pdu.NewDecoder(bytes.NewReader(frame)).Decode()
	if err != nil {
		return h, nil, false
	}
	return h, pd, true
}

// dispatchLoop is the single-consumer task that guarantees strict
// per-connection PDU serialisation (§4.3, §5).
func (sess *Session) dispatchLoop() {
	defer sess.wg.Done()
	for {
		select {
		case f := <-sess.inbound:
			sess.handleFrame(f)
		case <-sess.closed:
			return
		}
	}
}

// teardown is the sole cancellation path (§5 Cancellation): it cancels the
// bind timer, stops the link-check loop, closes the transport, and once the
// background goroutines have drained invokes the disconnect callback
// exactly once.
func (sess *Session) teardown() {
	sess.teardownOnce.Do(func() {
		sess.mu.Lock()
		sess.cancelBindTimeoutLocked()
		sess.state = StateClosed
		close(sess.stopLinkCheck)
		pending := sess.pending
		sess.pending = nil
		sess.mu.Unlock()

		for _, ch := range pending {
			close(ch)
		}

		sess.conn.Close()
		close(sess.closed)

		go func() {
			sess.wg.Wait()
			sess.callbacks.disconnect()
		}()
	})
}

// encodeSeq marshals and writes p with an explicit sequence number,
// serialising access to the shared connection writer.
func (sess *Session) encodeSeq(p pdu.PDU, seq uint32) (uint32, error) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.enc.Encode(p, pdu.EncodeSeq(seq))
}

// sendAwait allocates a sequence number, sends p, and blocks until the
// matching response arrives, ctx is cancelled, or the session closes.
func (sess *Session) sendAwait(ctx context.Context, p pdu.PDU) (pdu.PDU, error) {
	_, resp, err := sess.sendAwaitSeq(ctx, p)
	return resp, err
}

// sendAwaitSeq is sendAwait plus the allocated sequence number, for callers
// that need to report it back (e.g. EnquireLink).
func (sess *Session) sendAwaitSeq(ctx context.Context, p pdu.PDU) (uint32, pdu.PDU, error) {
	seq, err := sess.seqAlloc.Next(ctx)
	if err != nil {
		return 0, nil, err
	}
	ch := make(chan response, 1)
	sess.mu.Lock()
	if sess.pending == nil {
		sess.mu.Unlock()
		return 0, nil, &Error{Msg: "smpp: session already closed", Temp: false}
	}
	sess.pending[seq] = ch
	sess.mu.Unlock()

	if _, err := sess.encodeSeq(p, seq); err != nil {
		sess.mu.Lock()
		delete(sess.pending, seq)
		sess.mu.Unlock()
		return 0, nil, err
	}

	select {
	case r, ok := <-ch:
		if !ok {
			return 0, nil, &Error{Msg: "smpp: session closed before response arrived", Temp: true}
		}
		return seq, r.p, r.err
	case <-ctx.Done():
		sess.mu.Lock()
		delete(sess.pending, seq)
		sess.mu.Unlock()
		return 0, nil, ctx.Err()
	case <-sess.closed:
		return 0, nil, &Error{Msg: "smpp: session closed before response arrived", Temp: true}
	}
}

// deliverPending hands a response PDU to a waiting sendAwait call, if any.
// It always runs, independent of whether a handler also acts on the same
// frame (e.g. submit_sm_resp both wakes a waiter and pops the ledger).
func (sess *Session) deliverPending(seq uint32, p pdu.PDU, status pdu.Status) bool {
	sess.mu.Lock()
	var ch chan response
	if sess.pending != nil {
		ch = sess.pending[seq]
		delete(sess.pending, seq)
	}
	sess.mu.Unlock()
	if ch == nil {
		return false
	}
	var err error
	if status != pdu.StatusOK {
		err = &NonOKStatusError{CommandID: p.CommandID(), Status: uint32(status)}
	}
	ch <- response{p: p, err: err}
	close(ch)
	return true
}

// QuerySm queries the delivery status of a previously submitted message
// (supplementing the distilled submit-only spec with the original's query
// operation).
func (sess *Session) QuerySm(ctx context.Context, messageID string, sourceAddrTon, sourceAddrNpi int, sourceAddr string) (*pdu.QuerySmResp, error) {
	if !sess.isBoundForSubmit() {
		return nil, &StateError{Op: "query_sm", State: sess.State()}
	}
	p, err := sess.sendAwait(ctx, &pdu.QuerySm{
		MessageID:     messageID,
		SourceAddrTon: sourceAddrTon,
		SourceAddrNpi: sourceAddrNpi,
		SourceAddr:    sourceAddr,
	})
	if err != nil {
		return nil, err
	}
	resp, ok := p.(*pdu.QuerySmResp)
	if !ok {
		return nil, &DecodeError{Err: &Error{Msg: "query_sm_resp decoded as unexpected type"}}
	}
	return resp, nil
}

// EnquireLink sends an explicit liveness probe and waits for enquire_link_resp,
// returning the sequence number it was sent with (supplementing the
// distilled spec's automatic-only keepalive with the original's callable
// enquire_link operation).
func (sess *Session) EnquireLink(ctx context.Context) (uint32, error) {
	seq, _, err := sess.sendAwaitSeq(ctx, &pdu.EnquireLink{})
	return seq, err
}

func (sess *Session) isBoundForSubmit() bool {
	switch sess.State() {
	case StateBoundTx, StateBoundTRx:
		return true
	default:
		return false
	}
}

func (sess *Session) isBoundForReceive() bool {
	switch sess.State() {
	case StateBoundRx, StateBoundTRx:
		return true
	default:
		return false
	}
}
