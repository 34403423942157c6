package smpp

import (
	"context"
	"unicode/utf8"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// handleFrame routes one decoded frame by command_id (§4.4). It runs inside
// the dispatch loop, under the serialisation guarantee documented in §4.3
// and §5: the next frame is not dequeued until this call returns.
func (sess *Session) handleFrame(f decodedFrame) {
	switch f.header.CommandID() {
	case pdu.BindTransceiverRespID, pdu.BindTransmitterRespID, pdu.BindReceiverRespID:
		sess.handleBindResp(f)
	case pdu.UnbindID:
		sess.handleUnbind(f)
	case pdu.UnbindRespID:
		sess.deliverPending(f.header.Sequence(), f.p, f.header.Status())
	case pdu.EnquireLinkID:
		sess.handleEnquireLink(f)
	case pdu.EnquireLinkRespID:
		sess.logger.InfoF("smpp: enquire_link_resp seq=%d", f.header.Sequence())
		sess.deliverPending(f.header.Sequence(), f.p, f.header.Status())
	case pdu.SubmitSmRespID:
		sess.handleSubmitSmResp(f)
	case pdu.QuerySmRespID:
		sess.deliverPending(f.header.Sequence(), f.p, f.header.Status())
	case pdu.DeliverSmID:
		sess.handleDeliverSm(f)
	case pdu.GenericNackID:
		sess.logger.ErrorF("smpp: generic_nack seq=%d status=0x%08X", f.header.Sequence(), uint32(f.header.Status()))
		sess.deliverPending(f.header.Sequence(), f.p, f.header.Status())
	default:
		sess.logger.ErrorF("smpp: %+v", &UnknownCommandError{CommandID: uint32(f.header.CommandID())})
	}
}

// handleBindResp implements §4.1 row 2 and §4.4's bind_*_resp entry.
func (sess *Session) handleBindResp(f decodedFrame) {
	status := f.header.Status()
	sess.deliverPending(f.header.Sequence(), f.p, status)

	if status != pdu.StatusOK {
		sess.logger.ErrorF("smpp: bind failed with status 0x%08X", uint32(status))
		return
	}

	sess.mu.Lock()
	if sess.state != StateOpen {
		sess.mu.Unlock()
		return
	}
	sess.cancelBindTimeoutLocked()
	sess.state = sess.role.boundState()
	sess.mu.Unlock()

	sess.startLinkCheckLoop()
	sess.callbacks.connect(sess)
}

// handleUnbind implements the SMSC-initiated unbind entry of §4.4 and §4.1
// row 4: reply, then close the transport.
func (sess *Session) handleUnbind(f decodedFrame) {
	sess.mu.Lock()
	sess.state = StateUnbinding
	sess.mu.Unlock()

	if _, err := sess.encodeSeq(&pdu.UnbindResp{}, f.header.Sequence()); err != nil {
		sess.logger.ErrorF("smpp: sending unbind_resp: %+v", err)
	}
	sess.teardown()
}

// handleEnquireLink implements the inbound keepalive ping of §4.4.
func (sess *Session) handleEnquireLink(f decodedFrame) {
	if f.header.Status() != pdu.StatusOK {
		return
	}
	if _, err := sess.encodeSeq(&pdu.EnquireLinkResp{}, f.header.Sequence()); err != nil {
		sess.logger.ErrorF("smpp: sending enquire_link_resp: %+v", err)
	}
}

// handleSubmitSmResp implements §4.4's submit_sm_resp entry: pop one entry
// from the UnackedLedger and invoke the submit_sm_resp callback, regardless
// of whether a Submit call is synchronously awaiting this response.
func (sess *Session) handleSubmitSmResp(f decodedFrame) {
	sess.deliverPending(f.header.Sequence(), f.p, f.header.Status())

	if _, ok, err := sess.ledger.Pop(context.Background()); err != nil {
		sess.logger.ErrorF("smpp: popping unacked ledger: %+v", err)
	} else if !ok {
		sess.logger.ErrorF("smpp: submit_sm_resp received with an empty unacked ledger")
	}

	var messageID string
	if resp, ok := f.p.(*pdu.SubmitSmResp); ok {
		messageID = resp.MessageID
	}
	sess.callbacks.submitSmResp(f.header.Sequence(), f.header.Status(), f.header.CommandID(), messageID)
}

// handleDeliverSm implements the deliver pipeline (§4.5).
func (sess *Session) handleDeliverSm(f decodedFrame) {
	if !sess.isBoundForReceive() {
		sess.logger.ErrorF("smpp: deliver_sm received while not bound to receive, dropping")
		return
	}
	if f.header.Status() != pdu.StatusOK {
		sess.logger.ErrorF("smpp: deliver_sm received with non-OK status 0x%08X, dropping", uint32(f.header.Status()))
		return
	}
	d, ok := f.p.(*pdu.DeliverSm)
	if !ok {
		sess.logger.ErrorF("smpp: %+v", &DecodeError{Err: &Error{Msg: "deliver_sm payload decoded as unexpected type"}})
		return
	}

	// 1. Mandatory ack — the SMSC retransmits otherwise.
	if _, err := sess.encodeSeq(d.Response(""), f.header.Sequence()); err != nil {
		sess.logger.ErrorF("smpp: sending deliver_sm_resp: %+v", err)
	}

	// 2. Structured delivery report.
	if sess.drProcessor.HandleDeliveryReportPDU(d) {
		return
	}
	// 3. Multipart fragment (SAR or UDH).
	if sess.smProcessor.HandleMultipartPDU(d) {
		return
	}
	// 4. USSD.
	if sess.smProcessor.HandleUSSDPDU(d) {
		return
	}
	// 5. All-or-nothing Unicode decode.
	if !utf8.ValidString(d.ShortMessage) {
		sess.logger.ErrorF("smpp: deliver_sm short_message is not valid unicode, dropping")
		return
	}
	// 6. Text-form delivery report.
	if sess.drProcessor.HandleDeliveryReportContent(d.ShortMessage) {
		return
	}
	// 7. Plain short message.
	sess.smProcessor.HandleShortMessagePDU(d)
}
