package smpp

import "github.com/praekeltfoundation/smppesme/pdu"

// Callbacks is a record of optional sinks the session invokes as it moves
// through its lifecycle and handles inbound traffic. Every field may be
// left nil; missing callbacks default to no-ops.
type Callbacks struct {
	// Connect fires once the session reaches a bound state.
	Connect func(sess *Session)
	// Disconnect fires once after the transport is lost, regardless of
	// which state the session was in.
	Disconnect func()
	// SubmitSmResp fires when a submit_sm_resp is received, carrying the
	// sequence number it answers, its status, and the assigned message_id.
	SubmitSmResp func(seq uint32, status pdu.Status, commandID pdu.CommandID, messageID string)
	// DeliveryReport fires for a text-form delivery report recovered from
	// a deliver_sm that none of the structured processors claimed.
	DeliveryReport func(receipt *pdu.DeliveryReceipt)
	// DeliverSm fires for a deliver_sm carrying a plain short message.
	DeliverSm func(sourceAddr, destAddr, text string)
}

func (c Callbacks) connect(sess *Session) {
	if c.Connect != nil {
		c.Connect(sess)
	}
}

func (c Callbacks) disconnect() {
	if c.Disconnect != nil {
		c.Disconnect()
	}
}

func (c Callbacks) submitSmResp(seq uint32, status pdu.Status, commandID pdu.CommandID, messageID string) {
	if c.SubmitSmResp != nil {
		c.SubmitSmResp(seq, status, commandID, messageID)
	}
}

func (c Callbacks) deliveryReport(receipt *pdu.DeliveryReceipt) {
	if c.DeliveryReport != nil {
		c.DeliveryReport(receipt)
	}
}

func (c Callbacks) deliverSm(sourceAddr, destAddr, text string) {
	if c.DeliverSm != nil {
		c.DeliverSm(sourceAddr, destAddr, text)
	}
}
