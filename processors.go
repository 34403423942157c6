package smpp

import (
	"sync"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// DeliveryReportProcessor interprets deliver_sm bodies that carry a
// structured or text-form delivery receipt. Its internals (how a receipt is
// recognised, stored, matched against the original submit) are an external
// concern; the core only defines the call contract and precedence order
// documented in the deliver pipeline.
type DeliveryReportProcessor interface {
	// HandleDeliveryReportPDU is offered the PDU first. Returning true
	// stops the deliver pipeline.
	HandleDeliveryReportPDU(p *pdu.DeliverSm) bool
	// HandleDeliveryReportContent is offered the decoded text of a
	// message the other processors did not claim. Returning true stops
	// the pipeline.
	HandleDeliveryReportContent(text string) bool
}

// ShortMessageProcessor interprets deliver_sm bodies that carry multipart
// fragments, USSD session data, or a plain short message. As with
// DeliveryReportProcessor, only the call contract is fixed here.
type ShortMessageProcessor interface {
	// HandleMultipartPDU is offered the PDU as a potential SAR/UDH
	// fragment. Returning true stops the pipeline — the processor takes
	// responsibility for reassembly and redelivery.
	HandleMultipartPDU(p *pdu.DeliverSm) bool
	// HandleUSSDPDU is offered the PDU as a potential USSD message.
	// Returning true stops the pipeline.
	HandleUSSDPDU(p *pdu.DeliverSm) bool
	// HandleShortMessagePDU delivers a plain short message; it is only
	// reached once every earlier stage declined the PDU.
	HandleShortMessagePDU(p *pdu.DeliverSm)
}

// defaultDeliveryReportProcessor never claims the structured PDU form (no
// SMSC-specific receipt PDU layout is assumed) but recognises the text-form
// delivery receipt format fixed by the SMPP 3.4 specification and already
// implemented by the PDU codec's ParseDeliveryReceipt.
type defaultDeliveryReportProcessor struct {
	callbacks Callbacks
}

func newDefaultDeliveryReportProcessor(cb Callbacks) *defaultDeliveryReportProcessor {
	return &defaultDeliveryReportProcessor{callbacks: cb}
}

func (p *defaultDeliveryReportProcessor) HandleDeliveryReportPDU(*pdu.DeliverSm) bool {
	return false
}

func (p *defaultDeliveryReportProcessor) HandleDeliveryReportContent(text string) bool {
	receipt, err := pdu.ParseDeliveryReceipt(text)
	if err != nil {
		return false
	}
	p.callbacks.deliveryReport(receipt)
	return true
}

// fragmentKey identifies one multipart message in flight.
type fragmentKey struct {
	source, dest string
	ref          int
}

// defaultShortMessageProcessor reassembles UDH-concatenated fragments
// in-process, the same grouping fiorix/go-smpp's Receiver.mergeCleaner uses
// for its MergeHolder (group by reference, order by part index, merge once
// every part has arrived). SAR-tagged fragments are matched the same way
// using the sar_msg_ref_num/sar_total_segments/sar_segment_seqnum optional
// parameters instead of the inline UDH.
type defaultShortMessageProcessor struct {
	callbacks Callbacks

	mu        sync.Mutex
	fragments map[fragmentKey]map[int]string
	totals    map[fragmentKey]int
}

func newDefaultShortMessageProcessor(cb Callbacks) *defaultShortMessageProcessor {
	return &defaultShortMessageProcessor{
		callbacks: cb,
		fragments: make(map[fragmentKey]map[int]string),
		totals:    make(map[fragmentKey]int),
	}
}

func (p *defaultShortMessageProcessor) HandleMultipartPDU(d *pdu.DeliverSm) bool {
	if d.EsmClass.Feature == pdu.UDHIEsmFeat || d.EsmClass.Feature == pdu.UDHIRepPathEsmFeat {
		return p.handleUDHFragment(d)
	}
	if d.Options != nil {
		if n := d.Options.SarTotalSegments(); n > 0 {
			return p.handleSARFragment(d, n)
		}
	}
	return false
}

func (p *defaultShortMessageProcessor) handleUDHFragment(d *pdu.DeliverSm) bool {
	udh, content, err := pdu.SeparateUDH([]byte(d.ShortMessage))
	if err != nil || len(udh) < 6 || udh[1] != 0x00 {
		return false
	}
	key := fragmentKey{source: d.SourceAddr, dest: d.DestinationAddr, ref: int(udh[3])}
	return p.assemble(key, int(udh[4]), int(udh[5]), string(content))
}

func (p *defaultShortMessageProcessor) handleSARFragment(d *pdu.DeliverSm, total int) bool {
	key := fragmentKey{source: d.SourceAddr, dest: d.DestinationAddr, ref: d.Options.SarMsgRefNum()}
	return p.assemble(key, total, d.Options.SarSegmentSeqnum(), d.ShortMessage)
}

func (p *defaultShortMessageProcessor) assemble(key fragmentKey, total, seq int, part string) bool {
	if total <= 0 || seq <= 0 {
		return false
	}
	p.mu.Lock()
	parts, ok := p.fragments[key]
	if !ok {
		parts = make(map[int]string)
		p.fragments[key] = parts
		p.totals[key] = total
	}
	parts[seq] = part
	complete := len(parts) == p.totals[key]
	var whole string
	if complete {
		for i := 1; i <= total; i++ {
			whole += parts[i]
		}
		delete(p.fragments, key)
		delete(p.totals, key)
	}
	p.mu.Unlock()
	if complete {
		p.callbacks.deliverSm(key.source, key.dest, whole)
	}
	return true
}

func (p *defaultShortMessageProcessor) HandleUSSDPDU(d *pdu.DeliverSm) bool {
	if d.Options == nil {
		return false
	}
	if _, ok := d.Options.Get(pdu.TagUssdServiceOp); !ok {
		return false
	}
	p.callbacks.deliverSm(d.SourceAddr, d.DestinationAddr, d.ShortMessage)
	return true
}

func (p *defaultShortMessageProcessor) HandleShortMessagePDU(d *pdu.DeliverSm) {
	p.callbacks.deliverSm(d.SourceAddr, d.DestinationAddr, d.ShortMessage)
}
