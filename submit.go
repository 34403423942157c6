package smpp

import (
	"context"
	"encoding/hex"
	"math/rand"
	"strconv"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// MessageType selects the optional-parameter annotation applied to a
// single-segment submit (§4.6.3).
type MessageType int

const (
	// MessageTypeSMS submits a plain short message; no annotation.
	MessageTypeSMS MessageType = iota
	// MessageTypeUSSD annotates the submit with ussd_service_op and
	// its_session_info.
	MessageTypeUSSD
)

// SARParams lets a caller set the three SAR optional parameters directly on
// a single-segment submit, independent of the automatic splitter in
// §4.6.1 (§4.6.3, "if sar_params present").
type SARParams struct {
	MsgRefNum     int
	TotalSegments int
	SegmentSeqnum int
}

// SubmitParams is the input to Submit (§4.6).
type SubmitParams struct {
	ServiceType          string
	SourceAddrTon        int
	SourceAddrNpi        int
	SourceAddr           string
	DestAddrTon          int
	DestAddrNpi          int
	DestinationAddr      string
	EsmClass             pdu.EsmClass
	ProtocolID           int
	PriorityFlag         int
	RegisteredDelivery   pdu.RegisteredDelivery
	DataCoding           int
	ShortMessage         []byte
	MessageType          MessageType
	ContinueSession      bool
	SessionInfo          string
	SARParams            *SARParams
}

const (
	multipartThreshold = 140
	multipartChunkSize = 130
)

// Submit implements the submit pipeline (§4.6): splitting long messages via
// SAR or UDH when configured, otherwise a single-segment submit. It returns
// the sequence number assigned to each segment sent, in order.
func (sess *Session) Submit(ctx context.Context, params SubmitParams) ([]uint32, error) {
	if !sess.isBoundForSubmit() {
		return nil, &StateError{Op: "submit_sm", State: sess.State()}
	}
	switch {
	case len(params.ShortMessage) > multipartThreshold && sess.cfg.SendMultipartSAR:
		return sess.submitSAR(ctx, params)
	case len(params.ShortMessage) > multipartThreshold && sess.cfg.SendMultipartUDH:
		return sess.submitUDH(ctx, params)
	default:
		p, err := sess.buildSingleSegment(params, params.ShortMessage)
		if err != nil {
			return nil, err
		}
		seq, err := sess.submitOne(ctx, p)
		if err != nil {
			return nil, err
		}
		return []uint32{seq}, nil
	}
}

// submitSAR implements §4.6.1: chunk into 130-byte segments, tag each with a
// shared sar_msg_ref_num, sar_total_segments, and its own sar_segment_seqnum.
func (sess *Session) submitSAR(ctx context.Context, params SubmitParams) ([]uint32, error) {
	chunks := chunkBytes(params.ShortMessage, multipartChunkSize)
	ref := 1 + rand.Intn(255)
	seqs := make([]uint32, 0, len(chunks))
	for i, chunk := range chunks {
		p := sess.baseSubmitSm(params, chunk)
		p.Options = pdu.NewOptions().
			SetSarMsgRefNum(ref).
			SetSarTotalSegments(len(chunks)).
			SetSarSegmentSeqnum(i + 1)
		seq, err := sess.submitOne(ctx, p)
		if err != nil {
			return seqs, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// submitUDH implements §4.6.2: the same chunking, with esm_class |= 0x40 and
// a 6-byte concatenation header prepended to each segment's short_message.
func (sess *Session) submitUDH(ctx context.Context, params SubmitParams) ([]uint32, error) {
	chunks := chunkBytes(params.ShortMessage, multipartChunkSize)
	ref := byte(1 + rand.Intn(255))
	n := len(chunks)
	seqs := make([]uint32, 0, n)
	for i, chunk := range chunks {
		udh := []byte{0x05, 0x00, 0x03, ref, byte(n), byte(i + 1)}
		p := sess.baseSubmitSm(params, append(udh, chunk...))
		p.EsmClass.Feature |= pdu.UDHIEsmFeat
		seq, err := sess.submitOne(ctx, p)
		if err != nil {
			return seqs, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// baseSubmitSm builds a submit_sm carrying shortMessage verbatim, copying
// every mandatory field from params except ShortMessage and Options.
func (sess *Session) baseSubmitSm(params SubmitParams, shortMessage []byte) *pdu.SubmitSm {
	return &pdu.SubmitSm{
		ServiceType:        params.ServiceType,
		SourceAddrTon:      params.SourceAddrTon,
		SourceAddrNpi:      params.SourceAddrNpi,
		SourceAddr:         params.SourceAddr,
		DestAddrTon:        params.DestAddrTon,
		DestAddrNpi:        params.DestAddrNpi,
		DestinationAddr:    params.DestinationAddr,
		EsmClass:           params.EsmClass,
		ProtocolID:         params.ProtocolID,
		PriorityFlag:       params.PriorityFlag,
		RegisteredDelivery: params.RegisteredDelivery,
		DataCoding:         params.DataCoding,
		ShortMessage:       string(shortMessage),
	}
}

// buildSingleSegment implements §4.6.3's optional-parameter annotation: USSD
// tagging, the long-message payload move, and caller-supplied SAR params.
func (sess *Session) buildSingleSegment(params SubmitParams, shortMessage []byte) (*pdu.SubmitSm, error) {
	p := sess.baseSubmitSm(params, shortMessage)

	if params.MessageType == MessageTypeUSSD {
		info, err := ussdSessionInfo(params.SessionInfo, params.ContinueSession)
		if err != nil {
			return nil, err
		}
		ensureOptions(p).SetSingle(pdu.TagUssdServiceOp, 0x02).SetDouble(pdu.TagItsSessionInfo, int(info))
	}

	if sess.cfg.SendLongMessages && len(shortMessage) > 254 {
		ensureOptions(p).SetString(pdu.TagMessagePayload, hex.EncodeToString(shortMessage))
		p.ShortMessage = ""
	}

	if params.SARParams != nil {
		ensureOptions(p).
			SetSarMsgRefNum(params.SARParams.MsgRefNum).
			SetSarTotalSegments(params.SARParams.TotalSegments).
			SetSarSegmentSeqnum(params.SARParams.SegmentSeqnum)
	}

	return p, nil
}

// submitOne sends p with a freshly allocated sequence number and records it
// in the UnackedLedger (§4.6.3's final two steps).
func (sess *Session) submitOne(ctx context.Context, p *pdu.SubmitSm) (uint32, error) {
	seq, err := sess.seqAlloc.Next(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := sess.encodeSeq(p, seq); err != nil {
		return 0, err
	}
	if err := sess.ledger.Push(ctx, seq); err != nil {
		sess.logger.ErrorF("smpp: pushing unacked ledger: %+v", err)
	}
	return seq, nil
}

func ensureOptions(p *pdu.SubmitSm) *pdu.Options {
	if p.Options == nil {
		p.Options = pdu.NewOptions()
	}
	return p.Options
}

// ussdSessionInfo computes its_session_info per §4.6.3 and §8's round-trip
// law: int(session_info or "0000", 16) + (0 if continue_session else 1).
func ussdSessionInfo(sessionInfo string, continueSession bool) (uint16, error) {
	s := sessionInfo
	if s == "" {
		s = "0000"
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, &Error{Msg: "smpp: invalid session_info: " + err.Error()}
	}
	if !continueSession {
		n++
	}
	return uint16(n), nil
}

func chunkBytes(b []byte, size int) [][]byte {
	var chunks [][]byte
	for len(b) > 0 {
		n := size
		if n > len(b) {
			n = len(b)
		}
		chunks = append(chunks, b[:n:n])
		b = b[n:]
	}
	return chunks
}
