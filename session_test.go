package smpp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/praekeltfoundation/smppesme/pdu"
)

// handshakeBind reads the bind request the session under test sends and
// answers with an OK bind_*_resp carrying the given system_id.
func handshakeBind(t *testing.T, dec *pdu.Decoder, enc *pdu.Encoder, resp pdu.PDU) {
	t.Helper()
	h, _, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode bind request: %v", err)
	}
	if _, err := enc.Encode(resp, pdu.EncodeSeq(h.Sequence())); err != nil {
		t.Fatalf("encode bind response: %v", err)
	}
}

// connPair returns the two ends of a loopback TCP connection. Unlike
// net.Pipe, writes land in the kernel's socket buffer, so the session can
// send its bind request and submit_sm PDUs before the fake SMSC reads them.
func connPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server = <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	return client, server
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSessionBindTimeoutClosesSession(t *testing.T) {
	client, server := connPair(t)
	defer server.Close()

	cfg := Config{BindTimeout: 50 * time.Millisecond, EnquireLinkInterval: time.Hour}
	disconnected := make(chan struct{})
	sess := Dial(client, Transceiver, BindConf{SystemID: "x"}, cfg, newMemStore(),
		WithCallbacks(Callbacks{Disconnect: func() { close(disconnected) }}))

	// Read and discard the bind request, but never respond — the bind
	// timeout should fire and tear the session down (§4.1 row 3, scenario 1).
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	waitFor(t, disconnected, "disconnect callback")
	if got := sess.State(); got != StateClosed {
		t.Fatalf("state after bind timeout = %v, want CLOSED", got)
	}
}

func TestSessionHappyPathSubmit(t *testing.T) {
	client, server := connPair(t)
	defer server.Close()

	cfg := Config{BindTimeout: time.Second, EnquireLinkInterval: time.Hour}
	store := newMemStore()

	connected := make(chan struct{})
	gotResp := make(chan struct{})
	var respSeq uint32
	var respMessageID string

	sess := Dial(client, Transceiver, BindConf{SystemID: "x"}, cfg, store,
		WithCallbacks(Callbacks{
			Connect: func(*Session) { close(connected) },
			SubmitSmResp: func(seq uint32, status pdu.Status, commandID pdu.CommandID, messageID string) {
				respSeq = seq
				respMessageID = messageID
				close(gotResp)
			},
		}))

	dec := pdu.NewDecoder(server)
	enc := pdu.NewEncoder(server, pdu.NewSequencer(1))
	handshakeBind(t, dec, enc, &pdu.BindTRxResp{SystemID: "smsc"})
	waitFor(t, connected, "connect callback")

	seqs, err := sess.Submit(context.Background(), SubmitParams{
		SourceAddr:      "2222",
		DestinationAddr: "1111",
		ShortMessage:    []byte("hi"),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(seqs) != 1 {
		t.Fatalf("Submit() returned %d sequence numbers, want 1", len(seqs))
	}
	if n, err := sess.ledger.Len(context.Background()); err != nil || n != 1 {
		t.Fatalf("unacked ledger length = %d, %v; want 1, nil", n, err)
	}

	h, p, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode submit_sm: %v", err)
	}
	sm, ok := p.(*pdu.SubmitSm)
	if !ok {
		t.Fatalf("decoded %T, want *pdu.SubmitSm", p)
	}
	if sm.ShortMessage != "hi" {
		t.Fatalf("short_message = %q, want %q", sm.ShortMessage, "hi")
	}
	if h.Sequence() != seqs[0] {
		t.Fatalf("sequence_number = %d, want %d", h.Sequence(), seqs[0])
	}

	if _, err := enc.Encode(&pdu.SubmitSmResp{MessageID: "abc"}, pdu.EncodeSeq(h.Sequence())); err != nil {
		t.Fatalf("encode submit_sm_resp: %v", err)
	}
	waitFor(t, gotResp, "submit_sm_resp callback")

	if respSeq != seqs[0] {
		t.Fatalf("submit_sm_resp callback sequence = %d, want %d", respSeq, seqs[0])
	}
	if respMessageID != "abc" {
		t.Fatalf("submit_sm_resp callback message_id = %q, want %q", respMessageID, "abc")
	}
	if n, err := sess.ledger.Len(context.Background()); err != nil || n != 0 {
		t.Fatalf("unacked ledger length after resp = %d, %v; want 0, nil", n, err)
	}
}

// stubDeliveryReportProcessor claims every PDU offered to it and reports
// back over a channel once called, so the test can wait deterministically
// instead of sleeping.
type stubDeliveryReportProcessor struct {
	called chan *pdu.DeliverSm
}

func (s *stubDeliveryReportProcessor) HandleDeliveryReportPDU(p *pdu.DeliverSm) bool {
	s.called <- p
	return true
}

func (s *stubDeliveryReportProcessor) HandleDeliveryReportContent(string) bool { return false }

// countingShortMessageProcessor records whether it was ever invoked.
type countingShortMessageProcessor struct {
	multipart, ussd, plain int
}

func (s *countingShortMessageProcessor) HandleMultipartPDU(*pdu.DeliverSm) bool {
	s.multipart++
	return false
}

func (s *countingShortMessageProcessor) HandleUSSDPDU(*pdu.DeliverSm) bool {
	s.ussd++
	return false
}

func (s *countingShortMessageProcessor) HandleShortMessagePDU(*pdu.DeliverSm) {
	s.plain++
}

func TestDeliverPrecedenceDeliveryReportStopsPipeline(t *testing.T) {
	client, server := connPair(t)
	defer server.Close()

	cfg := Config{BindTimeout: time.Second, EnquireLinkInterval: time.Hour}
	store := newMemStore()
	dr := &stubDeliveryReportProcessor{called: make(chan *pdu.DeliverSm, 1)}
	sm := &countingShortMessageProcessor{}

	connected := make(chan struct{})
	Dial(client, Transceiver, BindConf{}, cfg, store,
		WithCallbacks(Callbacks{Connect: func(*Session) { close(connected) }}),
		WithDeliveryReportProcessor(dr),
		WithShortMessageProcessor(sm),
	)

	dec := pdu.NewDecoder(server)
	enc := pdu.NewEncoder(server, pdu.NewSequencer(1))
	handshakeBind(t, dec, enc, &pdu.BindTRxResp{SystemID: "smsc"})
	waitFor(t, connected, "connect callback")

	deliver := &pdu.DeliverSm{SourceAddr: "111", DestinationAddr: "222", ShortMessage: "id:1 sub:001 dlvrd:001 submit date:2601010000 done date:2601010001 stat:DELIVRD err:000 text:"}
	if _, err := enc.Encode(deliver, pdu.EncodeSeq(7)); err != nil {
		t.Fatalf("encode deliver_sm: %v", err)
	}

	h, _, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode deliver_sm_resp: %v", err)
	}
	if h.CommandID() != pdu.DeliverSmRespID {
		t.Fatalf("command_id = %#x, want deliver_sm_resp", uint32(h.CommandID()))
	}
	if h.Sequence() != 7 {
		t.Fatalf("sequence_number = %d, want 7", h.Sequence())
	}

	select {
	case <-dr.called:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HandleDeliveryReportPDU")
	}

	if sm.multipart != 0 || sm.ussd != 0 || sm.plain != 0 {
		t.Fatalf("ShortMessageProcessor should not run once the delivery report stage claims the PDU: multipart=%d ussd=%d plain=%d", sm.multipart, sm.ussd, sm.plain)
	}
}

// decodeSubmits reads n submit_sm frames from the server side of the pipe,
// in the order they were sent.
func decodeSubmits(t *testing.T, dec *pdu.Decoder, n int) []*pdu.SubmitSm {
	t.Helper()
	out := make([]*pdu.SubmitSm, 0, n)
	for i := 0; i < n; i++ {
		_, p, err := dec.Decode()
		if err != nil {
			t.Fatalf("decode submit_sm %d: %v", i, err)
		}
		sm, ok := p.(*pdu.SubmitSm)
		if !ok {
			t.Fatalf("decoded %T, want *pdu.SubmitSm", p)
		}
		out = append(out, sm)
	}
	return out
}

func TestSubmitSplitsIntoSARSegments(t *testing.T) {
	client, server := connPair(t)
	defer server.Close()

	cfg := Config{BindTimeout: time.Second, EnquireLinkInterval: time.Hour, SendMultipartSAR: true}
	store := newMemStore()
	connected := make(chan struct{})
	sess := Dial(client, Transceiver, BindConf{SystemID: "x"}, cfg, store,
		WithCallbacks(Callbacks{Connect: func(*Session) { close(connected) }}))

	dec := pdu.NewDecoder(server)
	enc := pdu.NewEncoder(server, pdu.NewSequencer(1))
	handshakeBind(t, dec, enc, &pdu.BindTRxResp{SystemID: "smsc"})
	waitFor(t, connected, "connect callback")

	// 300 bytes over a 130-byte chunk size splits into segments of
	// 130, 130 and 40 bytes — three submit_sm PDUs (§8's SAR scenario).
	payload := bytes.Repeat([]byte{'a'}, 300)
	seqs, err := sess.Submit(context.Background(), SubmitParams{
		SourceAddr:      "2222",
		DestinationAddr: "1111",
		ShortMessage:    payload,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(seqs) != 3 {
		t.Fatalf("Submit() returned %d sequence numbers, want 3", len(seqs))
	}

	segs := decodeSubmits(t, dec, 3)

	var reassembled []byte
	var refNum int
	for i, sm := range segs {
		h := sm.Options.SarMsgRefNum()
		if i == 0 {
			refNum = h
		} else if h != refNum {
			t.Fatalf("segment %d sar_msg_ref_num = %d, want %d (shared across segments)", i, h, refNum)
		}
		if total := sm.Options.SarTotalSegments(); total != 3 {
			t.Fatalf("segment %d sar_total_segments = %d, want 3", i, total)
		}
		if seqnum := sm.Options.SarSegmentSeqnum(); seqnum != i+1 {
			t.Fatalf("segment %d sar_segment_seqnum = %d, want %d", i, seqnum, i+1)
		}
		reassembled = append(reassembled, []byte(sm.ShortMessage)...)
	}
	wantLens := []int{130, 130, 40}
	for i, sm := range segs {
		if len(sm.ShortMessage) != wantLens[i] {
			t.Fatalf("segment %d short_message length = %d, want %d", i, len(sm.ShortMessage), wantLens[i])
		}
	}
	if !bytes.Equal(reassembled, payload) {
		t.Fatal("reassembled SAR segments do not equal original payload")
	}
}

func TestSubmitSplitsIntoUDHSegments(t *testing.T) {
	client, server := connPair(t)
	defer server.Close()

	cfg := Config{BindTimeout: time.Second, EnquireLinkInterval: time.Hour, SendMultipartUDH: true}
	store := newMemStore()
	connected := make(chan struct{})
	sess := Dial(client, Transceiver, BindConf{SystemID: "x"}, cfg, store,
		WithCallbacks(Callbacks{Connect: func(*Session) { close(connected) }}))

	dec := pdu.NewDecoder(server)
	enc := pdu.NewEncoder(server, pdu.NewSequencer(1))
	handshakeBind(t, dec, enc, &pdu.BindTRxResp{SystemID: "smsc"})
	waitFor(t, connected, "connect callback")

	// 260 bytes over a 130-byte chunk size splits into two submit_sm PDUs,
	// each with esm_class's UDHI bit set and a concatenation header
	// prepended to short_message (§8's UDH scenario).
	payload := bytes.Repeat([]byte{'b'}, 260)
	seqs, err := sess.Submit(context.Background(), SubmitParams{
		SourceAddr:      "2222",
		DestinationAddr: "1111",
		ShortMessage:    payload,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("Submit() returned %d sequence numbers, want 2", len(seqs))
	}

	segs := decodeSubmits(t, dec, 2)

	var reassembled []byte
	var ref byte
	for i, sm := range segs {
		if sm.EsmClass.Feature != pdu.UDHIEsmFeat {
			t.Fatalf("segment %d esm_class feature = %#x, want UDHI (%#x)", i, sm.EsmClass.Feature, pdu.UDHIEsmFeat)
		}
		body := []byte(sm.ShortMessage)
		if len(body) < 6 {
			t.Fatalf("segment %d short_message too short for a UDH: %d bytes", i, len(body))
		}
		udh := body[:6]
		if udh[0] != 0x05 || udh[1] != 0x00 || udh[2] != 0x03 {
			t.Fatalf("segment %d UDH header bytes = % X, want 05 00 03 ...", i, udh[:3])
		}
		if i == 0 {
			ref = udh[3]
		} else if udh[3] != ref {
			t.Fatalf("segment %d UDH ref = %#x, want %#x (shared across segments)", i, udh[3], ref)
		}
		if udh[4] != 2 {
			t.Fatalf("segment %d UDH total segments = %d, want 2", i, udh[4])
		}
		if udh[5] != byte(i+1) {
			t.Fatalf("segment %d UDH segment index = %d, want %d", i, udh[5], i+1)
		}
		reassembled = append(reassembled, body[6:]...)
	}
	if !bytes.Equal(reassembled, payload) {
		t.Fatal("reassembled UDH segments do not equal original payload")
	}
}
