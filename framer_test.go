package smpp

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func frame(commandLength uint32, rest ...byte) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, commandLength)
	return append(buf, rest...)
}

func TestFramerPopIncomplete(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte{0x00, 0x00, 0x00})
	got, err := f.Pop()
	if err != nil || got != nil {
		t.Fatalf("Pop() = %v, %v; want nil, nil", got, err)
	}
}

func TestFramerPopExact(t *testing.T) {
	f := NewFramer()
	body := make([]byte, 16)
	binary.BigEndian.PutUint32(body, 16)
	f.Feed(body)
	got, err := f.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("Pop() = % X, want % X", got, body)
	}
	next, err := f.Pop()
	if err != nil || next != nil {
		t.Fatalf("second Pop() = %v, %v; want nil, nil", next, err)
	}
}

func TestFramerPopSplitAcrossFeeds(t *testing.T) {
	f := NewFramer()
	body := make([]byte, 20)
	binary.BigEndian.PutUint32(body, 20)
	f.Feed(body[:10])
	if got, err := f.Pop(); err != nil || got != nil {
		t.Fatalf("Pop() on partial frame = %v, %v; want nil, nil", got, err)
	}
	f.Feed(body[10:])
	got, err := f.Pop()
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("Pop() = % X, want % X", got, body)
	}
}

func TestFramerPopTwoFramesOneFeed(t *testing.T) {
	f := NewFramer()
	a := make([]byte, 16)
	binary.BigEndian.PutUint32(a, 16)
	b := make([]byte, 18)
	binary.BigEndian.PutUint32(b, 18)
	f.Feed(append(append([]byte{}, a...), b...))

	got, err := f.Pop()
	if err != nil || !bytes.Equal(got, a) {
		t.Fatalf("first Pop() = % X, %v; want % X, nil", got, err, a)
	}
	got, err = f.Pop()
	if err != nil || !bytes.Equal(got, b) {
		t.Fatalf("second Pop() = % X, %v; want % X, nil", got, err, b)
	}
}

func TestFramerPopRejectsShortLength(t *testing.T) {
	f := NewFramer()
	f.Feed(frame(15))
	if _, err := f.Pop(); err == nil {
		t.Fatal("Pop() with command_length 15 should error")
	}
}

func TestFramerPopRejectsOversizeLength(t *testing.T) {
	f := NewFramer()
	f.Feed(frame(maxFrameSize + 1))
	if _, err := f.Pop(); err == nil {
		t.Fatal("Pop() with oversize command_length should error")
	}
}
