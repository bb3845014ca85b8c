package ipc

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	env := Envelope{
		CorrelationId: "00000000000003e7",
		Kind:          KindRequestMsg,
		OpName:        "health",
		Payload:       []byte("args"),
	}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, env); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeFrame(bufio.NewReader(&buf), DefaultMaxFrameBytes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CorrelationId != env.CorrelationId || got.OpName != env.OpName || got.Kind != env.Kind || !bytes.Equal(got.Payload, env.Payload) {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, env)
	}
}

func TestFrameTruncated(t *testing.T) {
	env := Envelope{CorrelationId: "x", Kind: KindRequestMsg, OpName: "health"}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, env); err != nil {
		t.Fatalf("encode: %v", err)
	}
	full := buf.Bytes()
	partial := full[:len(full)-2]
	_, err := DecodeFrame(bufio.NewReader(bytes.NewReader(partial)), DefaultMaxFrameBytes)
	if err == nil {
		t.Fatal("expected error decoding a truncated frame")
	}
}

func TestFrameTooLarge(t *testing.T) {
	env := Envelope{CorrelationId: "x", Kind: KindRequestMsg, OpName: "health", Payload: make([]byte, 1024)}
	var buf bytes.Buffer
	if err := EncodeFrame(&buf, env); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := DecodeFrame(bufio.NewReader(&buf), 16)
	if ErrKind(err) != KindProtocol {
		t.Fatalf("expected KindProtocol for oversized frame, got %v", err)
	}
}

func TestFrameMalformedPayload(t *testing.T) {
	var buf bytes.Buffer
	// A valid frame header around garbage payload bytes that aren't a msgp map.
	garbage := []byte{0xff, 0xff, 0xff, 0xff}
	hdr := make([]byte, 4)
	hdr[0] = byte(len(garbage))
	buf.Write(hdr)
	buf.Write(garbage)

	_, err := DecodeFrame(bufio.NewReader(&buf), DefaultMaxFrameBytes)
	if err == nil {
		t.Fatal("expected a decode error for malformed payload")
	}
	if ErrKind(err) != KindCodec {
		t.Fatalf("expected KindCodec, got %v", err)
	}
}
