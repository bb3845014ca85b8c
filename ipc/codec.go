package ipc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tinylib/msgp/msgp"
)

// DefaultMaxFrameBytes is the default frame-size ceiling from spec.md §4.1:
// "sufficient for typical build/diagnostics payloads, e.g. 16 MiB".
const DefaultMaxFrameBytes = 16 << 20

// frameHeaderLen is the little-endian u32 length prefix's width.
const frameHeaderLen = 4

// EncodeFrame writes env as a length-prefixed msgp-encoded frame: `LE u32
// length || payload[length]`, per spec.md §6. Encoding a well-formed
// Envelope is infallible (the codec carries no state across frames).
func EncodeFrame(w io.Writer, env Envelope) error {
	var body bytes.Buffer
	mw := msgp.NewWriter(&body)
	if err := encodeEnvelope(mw, env); err != nil {
		return newErr(KindCodec, err)
	}
	if err := mw.Flush(); err != nil {
		return newErr(KindCodec, err)
	}

	var hdr [frameHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(body.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return wrapIo(err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return wrapIo(err)
	}
	return nil
}

// DecodeFrame reads one length-prefixed frame from r and decodes its
// envelope. Returns a truncated-frame *Error (KindProtocol wrapping io.EOF or
// io.ErrUnexpectedEOF) when the reader closes mid-frame, FrameTooLarge (KindProtocol) when the
// declared length exceeds maxFrameBytes, and Malformed (KindCodec) when the
// payload fails typed decoding.
func DecodeFrame(r *bufio.Reader, maxFrameBytes int) (Envelope, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Envelope{}, truncatedOrIo(err)
	}
	length := binary.LittleEndian.Uint32(hdr[:])
	if maxFrameBytes > 0 && int(length) > maxFrameBytes {
		return Envelope{}, newErr(KindProtocol, fmt.Errorf("frame length %d exceeds maximum %d", length, maxFrameBytes))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, truncatedOrIo(err)
	}

	mr := msgp.NewReader(bytes.NewReader(payload))
	env, err := decodeEnvelope(mr)
	if err != nil {
		return Envelope{}, newErr(KindCodec, err)
	}
	return env, nil
}

func truncatedOrIo(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return newErr(KindProtocol, fmt.Errorf("truncated frame: %w", err))
	}
	return wrapIo(err)
}

func encodeEnvelope(mw *msgp.Writer, env Envelope) error {
	if err := mw.WriteMapHeader(6); err != nil {
		return err
	}
	fields := []struct {
		key string
		wr  func() error
	}{
		{"correlation_id", func() error { return mw.WriteString(env.CorrelationId) }},
		{"kind", func() error { return mw.WriteUint8(uint8(env.Kind)) }},
		{"op", func() error { return mw.WriteString(env.OpName) }},
		{"status_code", func() error { return mw.WriteInt32(env.StatusCode) }},
		{"message", func() error { return mw.WriteString(env.Message) }},
		{"payload", func() error { return mw.WriteBytes(env.Payload) }},
	}
	for _, f := range fields {
		if err := mw.WriteString(f.key); err != nil {
			return err
		}
		if err := f.wr(); err != nil {
			return err
		}
	}
	return nil
}

func decodeEnvelope(mr *msgp.Reader) (Envelope, error) {
	var env Envelope
	n, err := mr.ReadMapHeader()
	if err != nil {
		return env, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := mr.ReadString()
		if err != nil {
			return env, err
		}
		switch key {
		case "correlation_id":
			if env.CorrelationId, err = mr.ReadString(); err != nil {
				return env, err
			}
		case "kind":
			k, err := mr.ReadUint8()
			if err != nil {
				return env, err
			}
			env.Kind = EnvelopeKind(k)
		case "op":
			if env.OpName, err = mr.ReadString(); err != nil {
				return env, err
			}
		case "status_code":
			if env.StatusCode, err = mr.ReadInt32(); err != nil {
				return env, err
			}
		case "message":
			if env.Message, err = mr.ReadString(); err != nil {
				return env, err
			}
		case "payload":
			if env.Payload, err = mr.ReadBytes(env.Payload); err != nil {
				return env, err
			}
		default:
			if err := mr.Skip(); err != nil {
				return env, err
			}
		}
	}
	return env, nil
}

// EncodeArgs renders a small field map as a msgp-encoded Envelope.Payload.
// Operation wrappers in ops.go use this instead of hand-coding a distinct
// generated type per request/response arm, matching §4.1's "no codegen"
// simplification documented in SPEC_FULL.md.
func EncodeArgs(fields map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	mw := msgp.NewWriter(&buf)
	if err := mw.WriteMapHeader(uint32(len(fields))); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if err := mw.WriteString(k); err != nil {
			return nil, err
		}
		if err := writeArgValue(mw, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeArgValue(mw *msgp.Writer, v any) error {
	switch x := v.(type) {
	case string:
		return mw.WriteString(x)
	case bool:
		return mw.WriteBool(x)
	case int:
		return mw.WriteInt64(int64(x))
	case int32:
		return mw.WriteInt32(x)
	case int64:
		return mw.WriteInt64(x)
	case []byte:
		return mw.WriteBytes(x)
	case []string:
		return writeStrings(mw, x)
	default:
		return fmt.Errorf("ipc: unsupported arg value type %T", v)
	}
}

// DecodeArgs parses a field map encoded by EncodeArgs. Values come back as
// string, bool, int64, []byte, or []string depending on the wire type.
func DecodeArgs(payload []byte) (map[string]any, error) {
	mr := msgp.NewReader(bytes.NewReader(payload))
	n, err := mr.ReadMapHeader()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, n)
	for i := uint32(0); i < n; i++ {
		key, err := mr.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := readArgValue(mr)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func readArgValue(mr *msgp.Reader) (any, error) {
	t, err := mr.NextType()
	if err != nil {
		return nil, err
	}
	switch t {
	case msgp.StrType:
		return mr.ReadString()
	case msgp.BoolType:
		return mr.ReadBool()
	case msgp.IntType, msgp.UintType:
		return mr.ReadInt64()
	case msgp.BinType:
		return mr.ReadBytes(nil)
	case msgp.ArrayType:
		return readStrings(mr)
	default:
		if err := mr.Skip(); err != nil {
			return nil, err
		}
		return nil, nil
	}
}
