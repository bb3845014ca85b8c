package ipc

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
	"github.com/tinylib/msgp/msgp"
)

// SchemaHash identifies the msgp envelope schema this build speaks; the
// peer rejects a handshake whose hash it doesn't recognize.
const SchemaHash = "unity-mcp-bridge/ipc/v1"

// IpcVersion is this client's wire protocol version.
const IpcVersion = 1

// helloPayload is the Hello request arm's body.
type helloPayload struct {
	IpcVersion       int32
	SchemaHash       string
	Token            string
	ClientInstance   string // per-process uuid, for peer-side diagnostics
	SupportedFeature []string
}

// welcomePayload is the Welcome response arm's body.
type welcomePayload struct {
	Ok               bool
	Error            string
	SessionId        string
	AcceptedFeatures []string
}

func newHelloPayload(token string) helloPayload {
	return helloPayload{
		IpcVersion:       IpcVersion,
		SchemaHash:       SchemaHash,
		Token:            token,
		ClientInstance:   uuid.NewString(),
		SupportedFeature: SupportedFeatures().Tags(),
	}
}

func newSessionId() string {
	id, err := shortid.Generate()
	if err != nil {
		return uuid.NewString()
	}
	return id
}

func encodeHello(h helloPayload) ([]byte, error) {
	var buf bytes.Buffer
	mw := msgp.NewWriter(&buf)
	if err := mw.WriteMapHeader(5); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "ipc_version", func() error { return mw.WriteInt32(h.IpcVersion) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "schema_hash", func() error { return mw.WriteString(h.SchemaHash) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "token", func() error { return mw.WriteString(h.Token) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "client_instance", func() error { return mw.WriteString(h.ClientInstance) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "supported_features", func() error { return writeStrings(mw, h.SupportedFeature) }); err != nil {
		return nil, err
	}
	if err := mw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeWelcomeBody encodes a welcomePayload for a Welcome response arm.
// Production code never calls this (the peer sends Welcome); it exists so
// test doubles can construct a wire-compatible welcome message without
// duplicating msgp field-writing logic.
func encodeWelcomeBody(w welcomePayload) ([]byte, error) {
	var buf bytes.Buffer
	mw := msgp.NewWriter(&buf)
	if err := mw.WriteMapHeader(4); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "ok", func() error { return mw.WriteBool(w.Ok) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "error", func() error { return mw.WriteString(w.Error) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "session_id", func() error { return mw.WriteString(w.SessionId) }); err != nil {
		return nil, err
	}
	if err := writeKV(mw, "accepted_features", func() error { return writeStrings(mw, w.AcceptedFeatures) }); err != nil {
		return nil, err
	}
	if err := mw.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWelcome(payload []byte) (welcomePayload, error) {
	var w welcomePayload
	mr := msgp.NewReader(bytes.NewReader(payload))
	n, err := mr.ReadMapHeader()
	if err != nil {
		return w, err
	}
	for i := uint32(0); i < n; i++ {
		key, err := mr.ReadString()
		if err != nil {
			return w, err
		}
		switch key {
		case "ok":
			if w.Ok, err = mr.ReadBool(); err != nil {
				return w, err
			}
		case "error":
			if w.Error, err = mr.ReadString(); err != nil {
				return w, err
			}
		case "session_id":
			if w.SessionId, err = mr.ReadString(); err != nil {
				return w, err
			}
		case "accepted_features":
			if w.AcceptedFeatures, err = readStrings(mr); err != nil {
				return w, err
			}
		default:
			if err := mr.Skip(); err != nil {
				return w, err
			}
		}
	}
	return w, nil
}

func writeKV(mw *msgp.Writer, key string, wr func() error) error {
	if err := mw.WriteString(key); err != nil {
		return err
	}
	return wr()
}

func writeStrings(mw *msgp.Writer, ss []string) error {
	if err := mw.WriteArrayHeader(uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := mw.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(mr *msgp.Reader) ([]string, error) {
	n, err := mr.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := mr.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
