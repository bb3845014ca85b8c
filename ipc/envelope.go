package ipc

// EnvelopeKind discriminates the oneof arm of an Envelope, per spec.md §6's
// wire format: `oneof kind { Request req = 1; Response rsp = 2; Event ev =
// 3; Control ctl = 4; }`.
type EnvelopeKind uint8

const (
	KindRequestMsg EnvelopeKind = 1
	KindResponseMsg EnvelopeKind = 2
	KindEventMsg   EnvelopeKind = 3
	KindControlMsg EnvelopeKind = 4
)

// Envelope is the wire-level message: a correlation id plus a discriminated
// payload. Requests and responses carry the same correlation id; events
// carry the empty string (never present in the pending table).
//
// OpName names the specific request/response/event arm (e.g. "health",
// "assets_import", "welcome", "log"); Payload is that arm's own
// msgp-encoded body, opaque to the codec. This keeps the frame codec
// generic over the full oneof vocabulary in spec.md §6 without hand-coding
// a distinct generated type per arm.
type Envelope struct {
	CorrelationId string
	Kind          EnvelopeKind
	OpName        string
	StatusCode    int32 // 0 == OK; see status code table in spec.md §6
	Message       string // human-readable detail when StatusCode != 0
	Payload       []byte
}

// StatusOK reports whether this envelope (a response) carries a success
// status code.
func (e Envelope) StatusOK() bool { return e.StatusCode == 0 }

// Status codes from spec.md §6, preserved for wire compatibility.
const (
	StatusOK                = 0
	StatusInvalidArgument    = 3
	StatusNotFound           = 5
	StatusPermissionDenied   = 7
	StatusResourceExhausted  = 8
	StatusInternal           = 13
)
