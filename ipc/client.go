package ipc

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsukushibito/unity-mcp-bridge/config"
	"github.com/tsukushibito/unity-mcp-bridge/nlog"
)

// Client is the shared handle to a Direct-IPC connection: cheaply
// duplicable, internal state shared by reference, per spec.md §5. It owns
// the reconnect supervisor, the request multiplexer, and the event
// broadcaster.
type Client struct {
	cfg      config.IpcConfig
	endpoint Endpoint

	mux *multiplexer
	bus *broadcaster
	sup *supervisor

	sessionTag string // local diagnostic session id, distinct from the peer's Welcome.SessionId

	connMu sync.RWMutex
	conn   net.Conn

	writeMu sync.Mutex

	closing chan struct{}
	closed  sync.Once

	maxFrameBytes int
}

// NewClient constructs a Client without connecting. Call Run to drive the
// connect/reconnect loop in a goroutine.
func NewClient(cfg config.IpcConfig) *Client {
	ep := cfg.Endpoint
	var endpoint Endpoint
	if ep == "" {
		endpoint = DefaultEndpoint()
	} else {
		endpoint = ParseEndpoint(ep)
	}
	return &Client{
		cfg:           cfg,
		endpoint:      endpoint,
		mux:           newMultiplexer(),
		bus:           newBroadcaster(),
		sup:           newSupervisor(endpoint.String()),
		sessionTag:    newSessionId(),
		closing:       make(chan struct{}),
		maxFrameBytes: DefaultMaxFrameBytes,
	}
}

// Status returns the ConnectionState snapshot, always available regardless
// of connection state, per spec.md §6's status accessor.
func (c *Client) Status() ConnectionState {
	snap := c.sup.snapshot()
	snap.LateResponses = c.mux.lateResponseCount()
	return snap
}

// StatusJSON renders the status-accessor snapshot as the
// `{connected, attempt, last_error?, next_retry_ms?, endpoint,
// negotiated_features?}` fields spec.md §6 specifies, for external callers
// that want a plain JSON blob rather than the Go struct.
func (c *Client) StatusJSON() ([]byte, error) {
	return statusJSON(c.Status())
}

// Events returns a subscription to the event fan-out (C6). Call the
// returned func to unsubscribe.
func (c *Client) Events() (<-chan EventOrLag, func()) {
	return c.bus.Subscribe()
}

// Run drives the connect/handshake/reconnect loop until ctx is cancelled or
// Close is called. It blocks; callers typically invoke it in its own
// goroutine.
func (c *Client) Run(ctx context.Context) {
	var attempt uint32
	totalDeadline := time.Now().Add(c.cfg.TotalHandshakeTimeout)

	for {
		select {
		case <-c.closing:
			return
		case <-ctx.Done():
			return
		default:
		}

		if c.cfg.MaxReconnectAttempts > 0 && int(attempt) >= c.cfg.MaxReconnectAttempts {
			c.sup.setDisconnected(ErrConnectTimeout)
			return
		}
		if !c.sup.snapshot().Connected && attempt > 0 && time.Now().After(totalDeadline) {
			c.sup.setDisconnected(ErrConnectTimeout)
			return
		}

		c.sup.setConnecting(attempt)
		err := c.connectOnce(ctx)
		if err == nil {
			attempt = 0
			totalDeadline = time.Now().Add(c.cfg.TotalHandshakeTimeout)
			// connectOnce blocks for the life of the connection (runs the
			// reader loop inline); once it returns, the connection is gone.
			continue
		}
		if c.sup.snapshot().State == StateConnected {
			// The connection was established and has now dropped: start a
			// fresh reconnect sequence instead of continuing the old count.
			attempt = 0
			totalDeadline = time.Now().Add(c.cfg.TotalHandshakeTimeout)
		}

		attempt++
		delay := backoffDelay(attempt)
		nlog.Warnf("ipc: connect attempt %d failed: %v, retrying in %s", attempt, err, delay)
		c.sup.setFailing(err, time.Now().Add(delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		case <-c.closing:
			return
		}
	}
}

// connectOnce dials, handshakes, and then runs the reader loop inline until
// the connection drops or the client closes. Returns nil only if Close was
// called mid-connection (a clean shutdown, not a retry-worthy error).
func (c *Client) connectOnce(ctx context.Context) error {
	conn, err := dial(ctx, c.endpoint, c.cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	c.sup.setHandshaking()

	welcome, raw, negotiated, r, err := c.handshake(conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.sup.setConnected(negotiated, raw, welcome.SessionId)
	nlog.Infof("ipc: connected to %s, negotiated features=%v", c.endpoint, negotiated.Tags())

	// Reader and watchdog run as a coordinated task group: the watchdog's
	// only job is to close conn on outer cancellation/Close so a read
	// blocked forever on a silent peer unblocks instead of outliving ctx.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.readLoop(conn, r)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-c.closing:
		}
		conn.Close()
		return nil
	})
	readErr := g.Wait()

	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
	c.mux.closeAll()

	select {
	case <-c.closing:
		return nil
	default:
	}
	return readErr
}

// handshake performs the hello/welcome exchange and returns the bufio.Reader
// it used, so readLoop can reuse it rather than constructing a fresh one
// that would discard any bytes already buffered ahead of the welcome frame.
func (c *Client) handshake(conn net.Conn) (welcomePayload, []string, FeatureSet, *bufio.Reader, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	hello := newHelloPayload(c.cfg.Token)
	body, err := encodeHello(hello)
	if err != nil {
		return welcomePayload{}, nil, FeatureSet{}, nil, newErr(KindCodec, err)
	}
	env := Envelope{CorrelationId: "", Kind: KindRequestMsg, OpName: "hello", Payload: body}
	if err := EncodeFrame(conn, env); err != nil {
		return welcomePayload{}, nil, FeatureSet{}, nil, err
	}

	r := bufio.NewReader(conn)
	respEnv, err := DecodeFrame(r, c.maxFrameBytes)
	if err != nil {
		return welcomePayload{}, nil, FeatureSet{}, nil, err
	}
	if respEnv.Kind != KindResponseMsg || respEnv.OpName != "welcome" {
		return welcomePayload{}, nil, FeatureSet{}, nil, newErr(KindProtocol, errUnexpectedArm)
	}
	welcome, err := decodeWelcome(respEnv.Payload)
	if err != nil {
		return welcomePayload{}, nil, FeatureSet{}, nil, newErr(KindCodec, err)
	}
	if !welcome.Ok {
		return welcomePayload{}, nil, FeatureSet{}, nil, ErrHandshakeRejected
	}

	negotiated := FromStrings(welcome.AcceptedFeatures).Intersect(SupportedFeatures())
	return welcome, welcome.AcceptedFeatures, negotiated, r, nil
}

// readLoop owns the connection's read half exclusively, demultiplexing
// responses to the pending table and fanning events out to subscribers,
// per spec.md §3's ownership model.
func (c *Client) readLoop(conn net.Conn, r *bufio.Reader) error {
	for {
		conn.SetReadDeadline(time.Time{})
		env, err := DecodeFrame(r, c.maxFrameBytes)
		if err != nil {
			return err
		}
		switch env.Kind {
		case KindResponseMsg:
			c.mux.deliver(env)
		case KindEventMsg:
			c.bus.Publish(Event{OpName: env.OpName, Payload: env.Payload})
		default:
			// Control frames are reserved for future use; ignore for now.
		}
	}
}

// Request sends req and waits up to timeout for the matching response,
// implementing the C5 unary control flow from spec.md §2: allocate-cid,
// encode and write the frame directly on the connection under writeMu,
// then wait for the reader loop to match the cid.
func (c *Client) Request(ctx context.Context, opName string, payload []byte, timeout time.Duration) (Envelope, error) {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return Envelope{}, ErrClosed
	}

	if timeout <= 0 {
		timeout = c.cfg.CallTimeout
	}

	cid, ch := c.mux.allocate()
	env := Envelope{CorrelationId: cid, Kind: KindRequestMsg, OpName: opName, Payload: payload}

	c.writeMu.Lock()
	err := EncodeFrame(conn, env)
	c.writeMu.Unlock()
	if err != nil {
		c.mux.release(cid)
		return Envelope{}, err
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return Envelope{}, ErrClosed
		}
		return resp, nil
	case <-t.C:
		c.mux.release(cid)
		return Envelope{}, ErrRequestTimeout
	case <-ctx.Done():
		c.mux.release(cid)
		return Envelope{}, ctx.Err()
	case <-c.closing:
		c.mux.release(cid)
		return Envelope{}, ErrClosed
	}
}

// Close shuts the client down permanently: in-flight and future requests
// observe Closed, event subscribers' channels are closed.
func (c *Client) Close() error {
	c.closed.Do(func() {
		close(c.closing)
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn != nil {
			conn.Close()
		}
		c.mux.closeAll()
		c.bus.closeAll()
	})
	return nil
}
