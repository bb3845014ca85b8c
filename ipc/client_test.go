package ipc

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/tsukushibito/unity-mcp-bridge/config"
)

// echoPeer is an in-process test double for the Unity-side Editor peer: it
// accepts one connection, completes the handshake, then hands the
// connection to a per-test handler (the happy-path test's handler answers
// every Health request with a fixed HealthResponse, as S1 in spec.md §8
// describes).
type echoPeer struct {
	ln        net.Listener
	onHealth  func(net.Conn, Envelope)
	acceptOne bool
}

func newEchoPeer(t *testing.T) *echoPeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &echoPeer{ln: ln}
}

func (p *echoPeer) addr() string { return p.ln.Addr().String() }

func (p *echoPeer) close() { p.ln.Close() }

func (p *echoPeer) serveOnce(t *testing.T, handle func(conn net.Conn, r *bufio.Reader)) {
	t.Helper()
	go func() {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)

		helloEnv, err := DecodeFrame(r, DefaultMaxFrameBytes)
		if err != nil || helloEnv.OpName != "hello" {
			return
		}
		welcome, _ := encodeWelcomeForTest(true, "", []string{"events.log"})
		EncodeFrame(conn, Envelope{Kind: KindResponseMsg, OpName: "welcome", Payload: welcome})

		handle(conn, r)
	}()
}

func TestClientHappyPathUnaryRequest(t *testing.T) {
	peer := newEchoPeer(t)
	defer peer.close()

	peer.serveOnce(t, func(conn net.Conn, r *bufio.Reader) {
		for {
			env, err := DecodeFrame(r, DefaultMaxFrameBytes)
			if err != nil {
				return
			}
			if env.OpName == "health" {
				args, _ := EncodeArgs(map[string]any{"ready": true, "version": "t", "status": "OK"})
				EncodeFrame(conn, Envelope{CorrelationId: env.CorrelationId, Kind: KindResponseMsg, OpName: "health", Payload: args})
			}
		}
	})

	cfg := config.IpcConfig{
		Endpoint: "tcp://" + peer.addr(),
		ConnectTimeout: time.Second, HandshakeTimeout: time.Second,
		TotalHandshakeTimeout: 5 * time.Second, CallTimeout: 2 * time.Second,
	}
	client := NewClient(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	waitConnected(t, client, 2*time.Second)

	status := client.Status()
	if !status.Connected || status.Attempt != 0 {
		t.Fatalf("expected connected with attempt 0, got %+v", status)
	}
	if !status.NegotiatedFeatures.Contains("events.log") {
		t.Fatalf("expected events.log negotiated, got %v", status.NegotiatedFeatures.Tags())
	}

	resp, err := client.Health(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !resp.Ready || resp.Version != "t" || resp.Status != "OK" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestClientRequestTimeoutReleasesPendingSlot(t *testing.T) {
	peer := newEchoPeer(t)
	defer peer.close()

	peer.serveOnce(t, func(conn net.Conn, r *bufio.Reader) {
		// Never reply to Health requests.
		for {
			if _, err := DecodeFrame(r, DefaultMaxFrameBytes); err != nil {
				return
			}
		}
	})

	cfg := config.IpcConfig{
		Endpoint: "tcp://" + peer.addr(),
		ConnectTimeout: time.Second, HandshakeTimeout: time.Second,
		TotalHandshakeTimeout: 5 * time.Second, CallTimeout: 2 * time.Second,
	}
	client := NewClient(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	waitConnected(t, client, 2*time.Second)

	start := time.Now()
	_, err := client.Health(context.Background(), 200*time.Millisecond)
	elapsed := time.Since(start)
	if ErrKind(err) != KindRequestTimeout {
		t.Fatalf("expected RequestTimeout, got %v", err)
	}
	if elapsed > 800*time.Millisecond {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
	if client.mux.Len() != 0 {
		t.Fatalf("expected no pending entries after timeout, got %d", client.mux.Len())
	}

	// A subsequent call on the same connection times out on its own deadline.
	_, err2 := client.Health(context.Background(), 100*time.Millisecond)
	if ErrKind(err2) != KindRequestTimeout {
		t.Fatalf("expected second call to also time out, got %v", err2)
	}
}

func waitConnected(t *testing.T, c *Client, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.Status().Connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client did not connect within %v, status=%+v", timeout, c.Status())
}

func encodeWelcomeForTest(ok bool, errMsg string, accepted []string) ([]byte, error) {
	w := welcomePayload{Ok: ok, Error: errMsg, SessionId: "test-session", AcceptedFeatures: accepted}
	return encodeWelcomeBody(w)
}
