package activation

import (
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/soloctl/internal/testutil/testlog"
)

func TestStartAssignsEphemeralPort(t *testing.T) {
	testlog.Start(t)

	srv := NewServer(ServerConfig{AppID: "demo"})
	port, err := srv.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	if port <= 0 || port > 65535 {
		t.Fatalf("port out of range: %d", port)
	}
	if srv.Port() != port {
		t.Fatalf("Port() mismatch: got %d want %d", srv.Port(), port)
	}
}

func TestActivateInvokesCallbackAndReplies(t *testing.T) {
	testlog.Start(t)

	fired := make(chan struct{}, 1)
	srv := NewServer(ServerConfig{
		AppID:        "demo",
		PollInterval: 50 * time.Millisecond,
		OnActivate:   func() { fired <- struct{}{} },
	})
	port, err := srv.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	if !SendActivation("demo", port, time.Second) {
		t.Fatalf("expected activation to succeed")
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("callback did not fire within 1s")
	}
	if srv.Served() != 1 {
		t.Fatalf("expected 1 served activation, got %d", srv.Served())
	}
}

func TestUnknownRequestIsIgnoredSilently(t *testing.T) {
	testlog.Start(t)

	var fired atomic.Bool
	srv := NewServer(ServerConfig{
		AppID:        "demo",
		PollInterval: 50 * time.Millisecond,
		OnActivate:   func() { fired.Store(true) },
	})
	port, err := srv.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("shutdown")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 16)
	if n, _ := conn.Read(buf); n != 0 {
		t.Fatalf("expected silent close, got reply %q", buf[:n])
	}
	_ = conn.Close()

	if fired.Load() {
		t.Fatalf("callback must not fire for unknown requests")
	}
	if srv.Served() != 0 {
		t.Fatalf("expected 0 served activations, got %d", srv.Served())
	}
}

func TestStopLatencyIsBoundedByPollInterval(t *testing.T) {
	testlog.Start(t)

	interval := 100 * time.Millisecond
	srv := NewServer(ServerConfig{AppID: "demo", PollInterval: interval})
	port, err := srv.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	start := time.Now()
	srv.Stop()
	elapsed := time.Since(start)
	if elapsed > interval+500*time.Millisecond {
		t.Fatalf("stop took %v, expected roughly one poll interval", elapsed)
	}

	if SendActivation("demo", port, 200*time.Millisecond) {
		t.Fatalf("activation must fail after stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	testlog.Start(t)

	srv := NewServer(ServerConfig{AppID: "demo", PollInterval: 50 * time.Millisecond})
	if _, err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Stop()
	srv.Stop()
}

func TestCallbackPanicDoesNotKillAcceptLoop(t *testing.T) {
	testlog.Start(t)

	calls := make(chan struct{}, 2)
	srv := NewServer(ServerConfig{
		AppID:        "demo",
		PollInterval: 50 * time.Millisecond,
		OnActivate: func() {
			calls <- struct{}{}
			panic("embedder bug")
		},
	})
	port, err := srv.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	if !SendActivation("demo", port, time.Second) {
		t.Fatalf("first activation should still reply ok")
	}
	if !SendActivation("demo", port, time.Second) {
		t.Fatalf("second activation should succeed after callback panic")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("callback %d did not fire", i+1)
		}
	}
}
