package application

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/svcharness/internal/shutdown"
)

type fakeNotify struct {
	mu sync.Mutex
	ch chan<- os.Signal
}

func (f *fakeNotify) notify(c chan<- os.Signal, _ ...os.Signal) {
	f.mu.Lock()
	f.ch = c
	f.mu.Unlock()
}

func (f *fakeNotify) interrupt() {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- os.Interrupt
}

func newTestSignal(t *testing.T) (*shutdown.Signal, *fakeNotify) {
	t.Helper()

	fake := &fakeNotify{}
	sig, err := shutdown.NewRegistry(fake.notify).Install(zap.NewNop())
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	return sig, fake
}

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	sig, _ := newTestSignal(t)

	app, err := New(cfg, zaptest.NewLogger(t), sig)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.server.Addr != ":8085" || app.server.Handler != app.router {
		t.Fatalf("expected server to listen on :8085 and serve the router")
	}
	if app.Addr() != nil {
		t.Fatalf("expected no bound address before Start")
	}
}

func TestNewRejectsEmptyPort(t *testing.T) {
	cfg := baseTestConfig(" ")

	if _, err := New(cfg, zaptest.NewLogger(t), nil); err == nil {
		t.Fatalf("expected error for empty port")
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestStartAndShutdown(t *testing.T) {
	cfg := baseTestConfig("127.0.0.1:0")
	sig, _ := newTestSignal(t)

	app, err := New(cfg, zaptest.NewLogger(t), sig)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	errCh, err := app.Start()
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	resp, err := http.Get("http://" + app.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	if err := app.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected serve loop to stop after shutdown")
	}
}

func TestStartFailsWhenAddressInUse(t *testing.T) {
	sig, _ := newTestSignal(t)

	first, err := New(baseTestConfig("127.0.0.1:0"), zaptest.NewLogger(t), sig)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := first.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() { _ = first.Shutdown(time.Second) })

	second, err := New(baseTestConfig(first.Addr().String()), zaptest.NewLogger(t), sig)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := second.Start(); err == nil {
		t.Fatalf("expected listen error for occupied address")
	}
}

func TestMainServesUntilInterrupted(t *testing.T) {
	cfg := baseTestConfig("127.0.0.1:0")
	cfg.Service = "main-test"
	sig, fake := newTestSignal(t)

	done := make(chan error, 1)
	go func() {
		done <- Main(zap.NewNop(), cfg, sig)
	}()

	select {
	case err := <-done:
		t.Fatalf("Main returned before interrupt: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	fake.interrupt()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Main returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Main to return after interrupt")
	}
}

func TestMainReturnsStartError(t *testing.T) {
	sig, _ := newTestSignal(t)

	blocker, err := New(baseTestConfig("127.0.0.1:0"), zap.NewNop(), sig)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := blocker.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() { _ = blocker.Shutdown(time.Second) })

	if err := Main(zap.NewNop(), baseTestConfig(blocker.Addr().String()), sig); err == nil {
		t.Fatalf("expected Main to report the listen failure")
	}
}

func TestServerDrainsAfterShutdownRequest(t *testing.T) {
	cfg := baseTestConfig("127.0.0.1:0")
	sig, fake := newTestSignal(t)

	app, err := New(cfg, zap.NewNop(), sig)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := app.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(time.Second) })

	fake.interrupt()
	<-sig.Done()

	base := "http://" + app.Addr().String()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 while draining, got %d", resp.StatusCode)
	}
	if !resp.Close {
		t.Fatalf("expected the server to close the connection while draining")
	}

	resp, err = http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || body.Status != "stopping" {
		t.Fatalf("expected health to report stopping, got %d %q", resp.StatusCode, body.Status)
	}
}

func TestDefaultsCoverRequiredFields(t *testing.T) {
	defaults := Defaults()
	for _, key := range []string{"service", "port"} {
		if _, ok := defaults[key]; !ok {
			t.Fatalf("expected default for %s", key)
		}
	}
}

func baseTestConfig(port string) ServerConfig {
	return ServerConfig{
		Service:              "test-service",
		Port:                 port,
		ShutdownGracePeriod:  time.Second,
		ReadHeaderTimeout:    time.Second,
		WriteTimeout:         time.Second,
		IdleTimeout:          time.Second,
		EnableRequestLogging: false,
	}
}
