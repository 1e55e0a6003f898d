package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/finlink-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeService) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	failing := &fakeService{name: "http", startErr: errors.New("bind failed")}
	blocking := &fakeService{name: "worker", block: true}
	runner := NewRunner(failing, blocking)

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.isStopped() || !blocking.isStopped() {
		t.Fatalf("all services must be stopped")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	blocking := &fakeService{name: "worker", block: true}
	runner := NewRunner(blocking)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run must return nil, got %v", err)
	}
	if !blocking.isStopped() {
		t.Fatalf("service must be stopped after cancel")
	}
}

func TestNormalizeOptionsDefaults(t *testing.T) {
	opts := normalizeOptions(Options{})
	if opts.Mode != ModeAll || opts.ShutdownTimeout != 10*time.Second || opts.Logger == nil {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if _, err := BuildRunner(nil, nil, ModeAll); err == nil {
		t.Fatalf("nil config must fail")
	}
}

type orderedService struct {
	name  string
	order *[]string
	mu    *sync.Mutex
	err   error
}

func (s *orderedService) Name() string { return s.name }

func (s *orderedService) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *orderedService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.order = append(*s.order, s.name)
	return s.err
}

func TestRunnerStopsInReverseOrderAndReportsStopError(t *testing.T) {
	var mu sync.Mutex
	var order []string
	first := &orderedService{name: "http", order: &order, mu: &mu}
	second := &orderedService{name: "worker", order: &order, mu: &mu, err: errors.New("drain timeout")}
	runner := NewRunner(first, nil, second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := runner.Run(ctx, time.Second, nil)
	if err == nil || !strings.Contains(err.Error(), "drain timeout") {
		t.Fatalf("expected stop error to surface, got %v", err)
	}
	if len(order) != 2 || order[0] != "worker" || order[1] != "http" {
		t.Fatalf("stop order want [worker http] got %v", order)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "", want: ModeAll},
		{raw: " API ", want: ModeAPI},
		{raw: "worker", want: ModeWorker},
		{raw: "cron", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseMode(%q) must fail", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseMode(%q) want %s got %s err=%v", tc.raw, tc.want, got, err)
		}
	}
	api := Options{Mode: ModeAPI}
	if !api.runsHTTP() || api.runsWorker() {
		t.Fatalf("api mode must only run http")
	}
}

func TestHTTPServiceReportsListenError(t *testing.T) {
	svc := NewHTTPService(config.ServerConfig{Host: "127.0.0.1", Port: "0"}, http.NotFoundHandler())
	if svc.server.ReadTimeout != 15*time.Second || svc.server.IdleTimeout != 60*time.Second {
		t.Fatalf("unexpected default timeouts: read=%s idle=%s", svc.server.ReadTimeout, svc.server.IdleTimeout)
	}
	listenErr := errors.New("address in use")
	svc.listen = func(network, addr string) (net.Listener, error) {
		return nil, listenErr
	}
	if err := svc.Start(context.Background()); !errors.Is(err, listenErr) {
		t.Fatalf("expected listen error, got %v", err)
	}
}
