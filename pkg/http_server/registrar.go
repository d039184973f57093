package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jktrn/MemoLanes/pkg/config"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

const (
	// ProbeHeader marks an activation probe. The interception route answers
	// it without doing any tile work.
	ProbeHeader = "X-Journey-Tiles-Probe"
	// WorkerHeader carries the worker's answer to a probe.
	WorkerHeader = "X-Journey-Tiles-Worker"
	WorkerActive = "active"
)

var errNotActive = errors.New("probe not answered by an active worker")

// Registrar brings the interception server up and down. Each Register
// starts a fresh http.Server, so a registrar can be reused after Unregister.
type Registrar struct {
	ctx       context.Context
	cfg       config.Server
	handler   http.Handler
	probePath string
	client    *http.Client
	logger    logger.Logger

	mu       sync.Mutex
	server   *http.Server
	addr     string
	serveErr chan error
}

func NewRegistrar(ctx context.Context, cfg config.Server, handler http.Handler, probePath string, l logger.Logger) *Registrar {
	return &Registrar{
		ctx:       ctx,
		cfg:       cfg,
		handler:   handler,
		probePath: probePath,
		client:    &http.Client{Timeout: 2 * time.Second},
		logger:    l,
	}
}

// Addr is the bound listener address, empty until Register succeeds.
func (r *Registrar) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *Registrar) Register(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server != nil {
		return nil
	}

	server := NewServer(r.ctx, r.cfg, r.handler)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		err := server.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", "address", ln.Addr().String(), "error", err)
		}
		serveErr <- err
	}()

	r.server = server
	r.addr = ln.Addr().String()
	r.serveErr = serveErr

	r.logger.Info("http server listening", "address", r.addr)
	return nil
}

// Confirm probes the interception route on the bound address until it answers
// as an active worker, backing off exponentially between attempts. ctx bounds
// the whole confirmation.
func (r *Registrar) Confirm(ctx context.Context) error {
	r.mu.Lock()
	addr, serveErr := r.addr, r.serveErr
	r.mu.Unlock()

	if addr == "" {
		return errors.New("worker not registered")
	}

	url := "http://" + loopback(addr) + r.probePath
	defer r.client.CloseIdleConnections()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++

		select {
		case err := <-serveErr:
			return struct{}{}, backoff.Permanent(fmt.Errorf("server stopped: %w", err))
		default:
		}

		return struct{}{}, r.probe(ctx, url)
	}, backoff.WithBackOff(b))
	if err != nil {
		return fmt.Errorf("confirm worker at %s after %d attempts: %w", url, attempts, err)
	}

	r.logger.Debug("worker answered probe", "url", url, "attempts", attempts)
	return nil
}

func (r *Registrar) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set(ProbeHeader, "1")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent || resp.Header.Get(WorkerHeader) != WorkerActive {
		return fmt.Errorf("%w: status %d", errNotActive, resp.StatusCode)
	}
	return nil
}

func (r *Registrar) Unregister(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server == nil {
		return nil
	}

	r.logger.Info("shutting down http server...", "address", r.addr)
	err := r.server.Shutdown(ctx)

	r.server = nil
	r.addr = ""
	r.serveErr = nil

	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	r.logger.Info("http server stopped")
	return nil
}

// loopback rewrites a wildcard listen address so it can be dialled locally.
func loopback(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	ip := net.ParseIP(host)
	if host == "" || (ip != nil && ip.IsUnspecified()) {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return addr
}

