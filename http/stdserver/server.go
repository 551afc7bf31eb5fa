package stdserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultReadHeaderTimeout = 10 * time.Second

type StdHttpServerReq struct {
	Addr    string
	Handler http.Handler

	ReadHeaderTimeout time.Duration
	Logger            *zap.Logger

	StartedCallback func(addr net.Addr)
}

type StdHttpServer struct {
	l   net.Listener
	srv *http.Server

	done   chan struct{}
	err    error
	logger *zap.Logger
}

// StartStdHttpServer listens on req.Addr and serves in the background.
func StartStdHttpServer(req *StdHttpServerReq) (*StdHttpServer, error) {
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := req.ReadHeaderTimeout
	if timeout == 0 {
		timeout = defaultReadHeaderTimeout
	}

	l, err := net.Listen("tcp", req.Addr)
	if err != nil {
		return nil, err
	}
	res := &StdHttpServer{
		l: l,
		srv: &http.Server{
			Handler:           req.Handler,
			ReadHeaderTimeout: timeout,
		},
		done:   make(chan struct{}),
		logger: logger,
	}

	go func() {
		defer close(res.done)
		if err := res.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			res.err = err
			logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()
	logger.Info("http server started", zap.Stringer("addr", l.Addr()))
	if req.StartedCallback != nil {
		req.StartedCallback(l.Addr())
	}

	return res, nil
}

func (h *StdHttpServer) Addr() net.Addr {
	return h.l.Addr()
}

// Done is closed once the serve loop returned.
func (h *StdHttpServer) Done() <-chan struct{} {
	return h.done
}

// Err is the unexpected serve error, valid after Done is closed.
func (h *StdHttpServer) Err() error {
	return h.err
}

func (h *StdHttpServer) Shutdown(ctx context.Context) error {
	err := h.srv.Shutdown(ctx)
	h.logger.Info("http server shut down", zap.Error(err))
	return err
}
