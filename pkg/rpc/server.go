// Package rpc is a small JSON-over-TCP RPC layer for service-to-service
// calls inside the platform.
//
// Protocol: newline-delimited JSON over a persistent TCP connection. Each
// request names a "Service.Method", carries an ID echoed in the response
// and optionally the caller's request ID for log correlation. Requests on
// one connection are answered in order.
//
// Example server:
//
//	s := rpc.NewServer(5 * time.Second)
//	s.Register("AdvancedSearch.Parse", func(ctx context.Context, params json.RawMessage) (any, error) {
//	    var req proto.QueryRequest
//	    if err := json.Unmarshal(params, &req); err != nil { ... }
//	    return analyzer.Analyze(ctx, req.Query)
//	})
//	go s.Serve(":9091")
//
// Example client:
//
//	c, _ := rpc.Dial(ctx, "localhost:9091")
//	var resp proto.QueryAnalysis
//	err := c.Call(ctx, "AdvancedSearch.Parse", proto.QueryRequest{Query: "a OR b"}, &resp)
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
)

// HandlerFunc processes an RPC request and returns a response or error.
// Errors carrying an apperrors.AppError keep their status and message;
// anything else reaches the caller as an internal error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method    string          `json:"method"`
	ID        string          `json:"id"`
	RequestID string          `json:"requestId,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// Response is the wire format for an RPC response.
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Error is a failed call. Code uses HTTP status semantics.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

const (
	defaultMaxRequestBytes = 64 << 10
	defaultIdleTimeout     = 2 * time.Minute
)

var errRequestTooLarge = errors.New("rpc request exceeds size limit")

type Server struct {
	handlers        map[string]HandlerFunc
	callTimeout     time.Duration
	idleTimeout     time.Duration
	maxRequestBytes int
	logger          *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithIdleTimeout closes connections that send no complete request for d.
// Zero disables the deadline.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idleTimeout = d }
}

// WithMaxRequestBytes caps the size of one request line.
func WithMaxRequestBytes(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxRequestBytes = n
		}
	}
}

// NewServer creates a server that bounds every call by callTimeout; zero
// means no bound. Requests are limited to 64 KiB and idle connections are
// closed after two minutes unless overridden.
func NewServer(callTimeout time.Duration, opts ...ServerOption) *Server {
	s := &Server{
		handlers:        make(map[string]HandlerFunc),
		callTimeout:     callTimeout,
		idleTimeout:     defaultIdleTimeout,
		maxRequestBytes: defaultMaxRequestBytes,
		logger:          slog.Default().With("component", "rpc-server"),
		conns:           make(map[net.Conn]struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a handler for the given RPC method name.
// Method names follow the "Service.Method" convention.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Serve listens on addr and blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener accepts connections on ln and blocks until Stop is called.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		ln.Close()
		return nil
	default:
	}
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	reader := bufio.NewReader(conn)
	encoder := json.NewEncoder(conn)

	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		line, err := readLine(reader, s.maxRequestBytes)
		if errors.Is(err, errRequestTooLarge) {
			s.logger.Warn("rpc request too large", "remote", conn.RemoteAddr().String(), "limit", s.maxRequestBytes)
			_ = encoder.Encode(Response{Error: &Error{Code: http.StatusRequestEntityTooLarge, Message: "request too large"}})
			return
		}
		if err != nil {
			return // closed, idle or reset
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = &Error{Code: http.StatusBadRequest, Message: "malformed request"}
		} else {
			resp = s.dispatch(req)
		}
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

// readLine reads one newline-terminated request of at most limit bytes. A
// final line without a newline is accepted at EOF.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > limit {
			return nil, errRequestTooLarge
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(bytes.TrimSpace(line)) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}

func (s *Server) dispatch(req Request) (resp Response) {
	resp.ID = req.ID

	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	s.mu.RUnlock()
	if !exists {
		resp.Error = &Error{Code: http.StatusNotFound, Message: "unknown method: " + req.Method}
		return resp
	}

	ctx := context.Background()
	if req.RequestID != "" {
		ctx = logger.WithRequestID(ctx, req.RequestID)
	}
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("rpc handler panicked", "component", "rpc-server", "method", req.Method, "panic", r)
			resp.Data = nil
			resp.Error = &Error{Code: http.StatusInternalServerError, Message: "internal error"}
		}
	}()

	data, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = toError(err)
		if resp.Error.Code >= http.StatusInternalServerError {
			logger.FromContext(ctx).Error("rpc call failed", "component", "rpc-server", "method", req.Method, "error", err)
		}
		return resp
	}

	raw, err := json.Marshal(data)
	if err != nil {
		resp.Error = &Error{Code: http.StatusInternalServerError, Message: "encoding response failed"}
		return resp
	}
	resp.Data = raw
	return resp
}

func toError(err error) *Error {
	code := apperrors.HTTPStatusCode(err)
	if code >= http.StatusInternalServerError {
		return &Error{Code: code, Message: "internal error"}
	}
	return &Error{Code: code, Message: apperrors.Message(err)}
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop closes the listener and every open connection, then waits for
// in-flight calls to finish. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}
