package rpc

import (
	"bufio"
	"context"
	"net"

	"github.com/nexusfab/fabric/internal/logger"
	"github.com/nexusfab/fabric/internal/wire"
)

// Handler answers one JSON-RPC method call.
type Handler func(ctx context.Context, method string, params map[string]interface{}) (interface{}, error)

// Server accepts connections and serves Handler over the framed wire
// protocol, one goroutine per connection, one goroutine per in-flight
// request so a slow method doesn't block the rest of the connection.
type Server struct {
	handler Handler
	log     *logger.StyledLogger
}

func NewServer(handler Handler, log *logger.StyledLogger) *Server {
	return &Server{handler: handler, log: log}
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	writeMu := &writerMutex{ch: make(chan struct{}, 1)}
	for {
		req, err := wire.ReadRequest(reader)
		if err != nil {
			return
		}
		go s.handleRequest(ctx, conn, writeMu, req)
	}
}

func (s *Server) handleRequest(ctx context.Context, conn net.Conn, writeMu *writerMutex, req *wire.Request) {
	result, err := s.handler(ctx, req.Method, req.Params)

	var resp *wire.Response
	if err != nil {
		if s.log != nil {
			s.log.Error("rpc handler error", "method", req.Method, "error", err)
		}
		resp = wire.ErrorResponse(req.ID, wire.InternalError, err.Error(), nil)
	} else {
		resp = wire.SuccessResponse(req.ID, result)
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	_ = wire.WriteResponse(conn, resp)
}

// writerMutex serializes concurrent writers of responses for one connection.
type writerMutex struct{ ch chan struct{} }

func (w *writerMutex) Lock() {
	if w.ch == nil {
		w.ch = make(chan struct{}, 1)
	}
	w.ch <- struct{}{}
}

func (w *writerMutex) Unlock() { <-w.ch }
