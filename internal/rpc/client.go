// Package rpc implements a client/server pair over internal/wire's framed
// JSON-RPC 2.0 protocol, used to reach worker processes that only speak the
// legacy framed wire instead of the in-process call path.
package rpc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/nexusfab/fabric/internal/wire"
)

// Client is a single persistent connection to one worker, multiplexing
// concurrent requests by JSON-RPC id.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	pending map[string]chan *wire.Response
	mu      sync.Mutex
	writeMu sync.Mutex
	closed  bool
}

func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		pending: make(map[string]chan *wire.Response),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	for {
		resp, err := wire.ReadResponse(c.reader)
		if err != nil {
			c.failAllPending(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- wire.ErrorResponse(id, wire.ServiceUnavailable, err.Error(), nil)
		delete(c.pending, id)
	}
}

// Call sends method/params and blocks until the matching response arrives
// or ctx is done.
func (c *Client) Call(ctx context.Context, method string, params map[string]interface{}) (*wire.Response, error) {
	req := wire.NewRequest(method, params)
	ch := make(chan *wire.Response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("rpc: client connection closed")
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := wire.WriteRequest(c.conn, req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
