package resolver

import (
	"errors"
	"io"
	"time"

	"github.com/bscript/container/runtime/codec"
)

// ErrTTLRejected is returned by Handshake when a write-only ClientHello
// carries an invalid TTL.
var ErrTTLRejected = errors.New("resolver: ttl 0 or > 3600s rejected")

// ErrHelloTimeout is returned when a hello exchange does not complete
// within HelloTimeout.
var ErrHelloTimeout = errors.New("resolver: hello exchange timed out")

// Conn wraps a codec.Channel with the resolver's hello handshake and the
// Role it establishes.
type Conn struct {
	ch   *codec.Channel
	role Role
}

// ServerHandshake reads a ClientHello, validates it, and replies with a
// ServerHello. deadline, if non-zero, bounds the whole exchange.
func ServerHandshake(rw io.ReadWriter, deadline time.Duration) (*Conn, error) {
	if deadline == 0 {
		deadline = HelloTimeout
	}
	result := make(chan error, 1)
	ch := codec.New(rw)
	var hello ClientHello
	var conn *Conn
	go func() {
		if err := ch.ReceiveMessage(&hello); err != nil {
			result <- err
			return
		}
		if !hello.ValidateTTL() {
			result <- ErrTTLRejected
			return
		}
		conn = &Conn{ch: ch, role: RoleFor(hello)}
		if err := ch.QueueMessage(ServerHello{TTLExpired: false}); err != nil {
			result <- err
			return
		}
		result <- ch.Flush()
	}()
	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
		return conn, nil
	case <-time.After(deadline):
		return nil, ErrHelloTimeout
	}
}

// ClientHandshake sends hello and waits for the ServerHello reply.
func ClientHandshake(rw io.ReadWriter, hello ClientHello, deadline time.Duration) (*Conn, error) {
	if deadline == 0 {
		deadline = HelloTimeout
	}
	if !hello.ValidateTTL() {
		return nil, ErrTTLRejected
	}
	ch := codec.New(rw)
	result := make(chan error, 1)
	var reply ServerHello
	go func() {
		if err := ch.QueueMessage(hello); err != nil {
			result <- err
			return
		}
		if err := ch.Flush(); err != nil {
			result <- err
			return
		}
		result <- ch.ReceiveMessage(&reply)
	}()
	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
		return &Conn{ch: ch, role: RoleFor(hello)}, nil
	case <-time.After(deadline):
		return nil, ErrHelloTimeout
	}
}

// Send issues a request, rejecting it up front if the connection's Role
// does not permit kind.
func (c *Conn) Send(req ToResolver) error {
	if !c.role.Allows(req.Kind) {
		return errors.New("resolver: role does not permit this request kind")
	}
	if err := c.ch.QueueMessage(req); err != nil {
		return err
	}
	return c.ch.Flush()
}

// Receive decodes the next FromResolver reply.
func (c *Conn) Receive() (FromResolver, error) {
	var resp FromResolver
	err := c.ch.ReceiveMessage(&resp)
	return resp, err
}

// Role reports the connection's negotiated Role.
func (c *Conn) Role() Role { return c.role }
