package resolver_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bscript/container/core/value"
	"github.com/bscript/container/runtime/resolver"
)

func TestHandshakeReadOnly(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	serverConnCh := make(chan *resolver.Conn, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		conn, err := resolver.ServerHandshake(serverSide, time.Second)
		serverConnCh <- conn
		serverErrCh <- err
	}()

	clientConn, err := resolver.ClientHandshake(clientSide, resolver.ClientHello{ReadOnly: true}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, resolver.RoleReadOnly, clientConn.Role())

	require.NoError(t, <-serverErrCh)
	serverConn := <-serverConnCh
	require.NotNil(t, serverConn)
	assert.Equal(t, resolver.RoleReadOnly, serverConn.Role())
}

func TestRoleDeniesPublishForReadOnly(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	go func() { _, _ = resolver.ServerHandshake(serverSide, time.Second) }()
	clientConn, err := resolver.ClientHandshake(clientSide, resolver.ClientHello{ReadOnly: true}, time.Second)
	require.NoError(t, err)

	err = clientConn.Send(resolver.ToResolver{Kind: resolver.ToPublish, Paths: []value.Path{"/x"}})
	assert.Error(t, err)
}

func TestInvalidTTLRejected(t *testing.T) {
	hello := resolver.ClientHello{WriteOnly: true, TTL: 0}
	assert.False(t, hello.ValidateTTL())

	hello = resolver.ClientHello{WriteOnly: true, TTL: resolver.MaxTTL + time.Second}
	assert.False(t, hello.ValidateTTL())

	hello = resolver.ClientHello{WriteOnly: true, TTL: 60 * time.Second}
	assert.True(t, hello.ValidateTTL())
}

func TestRoleAllows(t *testing.T) {
	assert.True(t, resolver.RoleReadOnly.Allows(resolver.ToResolve))
	assert.False(t, resolver.RoleReadOnly.Allows(resolver.ToPublish))
	assert.True(t, resolver.RoleWriteOnly.Allows(resolver.ToPublish))
	assert.False(t, resolver.RoleWriteOnly.Allows(resolver.ToResolve))
}
