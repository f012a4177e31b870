// Package resolver implements the wire types of the resolver protocol
// reused by the container over runtime/codec. Only the protocol surface the container touches is
// implemented — the resolver's own storage and replication are out of
// scope.
package resolver

import (
	"time"

	"github.com/bscript/container/core/value"
)

const (
	// HelloTimeout bounds how long a connection may take to complete its
	// ClientHello/ServerHello exchange before being dropped.
	HelloTimeout = 10 * time.Second
	// ReaderTTL is the fixed TTL granted to read-only connections.
	ReaderTTL = 120 * time.Second
	// MaxTTL is the largest TTL a writer may request.
	MaxTTL = 3600 * time.Second
)

// ClientHello is the first message sent by a connecting client.
type ClientHello struct {
	ReadOnly  bool
	WriteOnly bool
	// TTL and WriteAddr apply only when WriteOnly is true.
	TTL       time.Duration
	WriteAddr string
}

// ValidateTTL reports whether h's TTL is within (0, MaxTTL]; a TTL
// violation terminates the connection.
func (h ClientHello) ValidateTTL() bool {
	if !h.WriteOnly {
		return true
	}
	return h.TTL > 0 && h.TTL <= MaxTTL
}

// ServerHello is the reply to a ClientHello.
type ServerHello struct {
	TTLExpired bool
}

// ToResolverKind tags a ToResolver message's variant.
type ToResolverKind int

const (
	ToResolve ToResolverKind = iota
	ToList
	ToPublish
	ToUnpublish
	ToClear
	ToHeartbeat
)

// ToResolver is a request sent from the container (or any client) to the
// resolver.
type ToResolver struct {
	Kind  ToResolverKind
	Paths []value.Path // Resolve, Publish, Unpublish
	Path  value.Path   // List
}

// FromResolverKind tags a FromResolver message's variant.
type FromResolverKind int

const (
	FromResolved FromResolverKind = iota
	FromList
	FromPublished
	FromUnpublished
	FromError
)

// Addr is an opaque publisher address as returned by Resolve.
type Addr string

// FromResolver is the resolver's reply to a ToResolver request.
type FromResolver struct {
	Kind      FromResolverKind
	Resolved  [][]Addr     // one address set per resolved path, FromResolved
	Listed    []value.Path // FromList
	ErrorText string       // FromError
}

// Role distinguishes a connection's permitted operations, enforced by
// Conn.Send before a ToResolver request is sent.
type Role int

const (
	RoleReadOnly Role = iota
	RoleWriteOnly
)

// RoleFor derives the connection Role from a validated ClientHello.
func RoleFor(h ClientHello) Role {
	if h.WriteOnly {
		return RoleWriteOnly
	}
	return RoleReadOnly
}

// Allows reports whether role may issue a request of kind: read-only
// connections may not publish, write-only connections may not resolve or
// list.
func (r Role) Allows(kind ToResolverKind) bool {
	switch kind {
	case ToResolve, ToList:
		return r == RoleReadOnly
	case ToPublish, ToUnpublish:
		return r == RoleWriteOnly
	case ToClear, ToHeartbeat:
		return true
	default:
		return false
	}
}
