// Package identity resolves caller identities and issues the role-scoped
// tokens participants use to invoke ledger operations.
//
// The ledger core never inspects tokens: it receives a resolved Caller and
// reads attributes from it. Token verification happens at the gateway edge.
package identity

import "maps"

// Well-known caller attribute names.
const (
	// AttrDNI is the national identity number of the enrolled participant.
	AttrDNI = "dni"

	// AttrBootstrapAdmin marks the distinguished bootstrap administrator
	// enrollment identity. Value "true" when present.
	AttrBootstrapAdmin = "educhain.bootstrap"
)

// Resolver supplies the attributes of the authenticated caller of the
// current invocation.
type Resolver interface {
	// CallerAttribute returns the named attribute and whether it is present.
	CallerAttribute(name string) (string, bool)
}

// Caller is an immutable resolved invocation identity.
type Caller struct {
	attrs map[string]string
}

// NewCaller builds a Caller from an attribute map. The map is copied.
func NewCaller(attrs map[string]string) *Caller {
	cp := make(map[string]string, len(attrs))
	maps.Copy(cp, attrs)
	return &Caller{attrs: cp}
}

// CallerAttribute implements Resolver.
func (c *Caller) CallerAttribute(name string) (string, bool) {
	v, ok := c.attrs[name]
	return v, ok
}

// DNI returns the caller's dni attribute, or "" for the bootstrap admin.
func (c *Caller) DNI() string {
	return c.attrs[AttrDNI]
}

// IsBootstrapAdmin reports whether this caller is the bootstrap
// administrator identity.
func (c *Caller) IsBootstrapAdmin() bool {
	return c.attrs[AttrBootstrapAdmin] == "true"
}
