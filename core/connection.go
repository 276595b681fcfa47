package core

import "fmt"

// Authority identifies the subsystem that asserted a connection. Each
// authority only ever retracts connections it asserted itself.
type Authority string

const (
	AuthorityWiring   Authority = "wiring"
	AuthorityWireless Authority = "wireless"
	AuthorityManual   Authority = "manual"
)

// Connection is a logical link between two ports carrying the negotiated
// capabilities of whatever joins them.
type Connection struct {
	From         NodeID
	To           NodeID
	Capabilities Capabilities
	Author       Authority
}

// Involves reports whether port is one of the endpoints.
func (c Connection) Involves(port NodeID) bool {
	return c.From == port || c.To == port
}

// Other returns the endpoint opposite to port.
func (c Connection) Other(port NodeID) (NodeID, bool) {
	switch port {
	case c.From:
		return c.To, true
	case c.To:
		return c.From, true
	}
	return NodeID{}, false
}

// Matches reports whether the connection joins a and b, in either order.
func (c Connection) Matches(a, b NodeID) bool {
	return (c.From == a && c.To == b) || (c.From == b && c.To == a)
}

func (c Connection) String() string {
	return fmt.Sprintf("%s %s<->%s [%s]", c.Author, c.From, c.To, c.Capabilities)
}
