package gateway

import (
	"fmt"

	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// Kind is the role of a subscribed channel.
type Kind int

// Channel kinds.
const (
	KindSet Kind = iota
	KindQuery
	KindControl
)

// String returns the channel suffix for k.
func (k Kind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindQuery:
		return "req"
	case KindControl:
		return "gateway"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Channels builds the channel and key names for one gateway.
type Channels struct {
	Domain  string
	Gateway string
}

func (c Channels) entity(id status.InstanceID, suffix string) string {
	return fmt.Sprintf("%s://%s/%d/%s", c.Domain, c.Gateway, id, suffix)
}

// Status is the hash key holding an instance's snapshot.
func (c Channels) Status(id status.InstanceID) string { return c.entity(id, "status") }

// Update is the channel announcing a refreshed snapshot.
func (c Channels) Update(id status.InstanceID) string { return c.entity(id, "update") }

// Set is the per-instance set channel.
func (c Channels) Set(id status.InstanceID) string { return c.entity(id, "set") }

// Query is the per-instance query channel.
func (c Channels) Query(id status.InstanceID) string { return c.entity(id, "req") }

// Reply is where answers to queries for an instance are published.
func (c Channels) Reply(id status.InstanceID) string { return c.entity(id, "rep") }

// Control is this gateway's command channel.
func (c Channels) Control() string { return fmt.Sprintf("%s://%s/gateway", c.Domain, c.Gateway) }

// BroadcastSet addresses every instance of every gateway.
func (c Channels) BroadcastSet() string { return c.Domain + ":///set" }

// BroadcastQuery addresses every instance of every gateway.
func (c Channels) BroadcastQuery() string { return c.Domain + ":///req" }

// BroadcastControl addresses every gateway.
func (c Channels) BroadcastControl() string { return c.Domain + ":///gateway" }

// route is what a subscribed channel means to the router. A nil entity
// addresses every managed entity.
type route struct {
	kind   Kind
	entity *status.Entity
}

// routeTable maps every subscribed channel to its route, in subscription
// order.
type routeTable struct {
	routes   map[string]route
	channels []string
}

func buildRoutes(ch Channels, reg *status.Registry) *routeTable {
	t := &routeTable{routes: make(map[string]route)}
	add := func(name string, r route) {
		if _, ok := t.routes[name]; ok {
			return
		}
		t.routes[name] = r
		t.channels = append(t.channels, name)
	}

	for _, e := range reg.Entities() {
		add(ch.Set(e.ID()), route{kind: KindSet, entity: e})
	}
	add(ch.BroadcastSet(), route{kind: KindSet})
	for _, e := range reg.Entities() {
		add(ch.Query(e.ID()), route{kind: KindQuery, entity: e})
	}
	add(ch.BroadcastQuery(), route{kind: KindQuery})
	add(ch.Control(), route{kind: KindControl})
	add(ch.BroadcastControl(), route{kind: KindControl})
	return t
}

func (t *routeTable) lookup(channel string) (route, bool) {
	r, ok := t.routes[channel]
	return r, ok
}
