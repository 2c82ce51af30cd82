package gateway

import (
	"testing"

	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

func TestChannelNames(t *testing.T) {
	ch := Channels{Domain: "hashpipe", Gateway: "px1"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", ch.Status(0), "hashpipe://px1/0/status"},
		{"update", ch.Update(3), "hashpipe://px1/3/update"},
		{"set", ch.Set(0), "hashpipe://px1/0/set"},
		{"query", ch.Query(2), "hashpipe://px1/2/req"},
		{"reply", ch.Reply(2), "hashpipe://px1/2/rep"},
		{"control", ch.Control(), "hashpipe://px1/gateway"},
		{"broadcast set", ch.BroadcastSet(), "hashpipe:///set"},
		{"broadcast query", ch.BroadcastQuery(), "hashpipe:///req"},
		{"broadcast control", ch.BroadcastControl(), "hashpipe:///gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{KindSet: "set", KindQuery: "req", KindControl: "gateway", Kind(9): "kind(9)"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestBuildRoutes(t *testing.T) {
	reg := newTestRegistry(t, 0, 2)
	routes := buildRoutes(testChannels, reg)

	wantOrder := []string{
		"hashpipe://px1/0/set",
		"hashpipe://px1/2/set",
		"hashpipe:///set",
		"hashpipe://px1/0/req",
		"hashpipe://px1/2/req",
		"hashpipe:///req",
		"hashpipe://px1/gateway",
		"hashpipe:///gateway",
	}
	if len(routes.channels) != len(wantOrder) {
		t.Fatalf("channels = %v, want %v", routes.channels, wantOrder)
	}
	for i, want := range wantOrder {
		if routes.channels[i] != want {
			t.Errorf("channels[%d] = %q, want %q", i, routes.channels[i], want)
		}
	}

	tests := []struct {
		channel    string
		wantKind   Kind
		wantEntity status.InstanceID
		broadcast  bool
	}{
		{"hashpipe://px1/0/set", KindSet, 0, false},
		{"hashpipe://px1/2/req", KindQuery, 2, false},
		{"hashpipe:///set", KindSet, 0, true},
		{"hashpipe:///req", KindQuery, 0, true},
		{"hashpipe://px1/gateway", KindControl, 0, true},
		{"hashpipe:///gateway", KindControl, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			rt, ok := routes.lookup(tt.channel)
			if !ok {
				t.Fatal("lookup failed")
			}
			if rt.kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", rt.kind, tt.wantKind)
			}
			if tt.broadcast {
				if rt.entity != nil {
					t.Errorf("entity = %d, want broadcast", rt.entity.ID())
				}
				return
			}
			if rt.entity == nil || rt.entity.ID() != tt.wantEntity {
				t.Errorf("entity = %v, want %d", rt.entity, tt.wantEntity)
			}
		})
	}

	for _, unknown := range []string{"hashpipe://px1/1/set", "hashpipe://px2/gateway", "other:///set"} {
		if _, ok := routes.lookup(unknown); ok {
			t.Errorf("lookup(%q) succeeded", unknown)
		}
	}
}
