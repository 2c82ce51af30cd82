package exporter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// newTestRegistry returns a registry with instances 0 and 1 in memory.
func newTestRegistry(t *testing.T) *status.Registry {
	t.Helper()
	reg, err := status.Open(status.NewMemoryStore(status.RecordSize*32), []status.InstanceID{0, 1}, true)
	if err != nil {
		t.Fatalf("status.Open() error = %v", err)
	}
	return reg
}

func put(t *testing.T, reg *status.Registry, id status.InstanceID, key string, v status.Value) {
	t.Helper()
	e, ok := reg.Lookup(id)
	if !ok {
		t.Fatalf("instance %d missing", id)
	}
	err := e.Do(context.Background(), func(b *status.Buffer) error {
		return b.Put(key, v)
	})
	if err != nil {
		t.Fatalf("Put(%s) error = %v", key, err)
	}
}

func testFields() []config.MetricField {
	return []config.MetricField{
		{Name: "RA"},
		{Name: "SRC_NAME", String: true},
		{Name: "PKTIDX"},
		{Name: "MISSING"},
		{Name: "RA", String: true},
	}
}

func TestCollector_Projection(t *testing.T) {
	reg := newTestRegistry(t)
	put(t, reg, 0, "RA", status.Float(156.5))
	put(t, reg, 0, "SRC_NAME", status.String("3C295"))
	put(t, reg, 0, "PKTIDX", status.Int(42))
	put(t, reg, 1, "RA", status.Float(10.25))
	put(t, reg, 1, "PKTIDX", status.String("not a number"))

	c := NewCollector(CollectorOptions{
		Registry: reg,
		Domain:   "bluse",
		Gateway:  "blpn48",
		Fields:   testFields(),
	})

	expected := `
# HELP hashpipe_status_buffer Hashpipe status buffer field
# TYPE hashpipe_status_buffer gauge
hashpipe_status_buffer{domain="bluse",hpinstance="blpn48/0",name="RA"} 156.5
hashpipe_status_buffer{domain="bluse",hpinstance="blpn48/0",name="PKTIDX"} 42
hashpipe_status_buffer{domain="bluse",hpinstance="blpn48/0",name="SRC_NAME",value="3C295"} 1
hashpipe_status_buffer{domain="bluse",hpinstance="blpn48/1",name="RA"} 10.25
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "hashpipe_status_buffer"); err != nil {
		t.Error(err)
	}

	if n := testutil.CollectAndCount(c, "hashpipe_status_buffer_scrape_duration_seconds"); n != 1 {
		t.Errorf("scrape duration samples = %d, want 1", n)
	}
}

func TestCollector_NumericFieldValues(t *testing.T) {
	reg := newTestRegistry(t)
	put(t, reg, 0, "PKTIDX", status.String("12.5"))
	put(t, reg, 0, "NETSTAT", status.String("receiving"))
	put(t, reg, 0, "BLANK", status.String(""))

	c := NewCollector(CollectorOptions{
		Registry: reg,
		Domain:   "hashpipe",
		Gateway:  "px1",
		Fields:   []config.MetricField{{Name: "PKTIDX"}, {Name: "NETSTAT"}, {Name: "BLANK"}},
	})

	// Numeric strings are exported; anything else is left out rather than
	// reported as zero.
	expected := `
# HELP hashpipe_status_buffer Hashpipe status buffer field
# TYPE hashpipe_status_buffer gauge
hashpipe_status_buffer{domain="hashpipe",hpinstance="px1/0",name="PKTIDX"} 12.5
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "hashpipe_status_buffer"); err != nil {
		t.Error(err)
	}
}

func TestCollector_CustomName(t *testing.T) {
	reg := newTestRegistry(t)
	put(t, reg, 1, "NETSTAT", status.String("receiving"))

	c := NewCollector(CollectorOptions{
		Registry: reg,
		Domain:   "dom",
		Gateway:  "gw",
		Name:     "custom_status",
		Help:     "Custom help",
		Fields:   []config.MetricField{{Name: "NETSTAT", String: true}},
	})

	expected := `
# HELP custom_status Custom help
# TYPE custom_status gauge
custom_status{domain="dom",hpinstance="gw/1",name="NETSTAT",value="receiving"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "custom_status"); err != nil {
		t.Error(err)
	}
}

func TestCollector_NoFields(t *testing.T) {
	reg := newTestRegistry(t)
	put(t, reg, 0, "RA", status.Float(1.5))

	c := NewCollector(CollectorOptions{Registry: reg, Domain: "d", Gateway: "g"})

	if n := testutil.CollectAndCount(c); n != 1 {
		t.Errorf("samples = %d, want only the scrape duration", n)
	}
}

func TestCollector_LockedInstanceSkipped(t *testing.T) {
	reg := newTestRegistry(t)
	put(t, reg, 0, "RA", status.Float(1.5))
	put(t, reg, 1, "RA", status.Float(2.5))

	e0, _ := reg.Lookup(0)
	if err := e0.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e0.Unlock()

	c := NewCollector(CollectorOptions{
		Registry:    reg,
		Domain:      "d",
		Gateway:     "g",
		Fields:      []config.MetricField{{Name: "RA"}},
		LockTimeout: 20 * time.Millisecond,
	})

	expected := `
# HELP hashpipe_status_buffer Hashpipe status buffer field
# TYPE hashpipe_status_buffer gauge
hashpipe_status_buffer{domain="d",hpinstance="g/1",name="RA"} 2.5
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "hashpipe_status_buffer"); err != nil {
		t.Error(err)
	}
}

func TestDedupeFields(t *testing.T) {
	got := dedupeFields([]config.MetricField{
		{Name: "RA"},
		{Name: " RA "},
		{Name: ""},
		{Name: "LONGFIELDNAME", String: true},
		{Name: "LONGFIELDXX"},
	})

	want := []config.MetricField{{Name: "RA"}, {Name: "LONGFIEL", String: true}}
	if len(got) != len(want) {
		t.Fatalf("dedupeFields() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
