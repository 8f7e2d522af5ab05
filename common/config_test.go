package common

import (
	"net/netip"
	"testing"
	"time"
)

func testAddr() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 443)
}

func TestUnboundedHandshakes(t *testing.T) {
	// The sentinel must dwarf any achievable handshake count.
	if UnboundedHandshakes < 1<<63 {
		t.Error("unbounded cap is reachable: ", UnboundedHandshakes)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{Peer: testAddr(), Peers: 1, Workers: 1}, true},
		{"no address", Config{Peers: 1, Workers: 1}, false},
		{"zero peers", Config{Peer: testAddr(), Workers: 1}, false},
		{"zero workers", Config{Peer: testAddr(), Peers: 1}, false},
		{"too many workers", Config{Peer: testAddr(), Peers: 1, Workers: MaxWorkers + 1}, false},
		{"max workers", Config{Peer: testAddr(), Peers: 1, Workers: MaxWorkers}, true},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); (err == nil) != c.ok {
			t.Error(c.name, ": ", err)
		}
	}
}

func TestVersionString(t *testing.T) {
	if TLS12.String() != "1.2" || TLS13.String() != "1.3" {
		t.Error("version labels: ", TLS12, TLS13)
	}
	if TLSAny.String() != "Any of 1.2 or 1.3" {
		t.Error("any label: ", TLSAny)
	}
}

func TestDurationJSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"1m30s"` {
		t.Error("marshal: ", string(data))
	}

	var back Duration
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if back != d {
		t.Error("round trip: ", back)
	}
	if back.Seconds() != 90 {
		t.Error("seconds: ", back.Seconds())
	}
}
