package clientdriver

import "testing"

func TestNormalizeAddrForms(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{"example.com", "example.com:11451", false},
		{"example.com:9000", "example.com:9000", false},
		{"picoradar://example.com:9000", "example.com:9000", false},
		{"[::1]:9000", "[::1]:9000", false},
		{"example.com:notaport", "", true},
		{"example.com:70000", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := NormalizeAddr(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NormalizeAddr(%q) = %q, nil; want error", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeAddr(%q) unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizeAddr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNewDriverStartsDisconnected(t *testing.T) {
	d := New()
	if d.State() != Disconnected {
		t.Fatalf("State() = %v, want Disconnected", d.State())
	}
}

func TestDisconnectBeforeConnectIsNoOp(t *testing.T) {
	d := New()
	d.Disconnect() // must not panic or block
}
