package httpclient

import (
	"net"
	"testing"
	"time"
)

func TestValidateURLSchemes(t *testing.T) {
	c := NewSaferClient(5 * time.Second)

	if _, err := c.ValidateURL("ftp://example.com/tiles"); err == nil {
		t.Error("ftp scheme should be rejected")
	}
	if _, err := c.ValidateURL("https://tiles.example.com/layer.json"); err != nil {
		t.Errorf("https should be allowed: %v", err)
	}
}

func TestValidateURLBlocksLocalhost(t *testing.T) {
	c := NewSaferClient(5 * time.Second)

	for _, u := range []string{
		"http://localhost/x",
		"http://127.0.0.1/x",
		"http://10.0.0.5/x",
		"http://192.168.1.1/x",
		"http://evil.com@localhost/x",
	} {
		if _, err := c.ValidateURL(u); err == nil {
			t.Errorf("%s should be blocked", u)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	cases := []struct {
		ip      string
		private bool
	}{
		{"8.8.8.8", false},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.32.0.1", false},
		{"169.254.1.1", true},
		{"::1", true},
		{"fd00::1", true},
		{"2606:4700::1", false},
	}
	for _, tc := range cases {
		ip := net.ParseIP(tc.ip)
		if ip == nil {
			t.Fatalf("bad test IP %q", tc.ip)
		}
		if got := isPrivateIP(ip); got != tc.private {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tc.ip, got, tc.private)
		}
	}
}

func TestWrapClientAllowsLocalhost(t *testing.T) {
	c := WrapClient(nil)
	if _, err := c.ValidateURL("http://127.0.0.1:8080/x"); err != nil {
		t.Errorf("wrapped test client should allow localhost: %v", err)
	}
}
