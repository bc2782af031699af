package client

import (
	"net/url"
	"testing"
	"time"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}

func testClient(t *testing.T, base string) *Client {
	t.Helper()
	return New(&Config{
		BaseURL:     mustParse(t, base),
		Subdomain:   "acme",
		ProjectID:   "p1",
		HTTPTimeout: time.Second,
	})
}

func TestResolve(t *testing.T) {
	c := testClient(t, "http://example.test/")

	if got := c.resolve("/labs/l1/workcells"); got != "http://example.test/labs/l1/workcells" {
		t.Fatalf("unexpected url: %s", got)
	}

	if got := c.resolve("/x", "a=1", " ", "b=2"); got != "http://example.test/x?a=1&b=2" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestPrefix(t *testing.T) {
	c := testClient(t, "http://example.test")

	if got := c.prefix(); got != "/acme/projects/p1" {
		t.Fatalf("unexpected prefix: %s", got)
	}
}
