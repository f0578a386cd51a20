package adminapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newHTTPServerOrSkip(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	func() {
		defer func() {
			if r := recover(); r != nil {
				server = nil
			}
		}()
		server = httptest.NewServer(handler)
	}()
	if server == nil {
		t.Skip("skipping listener test in restricted environment")
	}
	return server
}

func TestClientValidation(t *testing.T) {
	if _, err := NewClient("   ", ""); !errors.Is(err, ErrServerAddressRequired) {
		t.Fatalf("blank address: err = %v", err)
	}
	c, err := NewClient("localhost:9040/", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.base != "http://localhost:9040" {
		t.Fatalf("base = %q", c.base)
	}
}

func TestClientRoundTrip(t *testing.T) {
	s := newTestServer(t, "sesame")
	srv := newHTTPServerOrSkip(t, s.HTTPRouter())
	defer srv.Close()

	client, err := NewClient(srv.URL, "sesame")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Agents != 2 || status.Devices != 3 {
		t.Fatalf("status = %+v", status)
	}

	agents, err := client.Agents(ctx)
	if err != nil || len(agents) != 2 {
		t.Fatalf("agents = %+v (%v)", agents, err)
	}

	clocks, err := client.Clocks(ctx, "psci")
	if err != nil || len(clocks) != 3 {
		t.Fatalf("clocks = %+v (%v)", clocks, err)
	}

	out, err := client.SetRate(ctx, "psci", 0, 250, "up")
	if err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if out.Status != "success" || out.Rate != 400 {
		t.Fatalf("set rate outcome = %+v", out)
	}

	rates, err := client.DescribeRates(ctx, "psci", 1)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if rates.Format != "range" || rates.Max != 500 {
		t.Fatalf("rates = %+v", rates)
	}

	if _, err := client.SetEnabled(ctx, "psci", 0, true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	_, err = client.Clocks(ctx, "hypervisor")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Code != http.StatusNotFound {
		t.Fatalf("unknown agent err = %v", err)
	}
}

func TestClientAuthRejected(t *testing.T) {
	s := newTestServer(t, "sesame")
	srv := newHTTPServerOrSkip(t, s.HTTPRouter())
	defer srv.Close()

	client, err := NewClient(srv.URL, "wrong")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Status(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
}
