package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrServerAddressRequired = errors.New("adminapi: server address required")

// RequestError carries a non-2xx admin answer so callers can show the
// protocol status the daemon reported.
type RequestError struct {
	Code    int
	Status  string
	Message string
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("adminapi: request failed: %s (http %d)", e.Status, e.Code)
	case e.Message != "":
		return fmt.Sprintf("adminapi: request failed: %s (http %d)", e.Message, e.Code)
	default:
		return fmt.Sprintf("adminapi: request failed: http %d", e.Code)
	}
}

// Client talks to a clockd admin server.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(base, token string) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, ErrServerAddressRequired
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *Client) Status(ctx context.Context) (StatusView, error) {
	var view StatusView
	err := c.get(ctx, "/v1/status", &view)
	return view, err
}

func (c *Client) Agents(ctx context.Context) ([]AgentView, error) {
	var body struct {
		Agents []AgentView `json:"agents"`
	}
	err := c.get(ctx, "/v1/agents", &body)
	return body.Agents, err
}

func (c *Client) Clocks(ctx context.Context, agent string) ([]ClockView, error) {
	var body struct {
		Clocks []ClockView `json:"clocks"`
	}
	err := c.get(ctx, fmt.Sprintf("/v1/agents/%s/clocks", agent), &body)
	return body.Clocks, err
}

func (c *Client) DescribeRates(ctx context.Context, agent string, clock uint32) (RatesView, error) {
	var view RatesView
	err := c.get(ctx, fmt.Sprintf("/v1/agents/%s/clocks/%d/rates", agent, clock), &view)
	return view, err
}

func (c *Client) SetRate(ctx context.Context, agent string, clock uint32, rate uint64, round string) (OutcomeView, error) {
	var view OutcomeView
	err := c.post(ctx, fmt.Sprintf("/v1/agents/%s/clocks/%d/rate", agent, clock),
		rateSetBody{Rate: rate, Round: round}, &view)
	return view, err
}

func (c *Client) SetEnabled(ctx context.Context, agent string, clock uint32, enabled bool) (OutcomeView, error) {
	var view OutcomeView
	err := c.post(ctx, fmt.Sprintf("/v1/agents/%s/clocks/%d/config", agent, clock),
		configSetBody{Enabled: enabled}, &view)
	return view, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{Code: resp.StatusCode}
		var body struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			reqErr.Status = body.Status
			reqErr.Message = body.Error
		}
		return reqErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("adminapi: decode response: %w", err)
	}
	return nil
}
