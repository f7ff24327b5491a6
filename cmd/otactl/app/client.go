package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	"github.com/autopeer-io/ota-backend/pkg/options"
)

// Client talks to the control surface of a local ota-backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient dials o.Addr over o.Network, so both tcp and unix sockets work.
func NewClient(o *options.HttpOptions) *Client {
	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, o.Network, o.Addr)
		},
	}

	host := o.Addr
	if o.Network == "unix" {
		host = "ota-backend"
	}

	return &Client{
		baseURL: "http://" + host,
		http:    &http.Client{Transport: transport, Timeout: o.Timeout},
	}
}

func (c *Client) Status(ctx context.Context) (*ota.StatusResponse, error) {
	var resp ota.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/ota/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Start(ctx context.Context, req ota.StartRequest) (*ota.StartResponse, error) {
	var resp ota.StartResponse
	if err := c.do(ctx, http.MethodPost, "/ota/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Reboot(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/ota/reboot", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var e struct {
			Detail string `json:"detail"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Detail != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Detail)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
