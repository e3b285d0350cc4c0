package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Connection interface {
	Request(ctx context.Context, endpoint *url.URL) (*http.Response, error)
}

type ClientHost struct {
	client *http.Client
	scheme string
	host   string
}

type Client struct {
	Connection Connection
	ApiKey     string
}

// Request fills in scheme and host, non 2xx responses are turned into errors
func (conn *ClientHost) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	endpoint.Scheme = conn.scheme
	endpoint.Host = conn.host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	res, err := conn.client.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("unexpected status %d from %s: %s", res.StatusCode, conn.host, body)
	}

	return res, nil
}

func ClientFactory(host string, apiKey string, timeout time.Duration) *Client {
	return NewClient("https", host, apiKey, timeout)
}

// NewClient is ClientFactory with an explicit scheme, used against local test servers
func NewClient(scheme, host, apiKey string, timeout time.Duration) *Client {
	client := &http.Client{
		Timeout: timeout,
	}

	clientHost := &ClientHost{
		client: client,
		scheme: scheme,
		host:   host,
	}

	return &Client{
		Connection: clientHost,
		ApiKey:     apiKey,
	}
}
