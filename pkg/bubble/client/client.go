package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client issues requests against the data api of a single application.
// Every non successful response is returned as an error.
type Client interface {
	Get(ctx context.Context, path string, query map[string]any) ([]byte, error)
	Post(ctx context.Context, path string, query map[string]any, body any) ([]byte, error)
	Put(ctx context.Context, path string, query map[string]any, body any) ([]byte, error)
	Patch(ctx context.Context, path string, query map[string]any, body any) ([]byte, error)
	Delete(ctx context.Context, path string, query map[string]any) ([]byte, error)

	// WithEncoder returns a client that shares configuration with this one
	// but serializes requests with enc
	WithEncoder(enc Encoder) Client
}

func Debug(enabled string) func(*bubbleClient) {
	return func(c *bubbleClient) {
		c.debug = (enabled == "true")
	}
}

// Headers adds default headers to every request. An Authorization header
// given here takes precedence over the bearer token.
func Headers(headers map[string]string) func(*bubbleClient) {
	return func(c *bubbleClient) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

func HTTPClient(httpClient *http.Client) func(*bubbleClient) {
	return func(c *bubbleClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func Encoding(enc Encoder) func(*bubbleClient) {
	return func(c *bubbleClient) {
		if enc != nil {
			c.encoder = enc
		}
	}
}

func NewClient(baseURL, token string, options ...func(*bubbleClient)) Client {
	c := &bubbleClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: http.Header{},
		encoder: DefaultEncoder,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		debug: false,
	}

	for _, option := range options {
		option(c)
	}

	if c.headers.Get("Authorization") == "" && token != "" {
		c.headers.Set("Authorization", "Bearer "+token)
	}

	return c
}

type bubbleClient struct {
	baseURL    string
	headers    http.Header
	encoder    Encoder
	httpClient *http.Client
	debug      bool
}

func (c bubbleClient) WithEncoder(enc Encoder) Client {
	if enc == nil {
		return &c
	}

	c.encoder = enc
	return &c
}

func (c bubbleClient) Get(ctx context.Context, path string, query map[string]any) ([]byte, error) {
	return c.callDataAPI(ctx, http.MethodGet, path, query, nil)
}

func (c bubbleClient) Post(ctx context.Context, path string, query map[string]any, body any) ([]byte, error) {
	return c.callDataAPI(ctx, http.MethodPost, path, query, body)
}

func (c bubbleClient) Put(ctx context.Context, path string, query map[string]any, body any) ([]byte, error) {
	return c.callDataAPI(ctx, http.MethodPut, path, query, body)
}

func (c bubbleClient) Patch(ctx context.Context, path string, query map[string]any, body any) ([]byte, error) {
	return c.callDataAPI(ctx, http.MethodPatch, path, query, body)
}

func (c bubbleClient) Delete(ctx context.Context, path string, query map[string]any) ([]byte, error) {
	return c.callDataAPI(ctx, http.MethodDelete, path, query, nil)
}

func (c bubbleClient) callDataAPI(ctx context.Context, method, path string, query map[string]any, body any) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("undefined base url, the client must be configured before use (%w)", errors.ErrNotConfigured)
	}

	values, err := EncodeQuery(query, c.encoder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %s (%w)", err.Error(), errors.ErrRequest)
	}

	endpoint := c.baseURL + path
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}

	var requestBody io.Reader
	if body != nil {
		b, err := c.encoder.Encode(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %s (%w)", err.Error(), errors.ErrRequest)
		}
		requestBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	for header, headerValue := range c.headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		contentType := resp.Header.Get("Content-Type")
		return nil, errors.NewErrorFromResponse(resp.StatusCode, contentType, respBody)
	}

	return respBody, nil
}
