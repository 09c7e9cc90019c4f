package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the procedures over HTTP.  Authenticated procedures take
// the caller's session cookies explicitly so the pages can forward the
// browser's cookies.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a client for the server at cfg.BaseURL.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimSuffix(cfg.BaseURL, "/"), httpClient: hc}
}

// CreatePayloadUser calls auth.createPayloadUser.
func (c *Client) CreatePayloadUser(ctx context.Context, in Credentials) (CreateAccountOutput, error) {
	var out CreateAccountOutput
	_, err := c.call(ctx, http.MethodPost, ProcCreatePayloadUser, nil, in, nil, &out)
	return out, err
}

// VerifyEmail calls auth.verifyEmail.
func (c *Client) VerifyEmail(ctx context.Context, token string) (SuccessOutput, error) {
	var out SuccessOutput
	q := url.Values{"token": {token}}
	_, err := c.call(ctx, http.MethodGet, ProcVerifyEmail, q, nil, nil, &out)
	return out, err
}

// SignIn calls auth.signIn and returns the session cookies set by the
// server so callers can hand them to the browser.
func (c *Client) SignIn(ctx context.Context, in Credentials) (SuccessOutput, []*http.Cookie, error) {
	var out SuccessOutput
	resp, err := c.call(ctx, http.MethodPost, ProcSignIn, nil, in, nil, &out)
	if err != nil {
		return out, nil, err
	}
	return out, resp.Cookies(), nil
}

// CreateSession calls payment.createSession.
func (c *Client) CreateSession(ctx context.Context, in CreateSessionInput, session []*http.Cookie) (CreateSessionOutput, error) {
	var out CreateSessionOutput
	_, err := c.call(ctx, http.MethodPost, ProcCreateSession, nil, in, session, &out)
	return out, err
}

// PollOrderStatus calls payment.pollOrderStatus.
func (c *Client) PollOrderStatus(ctx context.Context, orderID string, session []*http.Cookie) (OrderStatusOutput, error) {
	var out OrderStatusOutput
	q := url.Values{"orderId": {orderID}}
	_, err := c.call(ctx, http.MethodGet, ProcPollOrderStatus, q, nil, session, &out)
	return out, err
}

// GetInfiniteProducts calls getInfiniteProducts.
func (c *Client) GetInfiniteProducts(ctx context.Context, in InfiniteProductsInput) (InfiniteProductsOutput, error) {
	var out InfiniteProductsOutput
	_, err := c.call(ctx, http.MethodGet, ProcGetInfiniteProducts, ProductValues(in), nil, nil, &out)
	return out, err
}

// ProductValues encodes a listing input as query parameters.
func ProductValues(in InfiniteProductsInput) url.Values {
	q := url.Values{}
	if in.Limit > 0 {
		q.Set("limit", strconv.Itoa(in.Limit))
	}
	if in.Cursor > 0 {
		q.Set("cursor", strconv.Itoa(in.Cursor))
	}
	if in.Query.Category != "" {
		q.Set("category", in.Query.Category)
	}
	if in.Query.Sort != "" {
		q.Set("sort", in.Query.Sort)
	}
	return q
}

type clientIPKey struct{}

// WithClientIP marks calls made with ctx as made on behalf of ip.  The
// address travels in X-Forwarded-For and X-Real-IP so rate limits and logs
// on the procedure side see the browser rather than the caller's host.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

func (c *Client) call(ctx context.Context, method, proc string, query url.Values, body any, cookies []*http.Cookie, out any) (*http.Response, error) {
	u := c.baseURL + Path(proc)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s input: %w", proc, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", proc, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ip := clientIP(ctx); ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
		req.Header.Set("X-Real-IP", ip)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", proc, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", proc, err)
	}

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Code != "" {
			return resp, env.Error
		}
		return resp, NewError(CodeFromStatus(resp.StatusCode), "", fmt.Errorf("%s: status %d", proc, resp.StatusCode))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decode %s output: %w", proc, err)
		}
	}
	return resp, nil
}
