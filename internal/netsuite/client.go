package netsuite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Client wraps the SuiteTalk REST record endpoints used for sales orders.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	signer      *Signer
	limiter     *rate.Limiter
	concurrency int
	metrics     *Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSigner replaces the request signer, mainly for deterministic tests.
func WithSigner(s *Signer) Option {
	return func(c *Client) {
		if s != nil {
			c.signer = s
		}
	}
}

// WithConcurrency bounds the number of parallel line detail fetches.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRateLimit throttles outbound calls to perSecond requests. Zero disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithMetrics records call counts and latencies on the given metrics set.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient constructs a gateway client. baseURL is the record API root,
// e.g. https://<account>.suitetalk.api.netsuite.com/services/rest/record/v1.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		signer:      NewSigner(creds),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL derives the record API root for an account id.
func BaseURL(accountID string) string {
	host := strings.ToLower(strings.ReplaceAll(accountID, "_", "-"))
	return fmt.Sprintf("https://%s.suitetalk.api.netsuite.com/services/rest/record/v1", host)
}

// FetchOrder loads a sales order header.
func (c *Client) FetchOrder(ctx context.Context, id string) (*SalesOrder, error) {
	var order SalesOrder
	if _, err := c.do(ctx, "fetch_order", http.MethodGet, c.recordURL("salesOrder", id), nil, &order); err != nil {
		return nil, err
	}
	if order.ID == "" && order.TranID == "" {
		return nil, ErrNotFound
	}
	return &order, nil
}

// FetchOrderLines loads the item sublist and then every line's detail record.
// Lines come back in sublist order with Href set to the link they were read from.
func (c *Client) FetchOrderLines(ctx context.Context, id string) ([]OrderLine, error) {
	var collection struct {
		Items []struct {
			Links []Link `json:"links"`
		} `json:"items"`
	}
	if _, err := c.do(ctx, "fetch_lines", http.MethodGet, c.recordURL("salesOrder", id, "item"), nil, &collection); err != nil {
		return nil, err
	}

	hrefs := make([]string, 0, len(collection.Items))
	for _, entry := range collection.Items {
		if href := selfLink(entry.Links); href != "" {
			hrefs = append(hrefs, href)
		}
	}

	lines := make([]OrderLine, len(hrefs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, href := range hrefs {
		g.Go(func() error {
			line, err := c.FetchLine(gctx, href)
			if err != nil {
				return fmt.Errorf("fetch line %s: %w", href, err)
			}
			lines[i] = *line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

// FetchLine loads a single line by its href.
func (c *Client) FetchLine(ctx context.Context, href string) (*OrderLine, error) {
	var line OrderLine
	if _, err := c.do(ctx, "fetch_line", http.MethodGet, href, nil, &line); err != nil {
		return nil, err
	}
	line.Href = href
	return &line, nil
}

// PatchOrderHeader sends only the supplied header fields.
func (c *Client) PatchOrderHeader(ctx context.Context, id string, changes Patch) (PatchResult, error) {
	return c.patch(ctx, "patch_order", c.recordURL("salesOrder", id), changes)
}

// PatchOrderLine sends only the supplied line fields to the line's href.
func (c *Client) PatchOrderLine(ctx context.Context, href string, changes Patch) (PatchResult, error) {
	return c.patch(ctx, "patch_line", href, changes)
}

func (c *Client) patch(ctx context.Context, op, target string, changes Patch) (PatchResult, error) {
	resp, err := c.do(ctx, op, http.MethodPatch, target, changes, nil)
	if err != nil {
		return PatchResult{Success: false, Status: statusOf(err)}, err
	}
	return PatchResult{Success: true, Status: resp.status}, nil
}

// CreateOrder posts a new sales order and returns the id from the Location header.
func (c *Client) CreateOrder(ctx context.Context, header Patch) (string, error) {
	resp, err := c.do(ctx, "create_order", http.MethodPost, c.recordURL("salesOrder"), header, nil)
	if err != nil {
		return "", err
	}
	id := idFromLocation(resp.location)
	if id == "" {
		return "", &RemoteError{Status: resp.status, Message: "created order has no location reference"}
	}
	return id, nil
}

// CreateOrderLine adds a line to an existing order.
func (c *Client) CreateOrderLine(ctx context.Context, orderID string, line Patch) error {
	_, err := c.do(ctx, "create_line", http.MethodPost, c.recordURL("salesOrder", orderID, "item"), line, nil)
	return err
}

// DeleteOrderLine removes a line by its href.
func (c *Client) DeleteOrderLine(ctx context.Context, href string) error {
	_, err := c.do(ctx, "delete_line", http.MethodDelete, href, nil, nil)
	return err
}

// FetchCustomerAddresses loads the address book entries of a customer.
func (c *Client) FetchCustomerAddresses(ctx context.Context, customerID string) ([]Address, error) {
	var collection struct {
		Items []struct {
			Links []Link `json:"links"`
		} `json:"items"`
	}
	if _, err := c.do(ctx, "fetch_addresses", http.MethodGet, c.recordURL("customer", customerID, "addressBook"), nil, &collection); err != nil {
		return nil, err
	}
	addresses := make([]Address, len(collection.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, entry := range collection.Items {
		href := selfLink(entry.Links)
		if href == "" {
			continue
		}
		g.Go(func() error {
			var addr Address
			if _, err := c.do(gctx, "fetch_address", http.MethodGet, href, nil, &addr); err != nil {
				return err
			}
			addr.Href = href
			addresses[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := addresses[:0]
	for _, addr := range addresses {
		if addr.Href != "" {
			out = append(out, addr)
		}
	}
	return out, nil
}

type response struct {
	status   int
	location string
}

func (c *Client) do(ctx context.Context, op, method, target string, payload any, out any) (response, error) {
	var res response
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, transportError(err)
		}
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return res, fmt.Errorf("encode %s payload: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return res, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", c.signer.Authorization(method, target))
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(op, 0, time.Since(start))
		return res, transportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.observe(op, resp.StatusCode, time.Since(start))
	if err != nil {
		return res, transportError(err)
	}
	res.status = resp.StatusCode
	res.location = resp.Header.Get("Location")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, responseError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return res, nil
	}
	if env, ok := parseEnvelope(raw); ok && env.notFound() {
		return res, ErrNotFound
	} else if ok {
		return res, &RemoteError{Status: resp.StatusCode, Message: env.message()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return res, &RemoteError{Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return res, nil
}

func (c *Client) recordURL(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(strings.TrimSpace(p))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func selfLink(links []Link) string {
	for _, l := range links {
		if l.Rel == "self" && l.Href != "" {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

func idFromLocation(location string) string {
	location = strings.TrimRight(strings.TrimSpace(location), "/")
	if location == "" {
		return ""
	}
	return path.Base(location)
}

func statusOf(err error) int {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return 0
}
