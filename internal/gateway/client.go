package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"enteliwatch/internal/metrics"
	"enteliwatch/internal/trend"
)

const (
	apiRootPath    = "/enteliweb/api/.bacnet"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Options parameterise the gateway client. Everything that was a
// module-level constant in older deployments lives here so multiple
// sites can be served from one process and tests can point at fixtures.
type Options struct {
	Host      string
	Site      string
	Device    string
	Username  string
	Password  string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to an EnteliWeb-style cloud gateway over its REST API.
// All requests carry the same precomputed basic-auth header.
type Client struct {
	opts       Options
	apiBase    string
	authHeader string
	client     *http.Client
	logger     zerolog.Logger
}

// New constructs a gateway client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// Plain HTTP is only ever used for gateways on a trusted LAN; an
	// unqualified host gets TLS.
	scheme := "https"
	host := strings.TrimSuffix(opts.Host, "/")
	if strings.HasPrefix(host, "http://") {
		scheme = "http"
		host = strings.TrimPrefix(host, "http://")
	} else {
		host = strings.TrimPrefix(host, "https://")
	}
	creds := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))

	return &Client{
		opts:       opts,
		apiBase:    fmt.Sprintf("%s://%s%s/%s/%s", scheme, host, apiRootPath, opts.Site, opts.Device),
		authHeader: "Basic " + creds,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "gateway").Logger(),
	}
}

// LogBufferURL is the paginated trend-log endpoint for an instance.
func (c *Client) LogBufferURL(instance int) string {
	return fmt.Sprintf("%s/trend-log,%d/log-buffer", c.apiBase, instance)
}

// ObjectURL addresses one property of a BACnet object reference such
// as "analog-input,301001".
func (c *Client) ObjectURL(objectRef, property string) string {
	return fmt.Sprintf("%s/%s/%s", c.apiBase, objectRef, property)
}

// FetchPage performs one log-buffer GET. params are attached only when
// supplied; continuation fetches pass just the format selector.
func (c *Client) FetchPage(ctx context.Context, rawURL string, params url.Values) (*trend.Page, error) {
	body, err := c.get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}

	var page trend.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &FormatError{URL: rawURL, Err: err}
	}
	return &page, nil
}

// PresentValue reads the current value of a monitored point.
func (c *Client) PresentValue(ctx context.Context, objectRef string) (Value, error) {
	target := c.ObjectURL(objectRef, "present-value")
	return c.valueAt(ctx, target)
}

// DeviceName reads the controller's object-name for display.
func (c *Client) DeviceName(ctx context.Context) (string, error) {
	target := fmt.Sprintf("%s/device,%s/object-name", c.apiBase, c.opts.Device)
	value, err := c.valueAt(ctx, target)
	if err != nil {
		return "", err
	}
	if name := value.Text(); name != "" {
		return name, nil
	}
	return "Device " + c.opts.Device, nil
}

func (c *Client) valueAt(ctx context.Context, target string) (Value, error) {
	body, err := c.get(ctx, target, url.Values{"alt": []string{"json"}})
	if err != nil {
		return Value{}, err
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Value{}, &FormatError{URL: target, Err: err}
	}
	return Value{raw: envelope.Value}, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	if params != nil {
		// Merge rather than replace: continuation URLs already carry
		// the gateway's accumulated query state.
		query := req.URL.Query()
		for key, values := range params {
			query[key] = values
		}
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "enteliwatch/1.0")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", rawURL).Msg("gateway request failed")
		return nil, &UpstreamError{URL: rawURL, StatusCode: resp.StatusCode, Body: snippet}
	}

	return body, nil
}

var _ trend.PageFetcher = (*Client)(nil)
