// Package weatherlink is an HTTP client for the Davis WeatherLink cloud API,
// covering the legacy v1 NoaaExt endpoint and the v2 station, sensor and
// current-conditions endpoints.
package weatherlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURLV1 = "https://api.weatherlink.com/v1"
	DefaultBaseURLV2 = "https://api.weatherlink.com/v2"
	DefaultTimeout   = 10 * time.Second

	maxErrorBody = 256
)

// Credentials holds both credential sets; only the ones matching the
// client's API version are sent.
type Credentials struct {
	Username  string
	Password  string
	APIToken  string
	APIKey    string
	APISecret string
}

// Client fetches raw payloads from WeatherLink.
type Client struct {
	http    *resty.Client
	version observation.APIVersion
	creds   Credentials
	baseV1  string
	baseV2  string
	timeout time.Duration
	hc      *http.Client
	logger  *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the API roots. Empty values keep the defaults.
func WithBaseURLs(v1, v2 string) Option {
	return func(c *Client) {
		if v1 != "" {
			c.baseV1 = strings.TrimRight(v1, "/")
		}
		if v2 != "" {
			c.baseV2 = strings.TrimRight(v2, "/")
		}
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithLogger routes resty's own warnings through logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the given API version.
func New(version observation.APIVersion, creds Credentials, opts ...Option) *Client {
	c := &Client{
		version: version,
		creds:   creds,
		baseV1:  DefaultBaseURLV1,
		baseV2:  DefaultBaseURLV2,
		timeout: DefaultTimeout,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.hc != nil {
		c.http = resty.NewWithClient(c.hc)
	} else {
		c.http = resty.New()
	}
	c.http.
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetLogger(c.logger)
	return c
}

// Version returns the API version this client speaks.
func (c *Client) Version() observation.APIVersion {
	return c.version
}

// FetchCurrent returns the raw current-conditions payload. stationID is
// ignored for v1, which always describes the account's single console.
func (c *Client) FetchCurrent(ctx context.Context, stationID int) ([]byte, error) {
	switch c.version {
	case observation.APIv1:
		return c.FetchNoaaExt(ctx)
	case observation.APIv2:
		return c.get(ctx, "current", c.baseV2+"/current/{stationID}", map[string]string{
			"stationID": strconv.Itoa(stationID),
		})
	}
	return nil, fmt.Errorf("%w: %q", observation.ErrUnsupportedAPIVersion, c.version)
}

// FetchNoaaExt calls the v1 NoaaExt endpoint. The v1 API only accepts
// credentials as query parameters.
func (c *Client) FetchNoaaExt(ctx context.Context) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":     c.creds.Username,
			"pass":     c.creds.Password,
			"apiToken": c.creds.APIToken,
		})
	return c.do(req, "NoaaExt", c.baseV1+"/NoaaExt.json")
}

// Stations lists every station visible to the v2 key.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	body, err := c.get(ctx, "stations", c.baseV2+"/stations", nil)
	if err != nil {
		return nil, err
	}

	var resp stationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stations response: %w", err)
	}
	return resp.Stations, nil
}

// Station fetches one station's metadata.
func (c *Client) Station(ctx context.Context, stationID int) (*Station, error) {
	body, err := c.get(ctx, "station", c.baseV2+"/stations/{stationID}", map[string]string{
		"stationID": strconv.Itoa(stationID),
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %d", ErrStationNotFound, stationID)
		}
		return nil, err
	}

	var resp stationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode station response: %w", err)
	}
	for i := range resp.Stations {
		if resp.Stations[i].StationID == stationID {
			return &resp.Stations[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrStationNotFound, stationID)
}

// Sensors returns metadata for every sensor on the account. Callers narrow
// it with observation.FilterStation.
func (c *Client) Sensors(ctx context.Context) ([]observation.SensorDescriptor, error) {
	body, err := c.get(ctx, "sensors", c.baseV2+"/sensors", nil)
	if err != nil {
		return nil, err
	}

	var resp sensorsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode sensors response: %w", err)
	}
	return resp.Sensors, nil
}

func (c *Client) get(ctx context.Context, endpoint, rawURL string, pathParams map[string]string) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("api-key", c.creds.APIKey).
		SetHeader("X-Api-Secret", c.creds.APISecret)
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	return c.do(req, endpoint, rawURL)
}

func (c *Client) do(req *resty.Request, endpoint, rawURL string) ([]byte, error) {
	resp, err := req.Get(rawURL)
	if err != nil {
		// url.Error embeds the full URL, which carries v1 credentials.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCannotConnect, endpoint, err)
	}

	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return resp.Body(), nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, &StatusError{Endpoint: endpoint, StatusCode: code, Body: errorMessage(resp.Body()), Err: ErrInvalidAuth}
	default:
		return nil, &StatusError{Endpoint: endpoint, StatusCode: code, Body: errorMessage(resp.Body()), Err: ErrCannotConnect}
	}
}

// errorMessage prefers the v2 error envelope's message and otherwise returns
// a truncated body.
func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
