package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/nerrad567/homytech-sync/internal/device"
)

// maxDetail bounds how much of an error body is kept on a StatusError.
const maxDetail = 256

// Logger is the logging interface used by the client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, for example http://hub.local:8000.
	BaseURL string

	// Token is the bearer token sent on every request. May be empty.
	Token string

	// UserAgent is sent on every request.
	UserAgent string

	// ReadTimeout bounds each GET. Commands never get a client timeout.
	ReadTimeout time.Duration

	Logger Logger
}

// Client calls the HomyTech REST backend.
//
// Thread Safety:
//   - Request methods are safe for concurrent use.
//   - SetToken must not race with in-flight requests.
type Client struct {
	http        *resty.Client
	readTimeout time.Duration
	logger      Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	r := resty.New()
	r.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	r.SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		r.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Token != "" {
		r.SetAuthToken(cfg.Token)
	}

	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})
	r.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("backend call",
			"method", resp.Request.Method,
			"path", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
			"request_id", resp.Request.Header.Get("X-Request-ID"),
		)
		return nil
	})

	return &Client{
		http:        r,
		readTimeout: cfg.ReadTimeout,
		logger:      logger,
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Login exchanges credentials for a bearer token and adopts it.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var out LoginResult
	if err := c.post(ctx, pathLogin, creds, &out); err != nil {
		return LoginResult{}, err
	}
	if out.AccessToken == "" {
		return LoginResult{}, ErrNoToken
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

// LatestLights fetches the most recent record of every light.
func (c *Client) LatestLights(ctx context.Context) (LightsState, error) {
	var out LightsState
	err := c.get(ctx, pathLatestState+string(device.CategoryLight), nil, &out)
	return out, err
}

// LatestDoor fetches the most recent door record.
func (c *Client) LatestDoor(ctx context.Context) (DeviceRecord, error) {
	var out DeviceRecord
	err := c.get(ctx, pathLatestState+string(device.CategoryDoor), nil, &out)
	return out, err
}

// LatestClothesline fetches the most recent clothesline record.
func (c *Client) LatestClothesline(ctx context.Context) (DeviceRecord, error) {
	var out DeviceRecord
	err := c.get(ctx, pathLatestState+string(device.CategoryClothesline), nil, &out)
	return out, err
}

// SyncState asks the backend to push the stored state to the devices.
func (c *Client) SyncState(ctx context.Context) error {
	return c.post(ctx, pathSyncState, nil, nil)
}

// Logs fetches one page of a category's log.
func (c *Client) Logs(ctx context.Context, category device.Category, q LogQuery) (LogPage, error) {
	if !category.Stateful() {
		return LogPage{}, fmt.Errorf("%w: %q has no log", device.ErrUnknownCategory, category)
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.User != "" {
		params.Set("user", q.User)
	}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.Source != "" {
		params.Set("source", q.Source)
	}
	if q.LightID > 0 {
		params.Set("light_id", strconv.Itoa(q.LightID))
	}
	if !q.From.IsZero() {
		params.Set("from_date", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		params.Set("to_date", q.To.UTC().Format(time.RFC3339))
	}

	var out LogPage
	err := c.get(ctx, pathLogs+string(category), params, &out)
	return out, err
}

// HourlyUsage fetches minutes-on per light for each of the last hours.
func (c *Client) HourlyUsage(ctx context.Context) (HourlyUsage, error) {
	var out HourlyUsage
	err := c.get(ctx, pathHourlyUsage, nil, &out)
	return out, err
}

// SetLight commands light id (1-based) on or off.
func (c *Client) SetLight(ctx context.Context, id int, cmd Command) (Ack, error) {
	var out Ack
	err := c.post(ctx, pathLight+strconv.Itoa(id), cmd, &out)
	return out, err
}

// SetDoor commands the door open or closed.
func (c *Client) SetDoor(ctx context.Context, cmd Command) (Ack, error) {
	var out Ack
	err := c.post(ctx, pathDoor, cmd, &out)
	return out, err
}

// SetClothesline commands the clothesline to extend or retract.
func (c *Client) SetClothesline(ctx context.Context, cmd Command) (Ack, error) {
	var out Ack
	err := c.post(ctx, pathClothesline, cmd, &out)
	return out, err
}

// SetClotheslineMode switches the clothesline between manual and auto.
func (c *Client) SetClotheslineMode(ctx context.Context, mode string) (Ack, error) {
	var out Ack
	err := c.post(ctx, pathClotheslineM, modeCommand{Mode: mode}, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}

	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	return c.execute(req, http.MethodGet, path, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return c.execute(req, http.MethodPost, path, out)
}

// execute sends req and decodes a 2xx JSON body into out.
func (c *Client) execute(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}

	if !resp.IsSuccess() {
		serr := &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode(),
			Detail: detail(resp.Body()),
		}
		c.logger.Warn("backend rejected request",
			"method", method,
			"path", path,
			"status", serr.Status,
			"detail", serr.Detail,
		)
		return serr
	}

	if out == nil {
		return nil
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
	}
	return nil
}

// detail extracts a readable message from an error body.
func detail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Detail != nil {
		if s, ok := eb.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(eb.Detail); err == nil {
			return truncate(string(b))
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	return s[:maxDetail] + "..."
}
