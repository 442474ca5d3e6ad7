package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
)

type recordedRequest struct {
	Method    string
	Path      string
	Query     map[string]string
	Body      string
	Auth      string
	RequestID string
}

// backend is a scripted HomyTech backend.
type backend struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter)
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{routes: map[string]func(w http.ResponseWriter){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     q,
			Body:      string(body),
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-ID"),
		})
		route := b.routes[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if route == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
			return
		}
		route(w)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) on(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (b *backend) last(t *testing.T) recordedRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return b.requests[len(b.requests)-1]
}

func TestClient_LatestLights(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodGet, "/api/latest-state/light", http.StatusOK,
		`{"lights":[{"light_id":2,"user":"Ann","action":"on","timestamp":"2026-03-01T08:00:00+07:00"}]}`)

	c := New(Config{BaseURL: srv.URL, Token: "tok", ReadTimeout: time.Second})
	got, err := c.LatestLights(context.Background())
	if err != nil {
		t.Fatalf("LatestLights() error = %v", err)
	}
	if len(got.Lights) != 1 || got.Lights[0].LightID != 2 || got.Lights[0].Action != "on" {
		t.Errorf("LatestLights() = %+v", got)
	}

	req := b.last(t)
	if req.Auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", req.Auth)
	}
	if req.RequestID == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestClient_EmptyDeviceRecord(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodGet, "/api/latest-state/door", http.StatusOK, `{}`)

	got, err := New(Config{BaseURL: srv.URL}).LatestDoor(context.Background())
	if err != nil {
		t.Fatalf("LatestDoor() error = %v", err)
	}
	if !got.Empty() {
		t.Errorf("LatestDoor() = %+v, want empty", got)
	}
}

func TestClient_StatusError(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodGet, "/api/latest-state/clothesline", http.StatusInternalServerError, `{"detail":"Error: db down"}`)

	_, err := New(Config{BaseURL: srv.URL}).LatestClothesline(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("error = %v, want ErrUnexpectedStatus", err)
	}
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error %T is not *StatusError", err)
	}
	if serr.Status != http.StatusInternalServerError || serr.Detail != "Error: db down" {
		t.Errorf("StatusError = %+v", serr)
	}
}

func TestClient_RequestFailed(t *testing.T) {
	_, srv := newBackend(t)
	srv.Close()

	err := New(Config{BaseURL: srv.URL}).SyncState(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("error = %v, want ErrRequestFailed", err)
	}
}

func TestClient_InvalidResponse(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodGet, "/api/light-usage/hourly", http.StatusOK, `{"data":"soon"}`)

	_, err := New(Config{BaseURL: srv.URL}).HourlyUsage(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestClient_Logs(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodGet, "/api/logs/light", http.StatusOK,
		`{"logs":[{"id":"a1","user":"Ann","action":"on","timestamp":"2026-03-01T08:00:00","light_id":3}],"total":23}`)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	page, err := New(Config{BaseURL: srv.URL}).Logs(context.Background(), device.CategoryLight, LogQuery{
		Page: 3, Limit: 10, User: "Ann", LightID: 3, From: from,
	})
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if page.Total != 23 || len(page.Logs) != 1 || page.Logs[0].LightID != 3 {
		t.Errorf("Logs() = %+v", page)
	}

	q := b.last(t).Query
	want := map[string]string{
		"page": "3", "limit": "10", "user": "Ann", "light_id": "3", "from_date": "2026-03-01T00:00:00Z",
	}
	for k, v := range want {
		if q[k] != v {
			t.Errorf("query %s = %q, want %q", k, q[k], v)
		}
	}
	if _, ok := q["to_date"]; ok {
		t.Error("to_date sent although unset")
	}
}

func TestClient_LogsRejectsAlert(t *testing.T) {
	_, srv := newBackend(t)
	_, err := New(Config{BaseURL: srv.URL}).Logs(context.Background(), device.CategoryAlert, LogQuery{Page: 1})
	if !errors.Is(err, device.ErrUnknownCategory) {
		t.Errorf("error = %v, want ErrUnknownCategory", err)
	}
}

func TestClient_Commands(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		call     func(c *Client) (Ack, error)
		wantBody map[string]string
	}{
		{
			name:     "light",
			path:     "/api/light/2",
			call:     func(c *Client) (Ack, error) { return c.SetLight(context.Background(), 2, Command{User: "Ann", Action: "on"}) },
			wantBody: map[string]string{"user": "Ann", "action": "on"},
		},
		{
			name:     "door",
			path:     "/api/door/",
			call:     func(c *Client) (Ack, error) { return c.SetDoor(context.Background(), Command{User: "Ann", Action: "close"}) },
			wantBody: map[string]string{"user": "Ann", "action": "close"},
		},
		{
			name:     "clothesline",
			path:     "/api/clothesline/",
			call:     func(c *Client) (Ack, error) { return c.SetClothesline(context.Background(), Command{User: "Ann", Action: "extend"}) },
			wantBody: map[string]string{"user": "Ann", "action": "extend"},
		},
		{
			name:     "mode",
			path:     "/api/clothesline/mode",
			call:     func(c *Client) (Ack, error) { return c.SetClotheslineMode(context.Background(), "manual") },
			wantBody: map[string]string{"mode": "manual"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, srv := newBackend(t)
			b.on(http.MethodPost, tt.path, http.StatusOK, `{"message":"ok"}`)

			ack, err := tt.call(New(Config{BaseURL: srv.URL}))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if ack.Message != "ok" {
				t.Errorf("Message = %q", ack.Message)
			}

			var body map[string]string
			if err := json.Unmarshal([]byte(b.last(t).Body), &body); err != nil {
				t.Fatalf("request body not JSON: %v", err)
			}
			for k, v := range tt.wantBody {
				if body[k] != v {
					t.Errorf("body[%s] = %q, want %q", k, body[k], v)
				}
			}
		})
	}
}

func TestClient_Login(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, "/api/login", http.StatusOK, `{"access_token":"abc","token_type":"bearer","name":"Ann"}`)
	b.on(http.MethodPost, "/api/sync-state", http.StatusOK, `{"message":"ok"}`)

	c := New(Config{BaseURL: srv.URL})
	res, err := c.Login(context.Background(), Credentials{Email: "ann@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Name != "Ann" {
		t.Errorf("Name = %q, want Ann", res.Name)
	}

	if err := c.SyncState(context.Background()); err != nil {
		t.Fatalf("SyncState() error = %v", err)
	}
	if got := b.last(t).Auth; got != "Bearer abc" {
		t.Errorf("Authorization after login = %q, want Bearer abc", got)
	}
}

func TestClient_LoginWithoutToken(t *testing.T) {
	b, srv := newBackend(t)
	b.on(http.MethodPost, "/api/login", http.StatusOK, `{"name":"Ann"}`)

	if _, err := New(Config{BaseURL: srv.URL}).Login(context.Background(), Credentials{}); !errors.Is(err, ErrNoToken) {
		t.Errorf("Login() error = %v, want ErrNoToken", err)
	}
}

func TestDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"action harus on atau off"}`, "action harus on atau off"},
		{`{"detail":[{"loc":["body","user"]}]}`, `[{"loc":["body","user"]}]`},
		{"  plain failure \n", "plain failure"},
	}
	for _, tt := range tests {
		if got := detail([]byte(tt.body)); got != tt.want {
			t.Errorf("detail(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
