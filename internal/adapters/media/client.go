// Package media talks to the external real-time media service over HTTP.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	jsoniter "github.com/json-iterator/go"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNotConfigured = errors.New("media service not configured")

// ServiceError is a non-2xx answer from the media service. Message is the
// service's own human-readable reason, when it sent one.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("media service: status %d", e.Status)
	}
	return fmt.Sprintf("media service: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

var _ core.MediaService = (*Client)(nil)

func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// Request paths are relative so they join onto a mount prefix.
	if baseURL != "" {
		baseURL = strings.TrimRight(baseURL, "/") + "/"
	}
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool { return c != nil && c.baseURL != "" }

func (c *Client) CreateRoom(ctx context.Context, sessionID domain.SessionID) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}
	err := c.do(ctx, c.request("rooms").
		BodyJSON(map[string]string{"sessionId": string(sessionID)}).
		ToJSON(&resp))
	if err != nil {
		return "", err
	}
	if resp.RoomID == "" {
		return "", &ServiceError{Status: http.StatusOK, Message: "empty room id"}
	}
	return resp.RoomID, nil
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, c.request("rooms/"+url.PathEscape(roomID)).Delete())
}

func (c *Client) StartRecording(ctx context.Context, req core.StartRecordingRequest) error {
	return c.do(ctx, c.request("rooms/"+url.PathEscape(req.RoomID)+"/recording/start").BodyJSON(req))
}

func (c *Client) StopRecording(ctx context.Context, roomID string) error {
	return c.do(ctx, c.request("rooms/"+url.PathEscape(roomID)+"/recording/stop").Post())
}

func (c *Client) request(path string) *requests.Builder {
	rb := requests.URL(c.baseURL).
		Path(path).
		Client(c.http).
		AddValidator(checkStatus)
	if c.secret != "" {
		rb = rb.Header("X-Callback-Secret", c.secret)
	}
	return rb
}

func (c *Client) do(ctx context.Context, rb *requests.Builder) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := rb.Fetch(ctx); err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return fmt.Errorf("media service unreachable: %w", err)
	}
	return nil
}

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	svcErr := &ServiceError{Status: res.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		svcErr.Message = payload.Error
		if svcErr.Message == "" {
			svcErr.Message = payload.Message
		}
	}
	return svcErr
}

func (e *ServiceError) UserMessage() string { return e.Message }
