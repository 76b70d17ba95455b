// Package live is a Go client for following a robot's status in real time:
// an initial snapshot fetched over the REST API, then updates streamed from
// the status topic.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"
	"github.com/iayvob/palboti-backend/internal/mqtt"
)

// Channel is the slice of the message-channel client the live client uses
type Channel interface {
	Subscribe(topic string, handler mqtt.Handler) (*mqtt.Registration, error)
}

// Options configures a live client
type Options struct {
	// BaseURL is the API server root, e.g. "http://localhost:8080"
	BaseURL string
	// Token is the JWT sent as a Bearer token on snapshot requests
	Token string
	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
	// Channel is a connected message-channel client
	Channel Channel
	// Buffer is the update channel capacity (default 16). When a consumer
	// falls behind, the oldest pending update is dropped.
	Buffer int
}

// Client follows robots over the API plus the status topic
type Client struct {
	opts Options
}

// NewClient creates a live client
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.Channel == nil {
		return nil, fmt.Errorf("message channel is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	return &Client{opts: opts}, nil
}

// Subscription is one live feed for a single robot. Read Updates until it
// is closed; Errs carries non-fatal decode problems.
type Subscription struct {
	// Snapshot is the robot's state at subscribe time
	Snapshot *model.Robot

	updates chan mqtt.StatusMessage
	errs    chan error

	mu     sync.Mutex
	closed bool
	reg    *mqtt.Registration
}

// Updates returns the stream of status snapshots for the robot
func (s *Subscription) Updates() <-chan mqtt.StatusMessage {
	return s.updates
}

// Errs returns non-fatal errors encountered while decoding updates
func (s *Subscription) Errs() <-chan error {
	return s.errs
}

// Close stops the feed and closes both channels. Safe to call twice.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reg.Cancel()
	close(s.updates)
	close(s.errs)
}

// Subscribe fetches the robot's current state and starts streaming its
// status updates. Updates for other robots on the shared topic are
// filtered out.
func (c *Client) Subscribe(ctx context.Context, robotID string) (*Subscription, error) {
	if robotID == "" {
		return nil, fmt.Errorf("robot id is required")
	}

	snapshot, err := c.fetchSnapshot(ctx, robotID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		Snapshot: snapshot,
		updates:  make(chan mqtt.StatusMessage, c.opts.Buffer),
		errs:     make(chan error, 1),
	}

	reg, err := c.opts.Channel.Subscribe(mqtt.TopicRobotStatus, func(_ string, payload []byte) {
		sub.deliver(robotID, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to status topic: %w", err)
	}
	sub.reg = reg

	return sub, nil
}

// deliver filters and forwards one status payload
func (s *Subscription) deliver(robotID string, payload []byte) {
	var msg mqtt.StatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.reportErr(fmt.Errorf("malformed status update: %w", err))
		return
	}
	if msg.ID != robotID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.updates <- msg:
			return
		default:
			// Full buffer: drop the oldest update to keep the feed current
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

func (s *Subscription) reportErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

// fetchSnapshot loads the robot over the REST API
func (c *Client) fetchSnapshot(ctx context.Context, robotID string) (*model.Robot, error) {
	url := fmt.Sprintf("%s/api/v1/robots/%s", c.opts.BaseURL, robotID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}
	if body.Code != httpx.CodeSuccess {
		return nil, fmt.Errorf("snapshot request rejected: %s (code %d)", body.Message, body.Code)
	}

	var robot model.Robot
	if err := json.Unmarshal(body.Data, &robot); err != nil {
		return nil, fmt.Errorf("failed to decode robot snapshot: %w", err)
	}
	return &robot, nil
}
