// Package agentclient reaches a running agent daemon through its lockfile.
package agentclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/julianstephens/hydrate/internal/constants"
	hyerrors "github.com/julianstephens/hydrate/internal/errors"
	"github.com/julianstephens/hydrate/internal/lockfile"
	"github.com/julianstephens/hydrate/internal/logger"
	"github.com/julianstephens/hydrate/internal/models"
	"github.com/julianstephens/hydrate/internal/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const eventBuffer = 16

// Client implements statesync.Link over the daemon's HTTP surface. The
// lockfile is read on every call so a restarted daemon is picked up.
type Client struct {
	lockPath    string
	processName string
	http        *http.Client
	dialer      *websocket.Dialer
	log         *log.Logger
}

func New(lockPath string) *Client {
	return &Client{
		lockPath:    lockPath,
		processName: constants.AgentProcessName,
		http:        &http.Client{Timeout: constants.NotifyTimeout},
		dialer:      &websocket.Dialer{HandshakeTimeout: constants.NotifyTimeout},
		log:         logger.Named("agentclient"),
	}
}

// Lock returns the running daemon's lock, or an error wrapping ErrAgentUnavailable.
func (c *Client) Lock() (lockfile.Lock, error) {
	lock, err := lockfile.Find(c.lockPath, c.processName)
	if err != nil {
		return lockfile.Lock{}, fmt.Errorf("%w: %v", hyerrors.ErrAgentUnavailable, err)
	}
	return lock, nil
}

// Available reports whether a daemon is running.
func (c *Client) Available() bool {
	_, err := c.Lock()
	return err == nil
}

// Send delivers a foreground envelope.
func (c *Client) Send(ctx context.Context, env protocol.Envelope) error {
	body, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, protocol.PathMessages, body, nil)
}

// Settings fetches the agent's copy of the reminder settings.
func (c *Client) Settings(ctx context.Context) (models.BackgroundSettings, error) {
	var s models.BackgroundSettings
	err := c.do(ctx, http.MethodGet, protocol.PathSettings, nil, &s)
	return s, err
}

// Check asks the agent to fire if a reminder is due.
func (c *Client) Check(ctx context.Context) (bool, error) {
	var res protocol.CheckResult
	err := c.do(ctx, http.MethodPost, protocol.PathCheck, nil, &res)
	return res.Fired, err
}

// Action reports a user action on an agent-raised notification.
func (c *Client) Action(ctx context.Context, notificationID string, action constants.ReminderAction) error {
	body, err := json.Marshal(protocol.ActionRequest{Action: action})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, protocol.ActionPath(notificationID), body, nil)
}

// Subscribe attaches to the agent's event stream. The channel closes when
// ctx is done or the connection drops.
func (c *Client) Subscribe(ctx context.Context) (<-chan protocol.Envelope, error) {
	lock, err := c.Lock()
	if err != nil {
		return nil, err
	}
	url := "ws" + strings.TrimPrefix(lock.BaseURL(), "http") + protocol.PathEvents
	header := http.Header{}
	header.Set(constants.SecretHeader, lock.Secret)

	conn, resp, err := c.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: event stream refused with status %d", hyerrors.ErrAgentUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", hyerrors.ErrAgentUnavailable, err)
	}

	out := make(chan protocol.Envelope, eventBuffer)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.log.Debug("Event stream ended", "error", err)
				return
			}
			env, err := protocol.Decode(data)
			if err != nil {
				c.log.Warn("Dropping malformed agent message", "error", err)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	lock, err := c.Lock()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, lock.BaseURL()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(constants.SecretHeader, lock.Secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", hyerrors.ErrAgentUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		if res.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("%w: %s", hyerrors.ErrAgentUnavailable, apiErr.Error)
		}
		return fmt.Errorf("agent %s %s failed with status %d: %s", method, path, res.StatusCode, apiErr.Error)
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}
