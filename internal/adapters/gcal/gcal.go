// Package gcal is a minimal calendar REST client used to mirror reminders
// into an external calendar. Every caller treats it as best-effort; nothing
// here gates the reminder lifecycle.
package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "github.com/amacapozzi/memorial-ai-bot-sub000/pkg/logx"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

type Config struct {
	BaseURL    string // default: Google Calendar v3
	CalendarID string
	Token      string // bearer token
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: 8 * time.Second}, log: log}
}

type event struct {
	ID      string    `json:"id,omitempty"`
	Summary string    `json:"summary,omitempty"`
	Start   eventTime `json:"start"`
	End     eventTime `json:"end"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
}

// CreateEvent inserts a half-hour event at start and returns its id.
func (c *Client) CreateEvent(ctx context.Context, title string, start time.Time) (string, error) {
	var out event
	err := c.do(ctx, http.MethodPost, c.eventsURL(""), event{
		Summary: title,
		Start:   eventTime{DateTime: start.Format(time.RFC3339)},
		End:     eventTime{DateTime: start.Add(30 * time.Minute).Format(time.RFC3339)},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar insert returned no event id")
	}
	return out.ID, nil
}

// UpdateEvent moves an existing event to a new start.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, start time.Time) error {
	return c.do(ctx, http.MethodPatch, c.eventsURL(eventID), event{
		Start: eventTime{DateTime: start.Format(time.RFC3339)},
		End:   eventTime{DateTime: start.Add(30 * time.Minute).Format(time.RFC3339)},
	}, nil)
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, c.eventsURL(eventID), nil, nil)
}

func (c *Client) eventsURL(eventID string) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/calendars/" + url.PathEscape(c.cfg.CalendarID) + "/events"
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return fmt.Errorf("calendar %s failed: %s (http=%d)", method, apiErr.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("calendar %s failed: http=%d", method, resp.StatusCode)
	}

	c.log.Debug("calendar call ok", logx.String("method", method), logx.Int("status", resp.StatusCode))

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
