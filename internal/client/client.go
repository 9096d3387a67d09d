// Package client talks to the robot API and its admin API over HTTP.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"robot_control/internal/models"

	"github.com/go-resty/resty/v2"
)

// Defaults used by the movement helpers.
const (
	DefaultDurationMs = 100
	DefaultVelocity   = 150

	defaultTimeout = 5 * time.Second
)

// DryRunNotice ends the body SendCommand returns when Config.DryRun is set.
const DryRunNotice = "Dry run: command not sent"

// ErrNoAdminURL is returned by admin calls when Config.AdminURL is empty.
var ErrNoAdminURL = errors.New("admin url is not configured")

type Config struct {
	BaseURL  string // robot API, e.g. http://10.42.0.1
	AdminURL string // admin API, e.g. http://10.42.0.1:8081
	Timeout  time.Duration
	// DryRun makes SendCommand report the request it would make instead of
	// sending it. Admin calls are unaffected.
	DryRun bool
}

// RobotClient sends commands to one robot.
type RobotClient struct {
	HTTP   *resty.Client
	Config Config
}

// EventList mirrors the admin events response.
type EventList struct {
	Count  int                 `json:"count"`
	Events []models.RobotEvent `json:"events"`
}

// StatusError carries a non-2xx response. Body holds the page the robot sent,
// which for 404 is the usage help.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func New(cfg Config) *RobotClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	r := resty.New()
	r.SetTimeout(cfg.Timeout)
	return &RobotClient{HTTP: r, Config: cfg}
}

// SendCommand issues GET /?cmd=&dur=&vel= and returns the acknowledgment body.
// The robot answers before it starts the post-delay, so this returns while
// the robot is still moving.
func (c *RobotClient) SendCommand(ctx context.Context, cmd string, durationMs, velocity int) (string, error) {
	q := url.Values{}
	q.Set("cmd", cmd)
	q.Set("dur", strconv.Itoa(durationMs))
	q.Set("vel", strconv.Itoa(velocity))
	if c.Config.DryRun {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "GET " + c.Config.BaseURL + "/?" + q.Encode() + "<br>" + DryRunNotice, nil
	}
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		Get(c.Config.BaseURL + "/")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return resp.String(), nil
}

func (c *RobotClient) MoveForward(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, models.TokenMoveForward, DefaultDurationMs, DefaultVelocity)
}

func (c *RobotClient) MoveBackward(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, models.TokenMoveBackward, DefaultDurationMs, DefaultVelocity)
}

func (c *RobotClient) TurnRight(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, models.TokenTurnRight, DefaultDurationMs, DefaultVelocity)
}

func (c *RobotClient) TurnLeft(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, models.TokenTurnLeft, DefaultDurationMs, DefaultVelocity)
}

func (c *RobotClient) Park(ctx context.Context) (string, error) {
	return c.SendCommand(ctx, models.TokenPark, DefaultDurationMs, DefaultVelocity)
}

// State fetches the admin state snapshot.
func (c *RobotClient) State(ctx context.Context) (models.RobotState, error) {
	var st models.RobotState
	if c.Config.AdminURL == "" {
		return st, ErrNoAdminURL
	}
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetResult(&st).
		Get(c.Config.AdminURL + "/api/v1/state")
	if err != nil {
		return st, err
	}
	if resp.IsError() {
		return st, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return st, nil
}

// Events lists journal entries, optionally filtered by type.
func (c *RobotClient) Events(ctx context.Context, typ string) ([]models.RobotEvent, error) {
	if c.Config.AdminURL == "" {
		return nil, ErrNoAdminURL
	}
	var out EventList
	req := c.HTTP.R().
		SetContext(ctx).
		SetResult(&out)
	if typ != "" {
		req.SetQueryParam("type", typ)
	}
	resp, err := req.Get(c.Config.AdminURL + "/api/v1/events")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return out.Events, nil
}
