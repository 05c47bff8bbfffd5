// Package client talks to a running AutoValuate dashboard over its JSON API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autovaluate/internal/storage"
	"autovaluate/internal/valuation"

	"github.com/go-resty/resty/v2"
)

// ErrOffline is returned when the server is running without a model.
var ErrOffline = errors.New("valuation server offline")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("autovaluate: %d %s", e.Status, e.Message)
}

// Is lets errors.Is match ErrOffline and ErrInvalidQuery on API errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrOffline:
		return e.Status == http.StatusServiceUnavailable
	case valuation.ErrInvalidQuery:
		return e.Status == http.StatusBadRequest
	}
	return false
}

type errorBody struct {
	Error string `json:"error"`
}

// Model is the server's description of the loaded artifacts.
type Model struct {
	Meta          *storage.Metadata  `json:"meta,omitempty"`
	History       []storage.Metadata `json:"history,omitempty"`
	ReferenceRows int                `json:"reference_rows"`
}

// Health is the server's liveness answer.
type Health struct {
	Status      string     `json:"status"`
	ModelLoaded bool       `json:"model_loaded"`
	TrainedAt   *time.Time `json:"trained_at,omitempty"`
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Valuate prices one query.
func (c *Client) Valuate(ctx context.Context, q valuation.Query) (*valuation.Report, error) {
	var report valuation.Report
	if err := c.do(ctx, http.MethodPost, "/api/valuation", q, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Options fetches the closed input sets.
func (c *Client) Options(ctx context.Context) (*valuation.Options, error) {
	var opts valuation.Options
	if err := c.do(ctx, http.MethodGet, "/api/options", nil, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Model fetches training metadata for the loaded artifacts.
func (c *Client) Model(ctx context.Context) (*Model, error) {
	var m Model
	if err := c.do(ctx, http.MethodGet, "/api/model", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	eb := &errorBody{}
	req := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(eb)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := eb.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}
