// Package dataapi reaches the document store through its HTTP data-access gateway
// (the Atlas Data API wire format): every operation is a JSON POST to
// {base}/action/{findOne,find,insertOne,updateOne,deleteOne}.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/todo-keeper/internal/errs"
)

// Config locates the gateway and the target database.
type Config struct {
	BaseURL    string // e.g. https://data.mongodb-api.com/app/<app-id>/endpoint/data/v1
	APIKey     string
	DataSource string // cluster name, "Cluster0" when empty
	Database   string
}

// Client issues gateway actions.
type Client struct {
	cfg  Config
	http *http.Client
}

// errDuplicateKey is returned for E11000 responses; callers translate it per collection.
var errDuplicateKey = errors.New("duplicate key")

// NewClient builds a gateway client. A nil hc gets a client bounded by timeout.
func NewClient(cfg Config, hc *http.Client, timeout time.Duration) *Client {
	if cfg.DataSource == "" {
		cfg.DataSource = "Cluster0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

type request struct {
	DataSource string `json:"dataSource"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
	Filter     any    `json:"filter,omitempty"`
	Document   any    `json:"document,omitempty"`
	Update     any    `json:"update,omitempty"`
	Sort       any    `json:"sort,omitempty"`
	Projection any    `json:"projection,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// do posts one action and decodes the response into out.
func (c *Client) do(ctx context.Context, action string, req request, out any) error {
	req.DataSource = c.cfg.DataSource
	req.Database = c.cfg.Database

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/action/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s: %w", action, err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.http.Do(hreq)
	if err != nil {
		return errs.Unavailable(fmt.Errorf("%s: %w", action, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return statusError(action, resp.StatusCode, msg)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", action, err)
	}
	return nil
}

// statusError never echoes the gateway URL or key; msg is the gateway's own error text.
func statusError(action string, code int, msg []byte) error {
	text := strings.TrimSpace(string(msg))
	switch {
	case strings.Contains(text, "E11000") || strings.Contains(text, "duplicate key"):
		return errDuplicateKey
	case code == http.StatusTooManyRequests || code >= 500:
		return errs.Unavailable(fmt.Errorf("%s: gateway status %d", action, code))
	default:
		return fmt.Errorf("%s: gateway status %d: %s", action, code, text)
	}
}
