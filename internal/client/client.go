// Package client is a typed HTTP client for the todo API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/and161185/todo-keeper/internal/convert"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, code int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == code
}

// Client talks to one server. Token is sent as a bearer credential when set.
type Client struct {
	base  *url.URL
	hc    *http.Client
	Token string
}

// New parses baseURL (e.g. http://localhost:8080). A nil hc means http.DefaultClient.
func New(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, hc: hc}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var m convert.Message
		_ = json.NewDecoder(resp.Body).Decode(&m)
		return &APIError{Status: resp.StatusCode, Message: m.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func todosPath(username string) string {
	return "/api/users/" + url.PathEscape(username) + "/todos"
}

func todoPath(username string, id int64) string {
	return todosPath(username) + "/" + strconv.FormatInt(id, 10)
}

// Health fetches the liveness report.
func (c *Client) Health(ctx context.Context) (convert.Health, error) {
	var h convert.Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &h)
	return h, err
}

// Signup creates an account and stores the returned token on c.
func (c *Client) Signup(ctx context.Context, username, password string) (convert.AuthResponse, error) {
	var out convert.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/signup", convert.Credentials{Username: username, Password: password}, &out); err != nil {
		return out, err
	}
	c.Token = out.Token
	return out, nil
}

// Authenticate exchanges credentials for a token and stores it on c.
func (c *Client) Authenticate(ctx context.Context, username, password string) (convert.AuthResponse, error) {
	var out convert.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/authenticate", convert.Credentials{Username: username, Password: password}, &out); err != nil {
		return out, err
	}
	c.Token = out.Token
	return out, nil
}

// List returns the user's todos.
func (c *Client) List(ctx context.Context, username string) ([]convert.Todo, error) {
	var out []convert.Todo
	err := c.do(ctx, http.MethodGet, todosPath(username), nil, &out)
	return out, err
}

// Get fetches one todo.
func (c *Client) Get(ctx context.Context, username string, id int64) (convert.Todo, error) {
	var out convert.Todo
	err := c.do(ctx, http.MethodGet, todoPath(username, id), nil, &out)
	return out, err
}

// Create adds a todo; the server assigns the id.
func (c *Client) Create(ctx context.Context, username string, in convert.CreateTodo) (convert.Todo, error) {
	var out convert.Todo
	err := c.do(ctx, http.MethodPost, todosPath(username), in, &out)
	return out, err
}

// Update changes the supplied fields.
func (c *Client) Update(ctx context.Context, username string, id int64, in convert.UpdateTodo) (convert.Todo, error) {
	var out convert.Todo
	err := c.do(ctx, http.MethodPut, todoPath(username, id), in, &out)
	return out, err
}

// Delete removes a todo.
func (c *Client) Delete(ctx context.Context, username string, id int64) error {
	return c.do(ctx, http.MethodDelete, todoPath(username, id), nil, nil)
}
