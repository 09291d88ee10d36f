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
	"strings"
	"time"

	"lockify/internal/models"
)

var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx answer of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lockify: %d %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Account struct {
	FirstName  string    `json:"firstName"`
	Email      string    `json:"email"`
	Gender     string    `json:"gender"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

type EntryInput struct {
	URL         string `json:"url"`
	Password    string `json:"password"`
	Description string `json:"description,omitempty"`
	FileUpload  string `json:"fileUpload,omitempty"`
}

// Client talks to the Lockify API on behalf of the session in its store.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionStore
}

func New(baseURL string, sessions *SessionStore) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		sessions: sessions,
	}
}

func (c *Client) Session() Session {
	return c.sessions.Current()
}

func (c *Client) Register(ctx context.Context, firstName, email, password, gender string) (Account, error) {
	var out struct {
		NewEntry Account `json:"newEntry"`
	}

	err := c.do(ctx, http.MethodPost, "/register", false, map[string]string{
		"firstName": firstName,
		"email":     email,
		"password":  password,
		"gender":    gender,
	}, &out)

	return out.NewEntry, err
}

func (c *Client) Verify(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/verification?token="+url.QueryEscape(token), false, nil, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/resend-verification", false, map[string]string{"email": email}, nil)
}

// Login signs in and persists the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session

	if err := c.do(ctx, http.MethodPost, "/login", false, map[string]string{
		"email":    email,
		"password": password,
	}, &out); err != nil {
		return Session{}, err
	}

	if err := c.sessions.Save(out); err != nil {
		return Session{}, err
	}

	return out, nil
}

func (c *Client) Logout() error {
	return c.sessions.Clear()
}

func (c *Client) Add(ctx context.Context, in EntryInput) (models.Entry, error) {
	var out struct {
		Entry models.Entry `json:"entry"`
	}

	err := c.do(ctx, http.MethodPost, "/add", true, in, &out)

	return out.Entry, err
}

func (c *Client) List(ctx context.Context) ([]models.Entry, error) {
	var out struct {
		Entries []models.Entry `json:"entries"`
	}

	err := c.do(ctx, http.MethodGet, "/find", true, nil, &out)

	return out.Entries, err
}

func (c *Client) Get(ctx context.Context, id string) (models.Entry, error) {
	var out struct {
		Entry models.Entry `json:"entry"`
	}

	err := c.do(ctx, http.MethodGet, "/find/"+url.PathEscape(id), true, nil, &out)

	return out.Entry, err
}

func (c *Client) Update(ctx context.Context, id string, in EntryInput) (models.Entry, error) {
	var out struct {
		Entry models.Entry `json:"entry"`
	}

	err := c.do(ctx, http.MethodPut, "/update/"+url.PathEscape(id), true, in, &out)

	return out.Entry, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/delete/"+url.PathEscape(id), true, nil, nil)
}

func (c *Client) DeleteAll(ctx context.Context) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}

	err := c.do(ctx, http.MethodDelete, "/delete", true, nil, &out)

	return out.Deleted, err
}

// DeleteAccount removes the signed-in account and clears the session.
func (c *Client) DeleteAccount(ctx context.Context) error {
	sess := c.sessions.Current()
	if !sess.SignedIn() {
		return ErrNotSignedIn
	}

	if err := c.do(ctx, http.MethodDelete, "/user/delete/"+url.PathEscape(sess.User.Email), true, nil, nil); err != nil {
		return err
	}

	return c.sessions.Clear()
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	const op = "client.do"

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		sess := c.sessions.Current()
		if !sess.SignedIn() {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(data, &env)

		if env.Message == "" {
			env.Message = http.StatusText(res.StatusCode)
		}

		apiErr := &APIError{StatusCode: res.StatusCode, Message: env.Message}

		// The server no longer accepts this token.
		if authed && res.StatusCode == http.StatusUnauthorized {
			_ = c.sessions.Clear()
		}

		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}
