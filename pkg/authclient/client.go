// Package authclient talks to the auth service over HTTP for services that
// sit behind it, such as the blog API.
package authclient

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
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

var ErrUnauthorized = errors.New("authclient: unauthorized")

// Error is a non-2xx answer of the auth service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth service: %d %s", e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// Session is the pair of tokens the service set as cookies, plus the user.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*Session, error) {
	return c.session(ctx, http.MethodPost, "/register", in, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{"username": username, "password": password}
	return c.session(ctx, http.MethodPost, "/login", body, nil)
}

// Refresh trades refreshToken for a new session. The old token is spent even
// when the answer is lost, so callers must not retry with it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	return c.session(ctx, http.MethodGet, "/refresh", nil, []*http.Cookie{
		{Name: refreshCookie, Value: refreshToken},
	})
}

func (c *Client) LogOut(ctx context.Context, accessToken, refreshToken string) error {
	cookies := []*http.Cookie{{Name: accessCookie, Value: accessToken}}
	if refreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: refreshCookie, Value: refreshToken})
	}
	resp, err := c.do(ctx, http.MethodPost, "/logout", nil, cookies)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Me resolves accessToken to its user.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/me", nil, []*http.Cookie{
		{Name: accessCookie, Value: accessToken},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result.User, nil
}

func (c *Client) session(ctx context.Context, method, path string, body any, cookies []*http.Cookie) (*Session, error) {
	resp, err := c.do(ctx, method, path, body, cookies)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	s := &Session{User: result.User}
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case accessCookie:
			s.AccessToken = ck.Value
		case refreshCookie:
			s.RefreshToken = ck.Value
		}
	}
	if s.AccessToken == "" || s.RefreshToken == "" {
		return nil, errors.New("auth service set no session cookies")
	}
	return s, nil
}

// do returns the response only for 2xx answers; anything else becomes *Error.
func (c *Client) do(ctx context.Context, method, path string, body any, cookies []*http.Cookie) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, &Error{Status: resp.StatusCode, Message: e.Message}
	}
	return resp, nil
}
