package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Register(ctx context.Context, username, password string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": username,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, username, password string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/auth/logout", token, map[string]any{}, nil)
}

func (c *Client) ResetSession(ctx context.Context, token string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/session/reset", token, map[string]any{}, nil)
}

func (c *Client) State(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/state", token, nil, &out)
	return out, err
}

func (c *Client) Click(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/click", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) BuyProduct(ctx context.Context, token, id, amount string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/products/"+url.PathEscape(id)+"/buy", token, map[string]any{
		"amount": amount,
	}, &out)
	return out, err
}

func (c *Client) UnlockProduct(ctx context.Context, token, id string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/products/"+url.PathEscape(id)+"/unlock", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) HireStaff(ctx context.Context, token, id string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/staff/"+url.PathEscape(id)+"/hire", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) BuyUpgrade(ctx context.Context, token, id string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/upgrades/"+url.PathEscape(id)+"/buy", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) Prestige(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/prestige", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) SpendCredits(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/credits/spend", token, map[string]any{}, &out)
	return out, err
}

func (c *Client) RedeemCode(ctx context.Context, token, code string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/codes/redeem", token, map[string]any{
		"code": code,
	}, &out)
	return out, err
}

func (c *Client) SetChatColor(ctx context.Context, token, color string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/chat/color", token, map[string]any{
		"color": color,
	}, nil)
}

func (c *Client) Catalog(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", "", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, mode string) (map[string]any, error) {
	path := "/v1/leaderboard"
	if mode != "" {
		path += "?mode=" + url.QueryEscape(mode)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

func (c *Client) Announcer(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/announcer", "", nil, &out)
	return out, err
}

func (c *Client) ChatHistory(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/chat/history", "", nil, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
