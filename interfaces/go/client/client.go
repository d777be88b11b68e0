// Package client is a minimal Go client for the request-profiler HTTP API.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client { return &Client{BaseURL: baseURL, HTTP: http.DefaultClient} }

// Profile is the wire shape of a stored profile.
type Profile struct {
	Token      string         `json:"token"`
	Parent     string         `json:"parent,omitempty"`
	IP         string         `json:"ip"`
	Method     string         `json:"method"`
	URL        string         `json:"url"`
	Time       int64          `json:"time"`
	StatusCode int            `json:"statusCode"`
	Children   []Profile      `json:"children,omitempty"`
	Collectors map[string]any `json:"collectors,omitempty"`
}

// Find searches stored profiles. Zero/empty arguments are unfiltered.
func (c *Client) Find(ip, urlSubstr, method string, limit int) ([]Profile, error) {
	q := url.Values{}
	if ip != "" {
		q.Set("ip", ip)
	}
	if urlSubstr != "" {
		q.Set("url", urlSubstr)
	}
	if method != "" {
		q.Set("method", method)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	resp, err := c.HTTP.Get(c.BaseURL + "/api/profiles?" + q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Items []Profile `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Get fetches one profile by token; the bool is false when it is unknown.
func (c *Client) Get(token string) (Profile, bool, error) {
	resp, err := c.HTTP.Get(c.BaseURL + "/api/profiles/" + token)
	if err != nil {
		return Profile{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Profile{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, false, err
	}
	return p, true, nil
}
