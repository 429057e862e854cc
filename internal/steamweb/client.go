// Package steamweb issues authenticated requests against the Steam community
// web site on behalf of one logged-in web session.
package steamweb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const CommunityDomain = "steamcommunity.com"

const DefaultBaseURL = "https://" + CommunityDomain

// DefaultUserAgent matches the UA the official client sends; some community
// endpoints reject unknown agents.
const DefaultUserAgent = "Valve/Steam HTTP Client 1.0"

// Credentials is the outcome of the web login handshake: the session id and
// the steamLogin token cookie. Obtaining them is out of scope here.
type Credentials struct {
	SessionID string
	Token     string
}

// Client performs requests with the session's cookie set attached. It never
// retries; retry policy belongs to the caller.
type Client struct {
	base       string
	creds      Credentials
	httpClient *http.Client
	userAgent  string
	referer    string
}

func NewClient(base string, creds Credentials) (*Client, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("steamweb url parse %q: %w", base, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("steamweb url must be http(s), got %q", base)
	}

	creds.SessionID = strings.TrimSpace(creds.SessionID)
	if creds.SessionID == "" {
		return nil, fmt.Errorf("steamweb: empty web session id")
	}
	if unescaped, err := url.QueryUnescape(creds.SessionID); err == nil {
		creds.SessionID = unescaped
	}

	return &Client{
		base:  base,
		creds: creds,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		userAgent: DefaultUserAgent,
	}, nil
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) SessionID() string { return c.creds.SessionID }

// SetReferer sets the Referer header attached to every request. The trade
// page requires it to match the trade URL.
func (c *Client) SetReferer(ref string) { c.referer = ref }

func (c *Client) cookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: "sessionid", Value: c.creds.SessionID},
		{Name: "steamLogin", Value: c.creds.Token},
		{Name: "bCompletedTradeTutorial", Value: "true"},
		{Name: "Steam_Language", Value: "english"},
		{Name: "strInventoryLastContext", Value: "440_2"},
		{Name: "timezoneOffset", Value: "3600"},
	}
}

// Do performs a single request and returns the raw response body. A form may
// be attached to any method, including GET; the foreigninventory endpoint
// expects a GET with a urlencoded body.
func (c *Client) Do(ctx context.Context, method, rawURL string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, cookie := range c.cookies() {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("steamweb %s %s: status=%d", method, rawURL, resp.StatusCode)
	}
	return b, nil
}
