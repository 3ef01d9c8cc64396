package upshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        *http.Client

	tokenMu    sync.Mutex
	token      string
	tokenUntil time.Time
}

func New(baseURL, clientID, clientSecret string) *Client {
	if baseURL == "" {
		baseURL = "https://wwwcie.ups.com"
	}
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) ([]byte, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/api/track/v1/details/" + url.PathEscape(trackingNumber)
	q := u.Query()
	q.Set("locale", "en_US")
	q.Set("returnSignature", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("transId", time.Now().UTC().Format("TRACK20060102150405"))
	req.Header.Set("transactionSrc", "package-tracker")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &carrier.TransportError{Carrier: models.CarrierUPS, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.invalidateToken()
		return nil, &carrier.AuthError{Carrier: models.CarrierUPS, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &carrier.TransportError{Carrier: models.CarrierUPS, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &carrier.TransportError{Carrier: models.CarrierUPS, Err: errors.Wrap(err, "read body")}
	}
	return b, nil
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenUntil = time.Time{}
	c.tokenMu.Unlock()
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// authToken exchanges client credentials for an OAuth token and caches it
// until shortly before expiry.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenUntil) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "trck")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/security/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "new auth request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &carrier.TransportError{Carrier: models.CarrierUPS, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", &carrier.AuthError{Carrier: models.CarrierUPS, Err: fmt.Errorf("token endpoint http %d", resp.StatusCode)}
	}

	var tr tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &carrier.AuthError{Carrier: models.CarrierUPS, Err: errors.Wrap(err, "decode token")}
	}
	if tr.AccessToken == "" {
		return "", &carrier.AuthError{Carrier: models.CarrierUPS, Err: errors.New("no access token in response")}
	}

	ttl := 50 * time.Minute
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > time.Minute {
		ttl = secs - 30*time.Second
	}
	c.token = tr.AccessToken
	c.tokenUntil = time.Now().Add(ttl)
	return c.token, nil
}
