package fedexhttp

import (
	"bytes"
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
	baseURL   string
	apiKey    string
	apiSecret string
	httpc     *http.Client

	tokenMu    sync.Mutex
	token      string
	tokenUntil time.Time
}

func New(baseURL, apiKey, apiSecret string) *Client {
	if baseURL == "" {
		baseURL = "https://apis.fedex.com"
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type trackRequest struct {
	IncludeDetailedScans bool               `json:"includeDetailedScans"`
	TrackingInfo         []trackingInfoItem `json:"trackingInfo"`
}

type trackingInfoItem struct {
	TrackingNumberInfo struct {
		TrackingNumber string `json:"trackingNumber"`
	} `json:"trackingNumberInfo"`
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) ([]byte, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	var payload trackRequest
	payload.IncludeDetailedScans = true
	var item trackingInfoItem
	item.TrackingNumberInfo.TrackingNumber = trackingNumber
	payload.TrackingInfo = []trackingInfoItem{item}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/track/v1/trackingnumbers", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &carrier.TransportError{Carrier: models.CarrierFedEx, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.tokenMu.Lock()
		c.token = ""
		c.tokenMu.Unlock()
		return nil, &carrier.AuthError{Carrier: models.CarrierFedEx, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &carrier.TransportError{Carrier: models.CarrierFedEx, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &carrier.TransportError{Carrier: models.CarrierFedEx, Err: errors.Wrap(err, "read body")}
	}
	return b, nil
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenUntil) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "new auth request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &carrier.TransportError{Carrier: models.CarrierFedEx, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", &carrier.AuthError{Carrier: models.CarrierFedEx, Err: fmt.Errorf("token endpoint http %d", resp.StatusCode)}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &carrier.AuthError{Carrier: models.CarrierFedEx, Err: errors.Wrap(err, "decode token")}
	}
	if tr.AccessToken == "" {
		return "", &carrier.AuthError{Carrier: models.CarrierFedEx, Err: errors.New("no access token in response")}
	}

	ttl := 50 * time.Minute
	if tr.ExpiresIn > 60 {
		ttl = time.Duration(tr.ExpiresIn-30) * time.Second
	}
	c.token = tr.AccessToken
	c.tokenUntil = time.Now().Add(ttl)
	return c.token, nil
}
