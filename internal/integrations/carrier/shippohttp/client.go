package shippohttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL  string
	apiToken string
	httpc    *http.Client
}

func New(baseURL, apiToken string) *Client {
	if baseURL == "" {
		baseURL = "https://api.goshippo.com"
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) ([]byte, error) {
	var req *http.Request
	var err error

	if models.IsTestTrackingNumber(trackingNumber) {
		// Sandbox numbers are registered via POST /tracks/ with the
		// carrier token; the response carries the tracking object inline.
		body, _ := json.Marshal(map[string]string{
			"carrier":         "shippo",
			"tracking_number": trackingNumber,
		})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tracks/", bytes.NewReader(body))
	} else {
		u, perr := url.Parse(c.baseURL)
		if perr != nil {
			return nil, errors.Wrap(perr, "parse base url")
		}
		u.Path = fmt.Sprintf("/tracks/%s", url.PathEscape(trackingNumber))
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	req.Header.Set("Authorization", "ShippoToken "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &carrier.TransportError{Carrier: models.CarrierShippo, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &carrier.AuthError{Carrier: models.CarrierShippo, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &carrier.TransportError{Carrier: models.CarrierShippo, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &carrier.TransportError{Carrier: models.CarrierShippo, Err: errors.Wrap(err, "read body")}
	}
	return b, nil
}
