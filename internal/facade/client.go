// Package facade is the typed client for the upstream ride-pooling core
// service. The upstream owns matching, pricing, pooling, and dispatch; this
// process only pulls state from it and never caches across pulls.
package facade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/pool-dashboard/internal/models"
)

// Client performs REST lookups against the upstream service.
type Client struct {
	Endpoint string
	Client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

// PassengerDashboard pulls the full passenger dashboard snapshot.
func (c *Client) PassengerDashboard(ctx context.Context, passengerID string) (*models.PassengerDashboard, error) {
	var out models.PassengerDashboard
	if err := c.get(ctx, fmt.Sprintf("/api/v1/rides/passenger/%s/dashboard", passengerID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DriverDashboard pulls the full driver dashboard snapshot for a cab.
func (c *Client) DriverDashboard(ctx context.Context, cabID string) (*models.DriverDashboard, error) {
	var out models.DriverDashboard
	if err := c.get(ctx, fmt.Sprintf("/api/v1/rides/driver/%s/dashboard", cabID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllCabs lists every registered cab with live location and capacity.
func (c *Client) AllCabs(ctx context.Context) ([]models.Cab, error) {
	var out []models.Cab
	if err := c.get(ctx, "/api/v1/cabs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllRides lists every ride the upstream knows about.
func (c *Client) AllRides(ctx context.Context) ([]models.Ride, error) {
	var out []models.Ride
	if err := c.get(ctx, "/api/v1/rides", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelRide asks the upstream to cancel a ride. The dashboard does not
// interpret the outcome beyond success; the follow-up pull shows the result.
func (c *Client) CancelRide(ctx context.Context, rideID, reason string) error {
	body, _ := json.Marshal(map[string]string{"reason": reason})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.Endpoint+fmt.Sprintf("/api/v1/rides/%s/cancel", rideID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("cancel ride: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return upstreamError(resp)
	}
	return nil
}

// Health probes the upstream health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/actuator/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upstream unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return upstreamError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// upstreamError extracts the upstream's error payload, which carries either a
// "message" or an "error" field.
func upstreamError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil {
		if payload.Message != "" {
			return fmt.Errorf("upstream: %s", payload.Message)
		}
		if payload.Error != "" {
			return fmt.Errorf("upstream: %s", payload.Error)
		}
	}
	return fmt.Errorf("upstream: %s", resp.Status)
}
