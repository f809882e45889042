// Package authority is the HTTP client for the remote validation and
// token endpoints.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: http.DefaultClient}
}

type validateRequest struct {
	BookingID  domain.BookingID `json:"booking_id"`
	CustomerID domain.PartyID   `json:"customer_id"`
	Role       core.CallRole    `json:"role"`
}

type tokenRequest struct {
	BookingID  domain.BookingID `json:"booking_id"`
	CustomerID domain.PartyID   `json:"customer_id"`
}

func (c *Client) ValidateCall(ctx context.Context, booking domain.BookingID, customer domain.PartyID, role core.CallRole) (*core.CallValidation, error) {
	var out core.CallValidation
	err := c.post(ctx, "/calls/validate", validateRequest{BookingID: booking, CustomerID: customer, Role: role}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) IssueToken(ctx context.Context, booking domain.BookingID, customer domain.PartyID) (*core.TokenGrant, error) {
	var out core.TokenGrant
	err := c.post(ctx, "/calls/token", tokenRequest{BookingID: booking, CustomerID: customer}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The endpoint itself is absent: the authority version deployed
		// does not serve this call yet.
		return core.ErrEndpointNotFound
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn().Str("module", "authority").Str("path", path).Int("status", resp.StatusCode).Msg("authority call failed")
		return fmt.Errorf("authority %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
