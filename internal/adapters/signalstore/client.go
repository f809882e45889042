// Package signalstore is the client for the shared remote record
// store: HTTP for point reads and writes, a websocket for the
// server-side filtered live subscription.
package signalstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

type Client struct {
	baseURL string
	wsURL   string
	http    *http.Client
	dialer  *websocket.Dialer
}

func NewClient(baseURL, wsURL string) *Client {
	return &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		http:    http.DefaultClient,
		dialer:  websocket.DefaultDialer,
	}
}

func (c *Client) CreateInvite(ctx context.Context, rec *domain.CallRecord) error {
	var created domain.CallRecord
	if err := c.do(ctx, http.MethodPost, "/records", rec, &created); err != nil {
		return err
	}
	rec.ID = created.ID
	return nil
}

type endRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (c *Client) EndCall(ctx context.Context, booking domain.BookingID, durationSeconds int) error {
	path := fmt.Sprintf("/records/%s/end", url.PathEscape(string(booking)))
	return c.do(ctx, http.MethodPost, path, endRequest{DurationSeconds: durationSeconds}, nil)
}

func (c *Client) Get(ctx context.Context, booking domain.BookingID) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	path := fmt.Sprintf("/records/%s", url.PathEscape(string(booking)))
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.CustomerRecord, error) {
	var out []domain.CustomerRecord
	if err := c.do(ctx, http.MethodGet, "/customers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// wireChange is the subscription event envelope.
type wireChange struct {
	Kind   string            `json:"kind"`
	Record domain.CallRecord `json:"record"`
}

func changeKind(kind string) (core.ChangeKind, bool) {
	switch kind {
	case "added":
		return core.ChangeAdded, true
	case "modified":
		return core.ChangeModified, true
	case "removed":
		return core.ChangeRemoved, true
	}
	return 0, false
}

// Subscribe opens the filtered watch socket and pumps changes until
// ctx is done or the socket drops. The returned channel is closed on
// either.
func (c *Client) Subscribe(ctx context.Context, f core.RecordFilter) (<-chan core.RecordChange, error) {
	u, err := url.Parse(c.wsURL + "/records/watch")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if f.ProviderID != "" {
		q.Set("provider_id", string(f.ProviderID))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	u.RawQuery = q.Encode()

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	out := make(chan core.RecordChange, 16)
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()
	go func() {
		defer close(out)
		defer ws.Close()
		for {
			var wc wireChange
			if err := ws.ReadJSON(&wc); err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("module", "signalstore").Msg("watch socket read")
				}
				return
			}
			kind, ok := changeKind(wc.Kind)
			if !ok {
				log.Warn().Str("module", "signalstore").Str("kind", wc.Kind).Msg("unknown change kind")
				continue
			}
			select {
			case out <- core.RecordChange{Kind: kind, Record: wc.Record}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrRecordNotFound
	case resp.StatusCode == http.StatusConflict:
		return core.ErrCallInProgress
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("record store %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
