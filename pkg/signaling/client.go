// Package signaling implements the REST client Beach uses to exchange
// SDP offers/answers and trickled ICE candidates with the external
// signaling broker before a WebRTC data channel exists (spec §6). No
// example in the retrieved corpus ships a dedicated REST client library
// (gorilla/mux only appears server-side); this client is deliberately
// small enough that net/http plus encoding/json is the idiomatic choice
// rather than a dependency looking for a home.
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Role names the two WebRTC sides in the broker's candidate queues (spec
// §6: "role ∈ {offerer, answerer}").
type Role string

const (
	RoleOfferer  Role = "offerer"
	RoleAnswerer Role = "answerer"
)

// Client talks to one signaling broker base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client targeting baseURL (no trailing slash).
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Session is the broker's response to session creation, per spec §6.
type Session struct {
	ID       uuid.UUID `json:"session_id"`
	Passcode string    `json:"passcode"`
	ShareURL string    `json:"share_url"`
}

// CreateSession registers a new hosted session.
func (c *Client) CreateSession(ctx context.Context, name string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"name": name}, &out)
	return out, err
}

// JoinSession exchanges a passcode for a role assignment (always
// RoleAnswerer for a viewer joining an existing host, but the broker
// decides).
func (c *Client) JoinSession(ctx context.Context, sessionID uuid.UUID, passcode string) (Role, error) {
	var out struct {
		Role Role `json:"role"`
	}
	path := fmt.Sprintf("/sessions/%s/join", sessionID)
	err := c.do(ctx, http.MethodPost, path, map[string]string{"passcode": passcode}, &out)
	return out.Role, err
}

// PostOffer publishes the host's SDP offer.
func (c *Client) PostOffer(ctx context.Context, sessionID uuid.UUID, sdp string) error {
	path := fmt.Sprintf("/sessions/%s/webrtc/offer", sessionID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"sdp": sdp}, nil)
}

// GetOffer fetches the host's SDP offer, returning ok=false until one has
// been published.
func (c *Client) GetOffer(ctx context.Context, sessionID uuid.UUID) (sdp string, ok bool, err error) {
	return c.getSDP(ctx, fmt.Sprintf("/sessions/%s/webrtc/offer", sessionID))
}

// PostAnswer publishes the viewer's SDP answer.
func (c *Client) PostAnswer(ctx context.Context, sessionID uuid.UUID, sdp string) error {
	path := fmt.Sprintf("/sessions/%s/webrtc/answer", sessionID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"sdp": sdp}, nil)
}

// GetAnswer polls for the viewer's SDP answer, returning ok=false (404)
// until it has arrived.
func (c *Client) GetAnswer(ctx context.Context, sessionID uuid.UUID) (sdp string, ok bool, err error) {
	return c.getSDP(ctx, fmt.Sprintf("/sessions/%s/webrtc/answer", sessionID))
}

func (c *Client) getSDP(ctx context.Context, path string) (sdp string, ok bool, err error) {
	var out struct {
		SDP string `json:"sdp"`
	}
	status, err := c.doStatus(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		if statusErr, is := err.(*StatusError); is && statusErr.Code == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	if status == http.StatusNoContent {
		return "", false, nil
	}
	return out.SDP, true, nil
}

// Candidate is one trickled ICE candidate in broker wire format.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

// PostCandidate appends one locally gathered ICE candidate to role's
// queue.
func (c *Client) PostCandidate(ctx context.Context, sessionID uuid.UUID, role Role, cand Candidate) error {
	path := fmt.Sprintf("/sessions/%s/webrtc/candidates/%s", sessionID, role)
	return c.do(ctx, http.MethodPost, path, cand, nil)
}

// PollCandidates drains the queued candidates for role.
func (c *Client) PollCandidates(ctx context.Context, sessionID uuid.UUID, role Role) ([]Candidate, error) {
	var out []Candidate
	path := fmt.Sprintf("/sessions/%s/webrtc/candidates/%s", sessionID, role)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.doStatus(ctx, method, path, body, out)
	return err
}

func (c *Client) doStatus(ctx context.Context, method, path string, body, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("signaling: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("signaling: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("signaling: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("signaling: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// StatusError reports a non-2xx HTTP response from the broker.
type StatusError struct {
	Method, Path string
	Code         int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signaling: %s %s: status %d", e.Method, e.Path, e.Code)
}
