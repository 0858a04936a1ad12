// Package classify provides HTTP clients for the external facial and
// vocal emotion classification services.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/braincell-ai/braincell/internal/domain"
	"github.com/braincell-ai/braincell/internal/fusion"
)

// Result is one validated classification. An empty Label means the
// service returned something unrecognized; callers treat that as "no
// evidence", not as an error.
type Result struct {
	Label      string             `json:"label"`
	Score      float64            `json:"score"`
	Candidates []domain.Candidate `json:"candidates,omitempty"`
	Source     string             `json:"source,omitempty"`
}

// Client talks to the classifier services over HTTP/JSON. A nil URL
// disables the corresponding channel; its Result methods then report
// the channel unavailable.
type Client struct {
	c         *http.Client
	facialURL string
	vocalURL  string
}

// ErrChannelDisabled is returned when the corresponding service URL is
// not configured.
var ErrChannelDisabled = fmt.Errorf("classifier channel not configured")

// New creates a classifier client. Empty URLs disable the channels.
func New(facialURL, vocalURL string) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 3 * time.Minute,
		}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       2 * time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &Client{
		c:         &http.Client{Transport: tr, Timeout: 60 * time.Second},
		facialURL: strings.TrimSuffix(facialURL, "/"),
		vocalURL:  strings.TrimSuffix(vocalURL, "/"),
	}
}

// FacialEnabled reports whether the facial service is configured.
func (c *Client) FacialEnabled() bool { return c.facialURL != "" }

// VocalEnabled reports whether the vocal service is configured.
func (c *Client) VocalEnabled() bool { return c.vocalURL != "" }

type facialRequest struct {
	Image string `json:"image"`
}

type vocalRequest struct {
	Audio string `json:"audio"`
}

// rawResult is the wire shape shared by both services.
type rawResult struct {
	Label      string             `json:"label"`
	Score      float64            `json:"score"`
	Candidates []domain.Candidate `json:"candidates"`
	Source     string             `json:"source"`
	Error      string             `json:"error"`
}

// Facial submits a base64 webcam snapshot and returns the validated
// facial classification.
func (c *Client) Facial(ctx context.Context, imageB64 string) (*Result, error) {
	if c.facialURL == "" {
		return nil, ErrChannelDisabled
	}
	raw, err := c.post(ctx, c.facialURL, facialRequest{Image: imageB64})
	if err != nil {
		return nil, fmt.Errorf("facial classify: %w", err)
	}
	// Boundary validation: unknown labels become no-evidence.
	return &Result{
		Label:      string(domain.ParseFacialExpression(strings.ToLower(raw.Label))),
		Score:      raw.Score,
		Candidates: fusion.RankCandidates(raw.Candidates),
		Source:     raw.Source,
	}, nil
}

// Vocal submits a base64 audio clip and returns the validated vocal
// classification.
func (c *Client) Vocal(ctx context.Context, audioB64 string) (*Result, error) {
	if c.vocalURL == "" {
		return nil, ErrChannelDisabled
	}
	raw, err := c.post(ctx, c.vocalURL, vocalRequest{Audio: audioB64})
	if err != nil {
		return nil, fmt.Errorf("vocal classify: %w", err)
	}
	return &Result{
		Label:      string(domain.ParseVocalState(strings.ToLower(raw.Label))),
		Score:      raw.Score,
		Candidates: fusion.RankCandidates(raw.Candidates),
		Source:     raw.Source,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) (*rawResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErr))
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out rawResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("classifier error: %s", out.Error)
	}
	return &out, nil
}

// Status describes classifier availability for the health endpoint.
type Status struct {
	Facial string `json:"facial_model"`
	Vocal  string `json:"voice_model"`
}

// Health probes both services with a short timeout. A disabled channel
// reports "disabled"; an unreachable one reports "unavailable".
func (c *Client) Health(ctx context.Context) Status {
	probe := func(url string) string {
		if url == "" {
			return "disabled"
		}
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
		if err != nil {
			return "unavailable"
		}
		resp, err := c.c.Do(req)
		if err != nil {
			return "unavailable"
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "unavailable"
		}
		return "available"
	}
	return Status{Facial: probe(c.facialURL), Vocal: probe(c.vocalURL)}
}
