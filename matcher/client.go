// Package matcher is the HTTP client for the external face-match inference
// service. The service is only trusted to produce a {match, confidence}
// verdict somewhere in its response body; everything around it is treated
// as incidental formatting.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Rahul-7375/attendance-cist/models"
)

type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

type matchRequest struct {
	Reference string `json:"reference"` // base64
	Live      string `json:"live"`      // base64
}

// Match posts the stored reference sample and the fresh capture and returns
// the service's verdict.
func (c *Client) Match(ctx context.Context, reference, live string) (models.VerificationResult, error) {
	body, err := json.Marshal(matchRequest{Reference: reference, Live: live})
	if err != nil {
		return models.VerificationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.VerificationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("%w: %v", models.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("%w: read response: %v", models.ErrExternalServiceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.VerificationResult{}, fmt.Errorf("%w: status %d", models.ErrExternalServiceUnavailable, resp.StatusCode)
	}
	return ParseResult(string(raw))
}

// ParseResult digs the structured verdict out of the response body. The
// service sometimes wraps its JSON in code fences or surrounding prose, so
// the payload is located rather than decoded wholesale.
func ParseResult(body string) (models.VerificationResult, error) {
	payload := extractJSON(body)
	if payload == "" {
		return models.VerificationResult{}, fmt.Errorf("%w: no JSON object in response", models.ErrExternalServiceUnavailable)
	}

	match := gjson.Get(payload, "match")
	confidence := gjson.Get(payload, "confidence")
	if !match.Exists() || match.Type != gjson.True && match.Type != gjson.False {
		return models.VerificationResult{}, fmt.Errorf("%w: missing match field", models.ErrExternalServiceUnavailable)
	}
	if !confidence.Exists() || confidence.Type != gjson.Number {
		return models.VerificationResult{}, fmt.Errorf("%w: missing confidence field", models.ErrExternalServiceUnavailable)
	}
	conf := confidence.Float()
	if conf < 0 || conf > 1 {
		return models.VerificationResult{}, fmt.Errorf("%w: confidence %v out of range", models.ErrExternalServiceUnavailable, conf)
	}
	return models.VerificationResult{Match: match.Bool(), Confidence: conf}, nil
}

// extractJSON strips code fences and surrounding prose, returning the first
// balanced-looking object in the body.
func extractJSON(body string) string {
	body = strings.TrimSpace(body)
	if fenced := strings.Index(body, "```"); fenced >= 0 {
		body = body[fenced+3:]
		body = strings.TrimPrefix(body, "json")
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		body = strings.TrimSpace(body)
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return ""
	}
	candidate := body[start : end+1]
	if !gjson.Valid(candidate) {
		return ""
	}
	return candidate
}
