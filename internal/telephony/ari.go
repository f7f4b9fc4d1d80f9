package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ARIConfig holds one tenant's Asterisk REST Interface endpoint.
type ARIConfig struct {
	// BaseURL is {schema}://{host}:{port}.
	BaseURL  string
	Username string
	Password string

	Timeout time.Duration
}

// ARIClient originates calls through Asterisk's POST /ari/channels.
type ARIClient struct {
	cfg  ARIConfig
	http *http.Client
}

func NewARIClient(cfg ARIConfig, hc *http.Client) *ARIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ARIClient{cfg: cfg, http: hc}
}

func (c *ARIClient) Name() string { return "asterisk_ari" }

type ariChannel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Caller struct {
		Name   string `json:"name"`
		Number string `json:"number"`
	} `json:"caller"`
}

// Originate sends a single form-encoded originate request. It never retries.
func (c *ARIClient) Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error) {
	if req.Endpoint == "" {
		return OriginateResult{}, fmt.Errorf("%w: endpoint is required", ErrInvalidRequest)
	}
	if req.Priority == "" {
		req.Priority = DefaultPriority
	}
	if req.TimeoutMillis <= 0 {
		req.TimeoutMillis = DefaultTimeoutMillis
	}
	req.CallerID = TruncateCallerID(req.CallerID)

	form := url.Values{}
	form.Set("endpoint", req.Endpoint)
	form.Set("extension", req.Extension)
	form.Set("context", req.Context)
	form.Set("priority", req.Priority)
	form.Set("callerId", req.CallerID)
	form.Set("timeout", strconv.Itoa(req.TimeoutMillis))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/ari/channels", strings.NewReader(form.Encode()))
	if err != nil {
		return OriginateResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OriginateResult{}, fmt.Errorf("telephony: originate %s: %w", req.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return OriginateResult{}, fmt.Errorf("telephony: read ack: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OriginateResult{}, fmt.Errorf("%w: status %d: %s", ErrGatewayStatus, resp.StatusCode, snippet(body))
	}

	var ch ariChannel
	if err := json.Unmarshal(body, &ch); err != nil {
		return OriginateResult{}, fmt.Errorf("%w: %v", ErrMalformedAck, err)
	}
	if ch.ID == "" {
		return OriginateResult{}, fmt.Errorf("%w: missing channel id", ErrMalformedAck)
	}

	callerID := ch.Caller.Number
	if callerID == "" {
		callerID = ch.Caller.Name
	}
	if callerID == "" {
		callerID = req.CallerID
	}
	return OriginateResult{
		CallID:      ch.ID,
		ChannelName: ch.Name,
		CallerID:    callerID,
	}, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
