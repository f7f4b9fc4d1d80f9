package telephony

import (
	"context"
	"errors"
)

// Gateway is the telephony boundary used by the dialer.
//
// Rules:
// - No PABX-specific calls outside telephony adapters.
// - One Originate call places exactly one outbound call attempt; adapters never retry.
type Gateway interface {
	Name() string
	Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error)
}

// OriginateRequest is the provider-agnostic outbound call request.
type OriginateRequest struct {
	// Endpoint is the dial string, e.g. SIP/trunk/11999990000.
	Endpoint  string `json:"endpoint"`
	Extension string `json:"extension"`
	Context   string `json:"context"`
	Priority  string `json:"priority"`
	CallerID  string `json:"callerId"`

	// TimeoutMillis is how long the PABX rings before giving up.
	TimeoutMillis int `json:"timeout"`
}

// OriginateResult is the gateway's acknowledgement.
type OriginateResult struct {
	CallID      string `json:"call_id"`
	ChannelName string `json:"channel_name"`
	// CallerID is the caller id echoed by the gateway, falling back to the
	// requested one when the gateway omits it.
	CallerID string `json:"caller_id"`
}

const (
	DefaultPriority      = "1"
	DefaultTimeoutMillis = 30000
	MaxCallerIDLength    = 80
)

var (
	// ErrGatewayStatus is returned for non-2xx gateway responses.
	ErrGatewayStatus = errors.New("telephony: gateway rejected request")
	// ErrMalformedAck is returned when a 2xx response carries no usable call id.
	ErrMalformedAck = errors.New("telephony: malformed gateway acknowledgement")

	ErrInvalidRequest = errors.New("telephony: invalid originate request")
)

// TruncateCallerID clips s to MaxCallerIDLength runes.
func TruncateCallerID(s string) string {
	r := []rune(s)
	if len(r) <= MaxCallerIDLength {
		return s
	}
	return string(r[:MaxCallerIDLength])
}
