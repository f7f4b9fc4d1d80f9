package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Instance is one tenant deployment of the collector.
//
// Instances are owned by the configuration surface (dashboard / instance CRUD);
// the dialer only ever reads them.
type Instance struct {
	// ID is the instance full id (<name>-<erp_type>-<oid>), used as the tenant key
	// on every persisted row.
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	ERPType string `json:"erp_type" db:"erp_type"`
	Active  bool   `json:"active" db:"active"`

	// DebugCalls bypasses the operational window for manual verification.
	// Never enable it on a production instance.
	DebugCalls bool `json:"debug_calls" db:"debug_calls"`

	Policy  DialPolicy    `json:"policy"`
	Gateway GatewayConfig `json:"gateway"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DialPolicy holds the per-instance knobs surfaced to operators.
type DialPolicy struct {
	MinDaysToCharge   int `json:"minimum_days_to_charge" db:"min_days_to_charge"`
	DialIntervalHours int `json:"dial_interval" db:"dial_interval_hours"`
	DialsPerDay       int `json:"dial_per_day" db:"dials_per_day"`
	ChannelCapacity   int `json:"num_channel_available" db:"channel_capacity"`
}

const (
	DefaultMinDaysToCharge   = 7
	DefaultDialIntervalHours = 4
	DefaultDialsPerDay       = 3
	DefaultChannelCapacity   = 10
)

// DefaultDialPolicy is the policy of an instance that configured nothing.
// Stores apply it per setting, only where the setting is absent: an explicit
// 0 is a real value (0 minimum days dials every overdue bill, a 0 interval
// disables the spacing rule). Negative values are kept so that a
// misconfigured instance dials nobody instead of everybody.
func DefaultDialPolicy() DialPolicy {
	return DialPolicy{
		MinDaysToCharge:   DefaultMinDaysToCharge,
		DialIntervalHours: DefaultDialIntervalHours,
		DialsPerDay:       DefaultDialsPerDay,
		ChannelCapacity:   DefaultChannelCapacity,
	}
}

func (p DialPolicy) DialInterval() time.Duration {
	return time.Duration(p.DialIntervalHours) * time.Hour
}

// GatewayConfig describes the tenant's Asterisk ARI endpoint and the dial plan
// parameters used to build outbound requests.
type GatewayConfig struct {
	Schema   string `json:"schema" db:"schema"`
	Host     string `json:"host" db:"host"`
	Port     string `json:"port" db:"port"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`

	ChannelType string `json:"channel_type" db:"channel_type"`
	Trunk       string `json:"channel" db:"trunk"`
	Context     string `json:"context" db:"context"`
	Extension   string `json:"extension" db:"extension"`
}

var ErrInvalidGateway = errors.New("tenant: invalid gateway config")

func (g GatewayConfig) WithDefaults() GatewayConfig {
	out := g
	if out.Schema == "" {
		out.Schema = "http"
	}
	if out.Port == "" {
		out.Port = "8088"
	}
	if out.ChannelType == "" {
		out.ChannelType = "SIP"
	}
	if out.Trunk == "" {
		out.Trunk = "trunk"
	}
	if out.Context == "" {
		out.Context = "from-internal"
	}
	if out.Extension == "" {
		out.Extension = "100"
	}
	return out
}

// Validate reports missing host or credentials. Those are fatal for the
// instance's cycle, never for the process.
func (g GatewayConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(g.Host) == "" {
		missing = append(missing, "host")
	}
	if g.Username == "" {
		missing = append(missing, "username")
	}
	if g.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidGateway, strings.Join(missing, ", "))
	}
	switch g.Schema {
	case "", "http", "https":
	default:
		return fmt.Errorf("%w: unsupported schema %q", ErrInvalidGateway, g.Schema)
	}
	return nil
}

// BaseURL is the ARI root, e.g. http://10.0.0.5:8088.
func (g GatewayConfig) BaseURL() string {
	g = g.WithDefaults()
	return fmt.Sprintf("%s://%s:%s", g.Schema, strings.TrimSpace(g.Host), g.Port)
}

// FullID builds the instance full id used across persisted documents.
func FullID(name, erpType, oid string) string {
	if name == "" {
		name = "default"
	}
	if erpType == "" {
		erpType = "ixc"
	}
	return fmt.Sprintf("%s-%s-%s", name, erpType, oid)
}
