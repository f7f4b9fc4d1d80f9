package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the collector process needs.
// Values come from the environment, optionally seeded from a .env file.
// Tenant dial policy is per instance and never read from here.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	DB     DBConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Dialer DialerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// StoreConfig selects the backing store for tenants, bills and call history.
type StoreConfig struct {
	// Driver accepts: postgres, mongo
	Driver string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type DialerConfig struct {
	Interval       time.Duration
	Pause          time.Duration
	GatewayTimeout time.Duration
	QueryTimeout   time.Duration
	LeaseTTL       time.Duration
	Parallelism    int
	Debug          bool

	// Timezone is the IANA name used for the operating window and the
	// "today" boundary of the daily cap.
	Timezone string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Load reads the environment after loading envFile if it exists.
// An empty envFile defaults to ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt("DB_PORT", &parseErrs)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Mongo.URI = strings.TrimSpace(os.Getenv("MONGO_URI"))
	c.Mongo.Database = strings.TrimSpace(os.Getenv("MONGO_DATABASE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optionalInt("REDIS_PORT", &parseErrs)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	// Duration and count knobs are optional; defaults applied in Validate().
	c.Dialer.Interval = mustDuration("DIALER_INTERVAL")
	c.Dialer.Pause = mustDuration("DIALER_PAUSE")
	c.Dialer.GatewayTimeout = mustDuration("DIALER_GATEWAY_TIMEOUT")
	c.Dialer.QueryTimeout = mustDuration("DIALER_QUERY_TIMEOUT")
	c.Dialer.LeaseTTL = mustDuration("DIALER_LEASE_TTL")
	c.Dialer.Parallelism = optionalInt("DIALER_PARALLELISM", &parseErrs)
	c.Dialer.Debug = isTruthy(os.Getenv("DEBUG"))
	c.Dialer.Timezone = strings.TrimSpace(os.Getenv("DIALER_TIMEZONE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks c and fills local-friendly defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverPostgres
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		errs = append(errs, c.validatePostgres()...)
	case StoreDriverMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
		if c.Mongo.Database == "" {
			c.Mongo.Database = "collector"
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, got %q", c.Store.Driver))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	errs = append(errs, c.validateDialer()...)

	return joinErrors(errs)
}

func (c *Config) validatePostgres() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c *Config) validateDialer() []error {
	var errs []error
	d := &c.Dialer
	if d.Interval <= 0 {
		d.Interval = 20 * time.Minute
	}
	if d.Pause < 0 {
		errs = append(errs, fmt.Errorf("DIALER_PAUSE must not be negative, got %s", d.Pause))
	} else if d.Pause == 0 {
		d.Pause = time.Second
	}
	if d.GatewayTimeout <= 0 {
		d.GatewayTimeout = 5 * time.Second
	}
	if d.QueryTimeout <= 0 {
		d.QueryTimeout = 5 * time.Second
	}
	if d.GatewayTimeout >= 10*time.Second || d.QueryTimeout >= 10*time.Second {
		errs = append(errs, errors.New("DIALER_GATEWAY_TIMEOUT and DIALER_QUERY_TIMEOUT must stay below 10s"))
	}
	if d.LeaseTTL <= 0 {
		d.LeaseTTL = 15 * time.Minute
	}
	if d.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("DIALER_PARALLELISM must not be negative, got %d", d.Parallelism))
	} else if d.Parallelism == 0 {
		d.Parallelism = 4
	}
	if d.Timezone == "" {
		d.Timezone = "America/Sao_Paulo"
	}
	if _, err := time.LoadLocation(d.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("DIALER_TIMEZONE is not a known zone: %q", d.Timezone))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// RedisAddr is empty when no Redis host is configured.
func (c Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Location resolves Dialer.Timezone. Call after Validate.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Dialer.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
