package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "collector"},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "collector"
	c.Auth.JWTAudience = "operators"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Store.Driver != StoreDriverPostgres {
		t.Fatalf("expected postgres store by default, got %q", c.Store.Driver)
	}
	d := c.Dialer
	if d.Interval != 20*time.Minute || d.Pause != time.Second || d.GatewayTimeout != 5*time.Second || d.Parallelism != 4 {
		t.Fatalf("unexpected dialer defaults: %+v", d)
	}
	if c.Location().String() != "America/Sao_Paulo" {
		t.Fatalf("unexpected default zone %q", c.Location())
	}
}

func TestValidate_MongoStoreSkipsPostgres(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "dev", Port: 8080},
		Store: StoreConfig{Driver: StoreDriverMongo},
		Mongo: MongoConfig{URI: "mongodb://localhost:27017"},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Mongo.Database != "collector" {
		t.Fatalf("expected default database, got %q", c.Mongo.Database)
	}
}

func TestValidate_RejectsSlowTimeouts(t *testing.T) {
	c := validLocal()
	c.Dialer.GatewayTimeout = 30 * time.Second
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for 30s gateway timeout")
	}
}

func TestValidate_RejectsUnknownTimezone(t *testing.T) {
	c := validLocal()
	c.Dialer.Timezone = "Mars/Olympus"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	body := "APP_ENV=local\nAPP_PORT=9090\nSTORE_DRIVER=mongo\nMONGO_URI=mongodb://db:27017\nJWT_SECRET=s3cret\nDEBUG=true\nDIALER_PAUSE=2s\n"
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// godotenv does not override variables already present; clear the ones we assert on.
	for _, k := range []string{"APP_ENV", "APP_PORT", "STORE_DRIVER", "MONGO_URI", "JWT_SECRET", "DEBUG", "DIALER_PAUSE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 9090 || c.Store.Driver != StoreDriverMongo || !c.Dialer.Debug || c.Dialer.Pause != 2*time.Second {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("JWT_SECRET", "s3cret")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}
