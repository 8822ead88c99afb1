package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values.  Each field maps to
// one environment variable; required values are enforced with must()
// at startup so a misconfigured deployment fails fast instead of
// refusing bookings at 6pm.
type Config struct {
    Env           string        // application environment (e.g. "dev", "prod")
    Port          string        // HTTP port to listen on
    DBUser        string        // database username
    DBPass        string        // database password (optional)
    DBHost        string        // database host address
    DBPort        string        // database port number
    DBName        string        // database name
    JWTSecret     string        // secret shared with the auth service for verifying tokens
    LockTimeout   time.Duration // max wait for an occurrence's exclusive section before Busy
    SweepInterval time.Duration // how often the no-show sweeper runs
    PublishEvents bool          // emit booking events to the broker
}

// Load reads configuration values from environment variables and
// returns a Config.  Missing required variables abort startup.
func Load() Config {
    return Config{
        Env:           must("APP_ENV"),
        Port:          must("APP_PORT"),
        DBUser:        must("DB_USER"),
        DBPass:        os.Getenv("DB_PASS"), // empty allowed
        DBHost:        must("DB_HOST"),
        DBPort:        must("DB_PORT"),
        DBName:        must("DB_NAME"),
        JWTSecret:     must("JWT_SECRET"),
        LockTimeout:   mustDurMS("OCCURRENCE_LOCK_TIMEOUT_MS", 2000),
        SweepInterval: mustDurMS("NOSHOW_SWEEP_INTERVAL_MS", int(10*time.Minute/time.Millisecond)),
        PublishEvents: os.Getenv("PUBLISH_EVENTS") != "false",
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustDurMS reads an optional millisecond count, falling back to the
// given default.  A present but unparsable value is fatal; silently
// running with the default would hide the typo until lock contention
// behaves strangely in production.
func mustDurMS(key string, def int) time.Duration {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        return time.Duration(def) * time.Millisecond
    }
    n, err := strconv.Atoi(v)
    if err != nil || n <= 0 {
        log.Fatalf("invalid millisecond value for %s: %q", key, v)
    }
    return time.Duration(n) * time.Millisecond
}
