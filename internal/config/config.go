package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration values for lock and sweep tuning
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations,
// time.Duration for the lock polling and sweep intervals.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	// Advisory departure lock tuning.  The lock is a latency optimisation
	// layered in front of the authoritative row lock; the TTL is only a
	// safety net against crashed holders.
	LockTTL       time.Duration // key expiry on the Redis lock
	LockRetry     time.Duration // delay between acquisition attempts
	LockMaxWait   time.Duration // give up acquiring after this long
	SweepInterval time.Duration // cutoff sweep period

	// VirtualCapacity is the seat capacity assigned to departures that are
	// materialized from a tour's recurrence rule without an explicit value.
	VirtualCapacity int
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Lock and sweep
// tuning fall back to sensible defaults when unset.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),      // environment (dev/test/prod)
		Port:         must("APP_PORT"),     // port to bind the HTTP server
		DBUser:       must("DB_USER"),      // database user
		DBPass:       os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:       must("DB_HOST"),      // database host
		DBPort:       must("DB_PORT"),      // database port
		DBName:       must("DB_NAME"),      // database name
		JWTSecret:    must("JWT_SECRET"),   // secret used for signing JWTs
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		LockTTL:       parseDur(getenv("DEPARTURE_LOCK_TTL", "300s")),
		LockRetry:     parseDur(getenv("DEPARTURE_LOCK_RETRY", "100ms")),
		LockMaxWait:   parseDur(getenv("DEPARTURE_LOCK_MAX_WAIT", "5s")),
		SweepInterval: parseDur(getenv("DEPARTURE_SWEEP_INTERVAL", "1h")),

		VirtualCapacity: atoi(getenv("VIRTUAL_DEPARTURE_CAPACITY", "10")),
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// getenv returns the value of an optional environment variable, or the
// provided default when the variable is unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
