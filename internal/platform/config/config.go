package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every runtime setting. Each sub-config is owned by the
// component that consumes it; main only passes them along.
type Config struct {
	Server    Server
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Session   Session
	Login     Login
	Workflow  Workflow
	Billing   Billing
	Policy    Policy
	Bootstrap Bootstrap
	Log       Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Database is optional; an empty URL selects the in-memory stores.
type Database struct {
	URL string
}

// RedisConfig backs the server-side credential store. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers             []string
	NoticesTopic        string
	PaymentRequestTopic string
}

// Session.SigningKey may be empty; main then generates a per-process key.
type Session struct {
	SigningKey   string
	Issuer       string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// Login throttles failed logins per email and client IP.
type Login struct {
	MaxAttempts int
	Window      time.Duration
	LockFor     time.Duration
}

type Workflow struct {
	PaymentWindow          time.Duration
	ExpirySweepInterval    time.Duration
	ProfileChangeAdminOnly bool
}

type Billing struct {
	Token string
}

type Policy struct {
	// File optionally points at a YAML access policy table replacing the
	// built-in portal table.
	File string
}

// Bootstrap seeds the first administrator so account approvals have a
// decider. Empty email disables it.
type Bootstrap struct {
	AdminEmail    string
	AdminPassword string
}

type Log struct {
	Level  string
	Format string
}

// DefaultPaymentWindow matches the three days students are given to pay
// after a room booking is approved.
const DefaultPaymentWindow = 72 * time.Hour

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getenv("HOUSING_ADDR", ":8080"),
			ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getenvDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: Database{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:             getenvList("KAFKA_BROKERS"),
			NoticesTopic:        getenv("KAFKA_NOTICES_TOPIC", "housing.notices"),
			PaymentRequestTopic: getenv("KAFKA_PAYMENT_TOPIC", "housing.billing.payment_required"),
		},
		Session: Session{
			SigningKey:   os.Getenv("SESSION_SIGNING_KEY"),
			Issuer:       getenv("SESSION_ISSUER", "housing-portal"),
			TTL:          getenvDuration("SESSION_TTL", 12*time.Hour),
			CookieName:   getenv("SESSION_COOKIE", "housing_session"),
			CookieSecure: getenvBool("SESSION_COOKIE_SECURE", false),
		},
		Login: Login{
			MaxAttempts: getenvInt("LOGIN_MAX_ATTEMPTS", 5),
			Window:      getenvDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute),
			LockFor:     getenvDuration("LOGIN_LOCKOUT", 15*time.Minute),
		},
		Workflow: Workflow{
			PaymentWindow:          getenvDuration("PAYMENT_WINDOW", DefaultPaymentWindow),
			ExpirySweepInterval:    getenvDuration("EXPIRY_SWEEP_INTERVAL", 0),
			ProfileChangeAdminOnly: getenvBool("PROFILE_CHANGE_ADMIN_ONLY", false),
		},
		Billing: Billing{
			Token: os.Getenv("BILLING_TOKEN"),
		},
		Policy: Policy{
			File: os.Getenv("POLICY_FILE"),
		},
		Bootstrap: Bootstrap{
			AdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Log: Log{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
