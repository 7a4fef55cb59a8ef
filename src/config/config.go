// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

// Package config resolves run settings from flags, the environment and an
// optional .env file. Flags win over environment, environment over defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultJobs    = 4
	DefaultTimeout = 10 * time.Second
	DefaultMarker  = "Dashboard"

	// DefaultAPILinger keeps the status API up after the run so pollers
	// can read the final state.
	DefaultAPILinger = 2 * time.Second
)

var (
	ErrMissingAddress = errors.New("missing required option -address")
	ErrMissingUser    = errors.New("missing required option -user")
	ErrMissingFile    = errors.New("missing password FILE argument")
	ErrMissingChannel = errors.New("missing notify channel (-notify or NOTIFY_CHANNEL)")
	ErrInvalidJobs    = errors.New("jobs must be at least 1")
	ErrInvalidAddress = errors.New("address must be an absolute http or https URL")
)

type DBConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     string
	SSLMode  string
}

// DSN renders a lib/pq keyword/value connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=%s",
		d.User, d.Password, d.Name, d.Host, d.Port, d.SSLMode)
}

type Config struct {
	Address      string
	User         string
	PasswordFile string
	Jobs         int
	KeepGoing    bool

	Timeout   time.Duration
	Marker    string
	UserAgent string

	APIPort         string
	APILinger       time.Duration
	TelemetryOutput string
	Verbose         bool
	Live            bool
	Quiet           bool

	NotifyChannel string
	DB            DBConfig
}

// LoadEnv loads .env files into the process environment. Missing files are
// not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

type env func(string) string

func (e env) or(key, fallback string) string {
	if v := e(key); v != "" {
		return v
	}
	return fallback
}

func (e env) integer(key string, fallback int) (int, error) {
	v := e(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (e env) boolean(key string, fallback bool) (bool, error) {
	v := e(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// duration falls back with a warning on a malformed value.
func (e env) duration(key string, fallback time.Duration, out io.Writer) time.Duration {
	raw := e(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		fmt.Fprintf(out, "Warning: failed to parse %s '%s', defaulting to %s: %v\n", key, raw, fallback, err)
		return fallback
	}
	return d
}

func dbFromEnv(e env) DBConfig {
	return DBConfig{
		User:     e("DB_USER"),
		Password: e("DB_PASSWORD"),
		Name:     e("DB_NAME"),
		Host:     e.or("DB_HOST", "localhost"),
		Port:     e.or("DB_PORT", "5432"),
		SSLMode:  e.or("DB_SSLMODE", "require"),
	}
}

// Parse builds a run configuration. getenv is usually os.Getenv; usage and
// warnings go to out.
func Parse(args []string, getenv func(string) string, out io.Writer) (*Config, error) {
	e := env(getenv)
	c := &Config{DB: dbFromEnv(e)}

	jobs, err := e.integer("JOBS", DefaultJobs)
	if err != nil {
		return nil, err
	}
	keepGoing, err := e.boolean("KEEP_GOING", false)
	if err != nil {
		return nil, err
	}
	timeout := e.duration("ATTEMPT_TIMEOUT", DefaultTimeout, out)
	linger := e.duration("API_LINGER", DefaultAPILinger, out)

	fs := flag.NewFlagSet("credprobe", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: credprobe [options] FILE\n       credprobe watch [-notify CHANNEL]\n\n")
		fmt.Fprintf(out, "Test the passwords in FILE against a WordPress login for one user.\n")
		fmt.Fprintf(out, "Only use against systems you are authorized to test.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&c.Address, "address", e("ADDRESS"), "Login url e.g. http://example.com/wp-login.php")
	fs.StringVar(&c.User, "user", e("LOGIN_USER"), "Login username")
	fs.IntVar(&c.Jobs, "j", jobs, "Jobs count (shorthand)")
	fs.IntVar(&c.Jobs, "jobs", jobs, "Jobs count")
	fs.BoolVar(&c.KeepGoing, "keep-going", keepGoing, "Keep going after password is found")
	fs.DurationVar(&c.Timeout, "timeout", timeout, "Timeout for one login attempt")
	fs.StringVar(&c.Marker, "marker", e.or("SUCCESS_MARKER", DefaultMarker), "Text that marks a successful login")
	fs.StringVar(&c.UserAgent, "user-agent", e("USER_AGENT"), "User-Agent header for login requests")
	fs.StringVar(&c.APIPort, "api-port", e("API_PORT"), "Serve run status on this port")
	fs.DurationVar(&c.APILinger, "api-linger", linger, "Keep serving run status this long after the run ends")
	fs.StringVar(&c.TelemetryOutput, "telemetry", e("TELEMETRY_OUTPUT"), "Export OpenTelemetry data to 'stderr' or a file")
	fs.StringVar(&c.NotifyChannel, "notify", e("NOTIFY_CHANNEL"), "Publish run events on this Postgres NOTIFY channel")
	fs.BoolVar(&c.Verbose, "v", false, "Mirror log records to stderr")
	fs.BoolVar(&c.Live, "live", false, "Redraw the progress line in place")
	fs.BoolVar(&c.Quiet, "quiet", false, "Do not print a marker per attempt")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, err
	}
	switch len(positional) {
	case 0:
		c.PasswordFile = e("PASSWORD_FILE")
	case 1:
		c.PasswordFile = positional[0]
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", positional[1:])
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parseInterspersed lets flags follow positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return ErrMissingAddress
	}
	u, err := url.Parse(c.Address)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, c.Address)
	}
	if c.User == "" {
		return ErrMissingUser
	}
	if c.PasswordFile == "" {
		return ErrMissingFile
	}
	if c.Jobs < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidJobs, c.Jobs)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.APILinger < 0 {
		c.APILinger = 0
	}
	return nil
}

type WatchConfig struct {
	NotifyChannel string
	DB            DBConfig
}

// ParseWatch builds the configuration of the watch command.
func ParseWatch(args []string, getenv func(string) string, out io.Writer) (*WatchConfig, error) {
	e := env(getenv)
	c := &WatchConfig{DB: dbFromEnv(e)}

	fs := flag.NewFlagSet("credprobe watch", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&c.NotifyChannel, "notify", e("NOTIFY_CHANNEL"), "Postgres NOTIFY channel to listen on")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.NotifyChannel == "" {
		return nil, ErrMissingChannel
	}
	return c, nil
}
