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

// ErrMissingCredentials is returned by Load when the portal login is not set.
var ErrMissingCredentials = errors.New("HICV_USERNAME and HICV_PASSWORD must be set")

// Config holds all application-level configuration
type Config struct {
	// Credentials
	Username string
	Password string

	// Query
	Month         time.Month
	Year          int
	CheckInDay    int
	Nights        int
	ScanDays      int // 0 scans every possible check-in day of the month
	Adults        int
	Children      int
	UnitSizes     []string
	LocationGroup string

	// Browser
	Headless       bool
	SlowMo         time.Duration // pause enforced between UI actions
	WindowWidth    int
	WindowHeight   int
	LoginURL       string
	BookingURL     string
	DefaultTimeout time.Duration
	RunTimeout     time.Duration
	MaxRetries     int

	// Output
	CSVPath     string
	XLSXPath    string
	DatabaseURL string
	DebugDir    string

	LogLevel string
}

// Load reads configuration from a .env file (if present) and the environment.
// Missing credentials are a startup error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	now := time.Now()
	cfg := &Config{
		Username: os.Getenv("HICV_USERNAME"),
		Password: os.Getenv("HICV_PASSWORD"),

		Month:         now.Month(),
		Year:          getEnvInt("SCAN_YEAR", now.Year()),
		CheckInDay:    getEnvInt("CHECKIN_DAY", 1),
		Nights:        getEnvInt("NIGHTS", 7),
		ScanDays:      getEnvInt("SCAN_DAYS", 0),
		Adults:        getEnvInt("ADULTS", 2),
		Children:      getEnvInt("CHILDREN", 0),
		UnitSizes:     getEnvList("UNIT_SIZES", []string{"Studio", "1 Bedroom"}),
		LocationGroup: getEnv("LOCATION_GROUP", "Florida"),

		Headless:       getEnvBool("HEADLESS", true),
		SlowMo:         time.Duration(getEnvInt("SLOW_MO_MS", 150)) * time.Millisecond,
		WindowWidth:    getEnvInt("WINDOW_WIDTH", 1440),
		WindowHeight:   getEnvInt("WINDOW_HEIGHT", 900),
		LoginURL:       getEnv("LOGIN_URL", "https://holidayinnclub.com/login"),
		BookingURL:     getEnv("BOOKING_URL", "https://holidayinnclub.com/account/booking"),
		DefaultTimeout: getEnvDuration("DEFAULT_TIMEOUT", 25*time.Second),
		RunTimeout:     getEnvDuration("RUN_TIMEOUT", 30*time.Minute),
		MaxRetries:     getEnvInt("MAX_RETRIES", 2),

		CSVPath:     getEnv("CSV_PATH", "output/hicv_availability.csv"),
		XLSXPath:    getEnv("XLSX_PATH", "output/hicv_availability.xlsx"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DebugDir:    getEnv("DEBUG_DIR", "debug"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if m := os.Getenv("SCAN_MONTH"); m != "" {
		month, err := ParseMonth(m)
		if err != nil {
			return nil, err
		}
		cfg.Month = month
	}

	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	return cfg, nil
}

// Validate checks the query fields after flags have been applied.
func (c *Config) Validate() error {
	if c.Month < time.January || c.Month > time.December {
		return fmt.Errorf("invalid month %d", c.Month)
	}
	if c.Year < 1900 || c.Year > 2100 {
		return fmt.Errorf("year %d out of range 1900-2100", c.Year)
	}
	if c.Nights < 1 || c.Nights > 30 {
		return fmt.Errorf("nights %d out of range 1-30", c.Nights)
	}
	if c.CheckInDay < 1 || c.CheckInDay > 31 {
		return fmt.Errorf("check-in day %d out of range 1-31", c.CheckInDay)
	}
	if c.Adults < 1 {
		return fmt.Errorf("at least one adult is required")
	}
	if c.Children < 0 {
		return fmt.Errorf("children cannot be negative")
	}
	if len(c.UnitSizes) == 0 {
		return fmt.Errorf("no unit sizes selected")
	}
	return nil
}

// ParseMonth accepts a full or three-letter month name, or a number 1-12.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), nil
		}
		return 0, fmt.Errorf("invalid month %q", s)
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(s, name) || (len(s) == 3 && strings.EqualFold(s, name[:3])) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid month %q", s)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
