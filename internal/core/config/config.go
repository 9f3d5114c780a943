package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type PlacesCfg struct {
	APIKey        string
	BaseURL       string
	Type          string
	PageDelay     time.Duration
	MaxPages      int
	PhotoMaxWidth int
	Timeout       time.Duration
}

type CacheCfg struct {
	Backend        string
	TTL            time.Duration
	MaxEntries     int
	KeyH3Res       int
	OpTimeout      time.Duration
	RedisAddr      string
	CoalesceMisses bool
}

type SearchEventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	MetricsEnabled bool
	AllowedOrigins []string
	Places         PlacesCfg
	Cache          CacheCfg
	SearchEvents   SearchEventsCfg
}

var defaultOrigins = "https://restaurant-finder-pink.vercel.app,http://localhost:5173"

func FromEnv() Config {
	port := getint("PORT", 5000)

	h3Res := getint("CACHE_KEY_H3_RES", -1)
	if h3Res > 15 {
		h3Res = 15
	}
	if h3Res < -1 {
		h3Res = -1
	}

	// 0 follows page tokens until the provider stops returning one
	maxPages := getint("PLACES_MAX_PAGES", 5)
	if maxPages < 0 {
		maxPages = 5
	}

	return Config{
		Addr:           getenv("ADDR", ":"+strconv.Itoa(port)),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", defaultOrigins)),
		Places: PlacesCfg{
			APIKey:        os.Getenv("GOOGLE_API_KEY"),
			BaseURL:       strings.TrimRight(getenv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"), "/"),
			Type:          getenv("PLACES_TYPE", "restaurant"),
			PageDelay:     getduration("PLACES_PAGE_DELAY", 2*time.Second),
			MaxPages:      maxPages,
			PhotoMaxWidth: getint("PLACES_PHOTO_MAX_WIDTH", 400),
			Timeout:       getduration("PLACES_TIMEOUT", 30*time.Second),
		},
		Cache: CacheCfg{
			Backend:        strings.ToLower(getenv("CACHE_BACKEND", "memory")),
			TTL:            getduration("CACHE_TTL", 10*time.Minute),
			MaxEntries:     getint("CACHE_MAX_ENTRIES", 0),
			KeyH3Res:       h3Res,
			OpTimeout:      getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
			CoalesceMisses: getbool("COALESCE_MISSES", false),
		},
		SearchEvents: SearchEventsCfg{
			Enabled: getbool("SEARCH_EVENTS_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "restaurant-searches"),
		},
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,,c" into [a b c]
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
