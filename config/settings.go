package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings  `json:"server"`
	Source    SourceSettings  `json:"source"`
	Cache     CacheSettings   `json:"cache"`
	Filtering FilterSettings  `json:"filtering"`
	Monitor   MonitorSettings `json:"monitor"`
	Log       LogConfig       `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SourceSettings configures the upstream listing site and the resilience
// envelope applied to every fetch against it.
type SourceSettings struct {
	BaseURL           string `json:"baseUrl"`
	AdultBaseURL      string `json:"adultBaseUrl"` // empty disables the adult variant
	UserAgent         string `json:"userAgent"`
	RequestTimeoutSec int    `json:"requestTimeoutSec"`
	ThrottleMs        int    `json:"throttleMs"` // minimum spacing between fetches per instance
	MaxRetries        int    `json:"maxRetries"`
	MaxPageSize       int    `json:"maxPageSize"`
}

func (s SourceSettings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

func (s SourceSettings) Throttle() time.Duration {
	return time.Duration(s.ThrottleMs) * time.Millisecond
}

type CacheSettings struct {
	DefaultTTLSec int    `json:"defaultTtlSec"`
	MaxEntries    int    `json:"maxEntries"` // in-process tier bound, FIFO eviction beyond it
	RedisAddr     string `json:"redisAddr"`  // empty disables the shared tier
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDb"`
}

func (s CacheSettings) DefaultTTL() time.Duration {
	return time.Duration(s.DefaultTTLSec) * time.Second
}

// FilterSettings controls content filtering. The built-in keyword denylist
// is always active and has no switch here; BlockedKeywords only adds to it.
type FilterSettings struct {
	NSFWFilter        *bool    `json:"nsfwFilter"` // nil defaults to true
	BlockedCategories []string `json:"blockedCategories"`
	BlockedKeywords   []string `json:"blockedKeywords"`
	TrustedOnly       bool     `json:"trustedOnly"`
}

// NSFW reports whether adult-category exclusion is enabled.
func (s FilterSettings) NSFW() bool {
	return s.NSFWFilter == nil || *s.NSFWFilter
}

type MonitorSettings struct {
	IntervalSec int `json:"intervalSec"`
}

func (s MonitorSettings) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// Defaults returns the settings written on first start.
func Defaults() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7050},
		Source: SourceSettings{
			BaseURL:           "https://nyaa.si",
			AdultBaseURL:      "https://sukebei.nyaa.si",
			UserAgent:         "nyaadex/1.0",
			RequestTimeoutSec: 15,
			ThrottleMs:        1000,
			MaxRetries:        3,
			MaxPageSize:       75,
		},
		Cache: CacheSettings{
			DefaultTTLSec: 300,
			MaxEntries:    500,
		},
		Filtering: FilterSettings{},
		Monitor:   MonitorSettings{IntervalSec: 300},
		Log:       LogConfig{MaxSize: 20, MaxAge: 14, MaxBackups: 3, Compress: true},
	}
}

// Manager loads and persists settings at a fixed path.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

// Load reads settings from disk, creating the file with defaults when it
// does not exist yet. Fields missing from older config files are backfilled.
func (m *Manager) Load() (Settings, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s := Defaults()
			if saveErr := m.Save(s); saveErr != nil {
				return Settings{}, saveErr
			}
			return s, nil
		}
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	backfill(&s)
	return s, nil
}

// Save writes settings to disk, creating parent directories as needed.
func (m *Manager) Save(s Settings) error {
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

// backfill fills defaults for fields a config predating them leaves unset.
func backfill(s *Settings) {
	d := Defaults()

	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}

	if strings.TrimSpace(s.Source.BaseURL) == "" {
		s.Source.BaseURL = d.Source.BaseURL
	}
	s.Source.BaseURL = strings.TrimRight(s.Source.BaseURL, "/")
	s.Source.AdultBaseURL = strings.TrimRight(s.Source.AdultBaseURL, "/")
	if strings.TrimSpace(s.Source.UserAgent) == "" {
		s.Source.UserAgent = d.Source.UserAgent
	}
	if s.Source.RequestTimeoutSec == 0 {
		s.Source.RequestTimeoutSec = d.Source.RequestTimeoutSec
	}
	if s.Source.ThrottleMs == 0 {
		s.Source.ThrottleMs = d.Source.ThrottleMs
	}
	if s.Source.MaxRetries == 0 {
		s.Source.MaxRetries = d.Source.MaxRetries
	}
	if s.Source.MaxPageSize == 0 {
		s.Source.MaxPageSize = d.Source.MaxPageSize
	}

	if s.Cache.DefaultTTLSec == 0 {
		s.Cache.DefaultTTLSec = d.Cache.DefaultTTLSec
	}
	if s.Cache.MaxEntries == 0 {
		s.Cache.MaxEntries = d.Cache.MaxEntries
	}

	if s.Monitor.IntervalSec == 0 {
		s.Monitor.IntervalSec = d.Monitor.IntervalSec
	}

	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = d.Log.MaxSize
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = d.Log.MaxAge
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = d.Log.MaxBackups
	}
}
