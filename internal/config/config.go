package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BBox is an inclusive lat/lon window used to filter exported nodes. A nil
// BBox passes everything, so callers can thread the result of ParseBBox
// through without checking whether a filter was given.
type BBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func (b *BBox) Contains(lat, lon float64) bool {
	if b == nil {
		return true
	}
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}

// ParseBBox reads the osmosis-style "minlon,minlat,maxlon,maxlat" form.
// An empty string means no filter and parses to nil.
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox %q: want minlon,minlat,maxlon,maxlat", s)
	}
	var vals [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox coordinate %q: %w", part, err)
		}
		vals[i] = v
	}
	b := &BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return nil, fmt.Errorf("bbox %q: min corner exceeds max corner", s)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return nil, fmt.Errorf("bbox %q: outside valid lat/lon range", s)
	}
	return b, nil
}

// Config holds the settings shared by the CLI tools
type Config struct {
	// Input settings
	InputFile string
	BBox      *BBox

	// Output settings
	OutputDir string

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Processing settings
	Workers        int
	BatchSize      int
	DecodeMetadata bool

	Verbose bool

	// Logging and metrics
	LogFile         string
	MetricsInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       "./osm_data",
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBPassword:      "",
		DBSchema:        "public",
		Workers:         runtime.NumCPU(),
		BatchSize:       50000,
		Verbose:         false,
		LogFile:         "",
		MetricsInterval: 30 * time.Second,
	}
}

// fileConfig mirrors the YAML schema. Pointer fields distinguish "absent"
// from zero so a config file only overrides the keys it names.
type fileConfig struct {
	OutputDir       *string `yaml:"output_dir"`
	DBHost          *string `yaml:"db_host"`
	DBPort          *int    `yaml:"db_port"`
	DBName          *string `yaml:"db_name"`
	DBUser          *string `yaml:"db_user"`
	DBPassword      *string `yaml:"db_password"`
	DBSchema        *string `yaml:"db_schema"`
	Workers         *int    `yaml:"workers"`
	BatchSize       *int    `yaml:"batch_size"`
	DecodeMetadata  *bool   `yaml:"decode_metadata"`
	Verbose         *bool   `yaml:"verbose"`
	LogFile         *string `yaml:"log_file"`
	MetricsInterval *string `yaml:"metrics_interval"`
}

// LoadFile merges a YAML config file over the current settings
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.OutputDir, fc.OutputDir)
	setString(&c.DBHost, fc.DBHost)
	setInt(&c.DBPort, fc.DBPort)
	setString(&c.DBName, fc.DBName)
	setString(&c.DBUser, fc.DBUser)
	setString(&c.DBPassword, fc.DBPassword)
	setString(&c.DBSchema, fc.DBSchema)
	setInt(&c.Workers, fc.Workers)
	setInt(&c.BatchSize, fc.BatchSize)
	setBool(&c.DecodeMetadata, fc.DecodeMetadata)
	setBool(&c.Verbose, fc.Verbose)
	setString(&c.LogFile, fc.LogFile)
	if fc.MetricsInterval != nil {
		d, err := time.ParseDuration(*fc.MetricsInterval)
		if err != nil {
			return fmt.Errorf("parse config %s: metrics_interval: %w", path, err)
		}
		c.MetricsInterval = d
	}
	return nil
}

// DatabaseURL assembles the postgres:// URL pgx connects with. URL form
// rather than keyword/value pairs so passwords with spaces or quotes
// survive escaping.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate rejects settings a run cannot proceed with. Worker counts above
// the hardware parallelism are not an error here; the decoder clamps them.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return errors.New("no input file given")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers = %d, need at least 1", c.Workers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size = %d, need at least 1", c.BatchSize)
	}
	if c.DBPort < 1 || c.DBPort > 65535 {
		return fmt.Errorf("db port %d out of range", c.DBPort)
	}
	if c.MetricsInterval < 0 {
		return fmt.Errorf("metrics interval %v is negative", c.MetricsInterval)
	}
	return nil
}
