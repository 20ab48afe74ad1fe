// Package config loads the daemon configuration from environment variables.
// Every override is applied independently: a malformed value leaves the
// corresponding default in place instead of aborting startup.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	portalpay "github.com/portalpay/portalpay"
)

// Environment variable names
const (
	EnvSupportedUnits = "PORTALPAY_SUPPORTED_UNITS"
	EnvUnitMetadata   = "PORTALPAY_UNIT_METADATA"
	EnvNotifyBuffer   = "PORTALPAY_NOTIFY_BUFFER"
	EnvListenAddr     = "PORTALPAY_LISTEN_ADDR"
	EnvReadTimeout    = "PORTALPAY_READ_TIMEOUT"
	EnvWriteTimeout   = "PORTALPAY_WRITE_TIMEOUT"
)

// UnitMetadata is optional descriptive metadata for a supported unit
type UnitMetadata struct {
	Description  string `json:"description,omitempty"`
	ReferenceURL string `json:"reference_url,omitempty"`
	Fungible     bool   `json:"fungible,omitempty"`
}

// unitMetadataSchema validates the PORTALPAY_UNIT_METADATA override: a map
// from unit name to metadata object.
const unitMetadataSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"properties": {
			"description":   {"type": "string"},
			"reference_url": {"type": "string"},
			"fungible":      {"type": "boolean"}
		},
		"additionalProperties": false
	}
}`

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config holds the daemon configuration
type Config struct {
	SupportedUnits []portalpay.CurrencyUnit
	UnitMetadata   map[portalpay.CurrencyUnit]UnitMetadata
	NotifyBuffer   int
	Server         ServerConfig
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		SupportedUnits: []portalpay.CurrencyUnit{portalpay.UnitMsat},
		UnitMetadata:   map[portalpay.CurrencyUnit]UnitMetadata{},
		NotifyBuffer:   32,
		Server: ServerConfig{
			Addr:         ":8333",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// FromEnv applies environment overrides on top of the receiver and returns it
func (c *Config) FromEnv() *Config {
	if unitsStr := os.Getenv(EnvSupportedUnits); unitsStr != "" {
		if units, ok := parseUnits(unitsStr); ok {
			c.SupportedUnits = units
		}
	}

	if metaStr := os.Getenv(EnvUnitMetadata); metaStr != "" {
		if meta, ok := parseUnitMetadata(metaStr); ok {
			c.UnitMetadata = meta
		}
	}

	c.NotifyBuffer = getIntEnv(EnvNotifyBuffer, c.NotifyBuffer)
	c.Server.Addr = getEnv(EnvListenAddr, c.Server.Addr)
	c.Server.ReadTimeout = getDurationEnv(EnvReadTimeout, c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv(EnvWriteTimeout, c.Server.WriteTimeout)

	return c
}

// parseUnits parses a comma-separated unit list. The whole override is
// rejected if any element fails to parse.
func parseUnits(s string) ([]portalpay.CurrencyUnit, bool) {
	parts := strings.Split(s, ",")
	units := make([]portalpay.CurrencyUnit, 0, len(parts))
	for _, part := range parts {
		unit, err := portalpay.ParseCurrencyUnit(part)
		if err != nil {
			return nil, false
		}
		units = append(units, unit)
	}
	return units, true
}

// parseUnitMetadata parses and schema-validates the JSON metadata override
func parseUnitMetadata(s string) (map[portalpay.CurrencyUnit]UnitMetadata, bool) {
	schemaLoader := gojsonschema.NewStringLoader(unitMetadataSchema)
	documentLoader := gojsonschema.NewStringLoader(s)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil || !result.Valid() {
		return nil, false
	}

	var raw map[string]UnitMetadata
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	meta := make(map[portalpay.CurrencyUnit]UnitMetadata, len(raw))
	for name, entry := range raw {
		unit, err := portalpay.ParseCurrencyUnit(name)
		if err != nil {
			return nil, false
		}
		meta[unit] = entry
	}
	return meta, true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
