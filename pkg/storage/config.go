package storage

import (
	"fmt"
	"maps"
	"strconv"
)

// Options recognised by the core and the bundled adapters.
const (
	// OptionVisibility sets the visibility of written files.
	OptionVisibility = "visibility"

	// OptionDirectoryVisibility sets the visibility of directories created
	// explicitly or implicitly by a write.
	OptionDirectoryVisibility = "directory_visibility"

	// OptionChecksumAlgo selects the checksum algorithm (default md5).
	OptionChecksumAlgo = "checksum_algo"

	// OptionRetainVisibility makes copy and move keep the source visibility
	// when no explicit visibility is configured (default true).
	OptionRetainVisibility = "retain_visibility"
)

// Config is an immutable option bag passed to write-like operations.
//
// Every mutating method returns a new Config; the receiver is never changed.
// The zero value is an empty, usable Config.
type Config struct {
	options map[string]any
}

// NewConfig creates a Config holding a copy of options.
func NewConfig(options map[string]any) Config {
	return Config{options: maps.Clone(options)}
}

// Get returns the raw value stored for key.
func (c Config) Get(key string) (any, bool) {
	v, ok := c.options[key]
	return v, ok
}

// GetString returns key as a string, or fallback when absent or empty.
func (c Config) GetString(key, fallback string) string {
	v, ok := c.options[key]
	if !ok || v == nil {
		return fallback
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case Visibility:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}

	if s == "" {
		return fallback
	}
	return s
}

// GetBool returns key as a bool, or fallback when absent or unparsable.
func (c Config) GetBool(key string, fallback bool) bool {
	v, ok := c.options[key]
	if !ok {
		return fallback
	}

	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return fallback
		}
		return b
	default:
		return fallback
	}
}

// Visibility returns the visibility configured under key, if any. Invalid
// values are reported as an error wrapping ErrInvalidVisibility.
func (c Config) Visibility(key string) (Visibility, bool, error) {
	raw := c.GetString(key, "")
	if raw == "" {
		return "", false, nil
	}
	v, err := ParseVisibility(raw)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Extend overlays options on top of the receiver. New keys win.
func (c Config) Extend(options map[string]any) Config {
	merged := make(map[string]any, len(c.options)+len(options))
	maps.Copy(merged, c.options)
	maps.Copy(merged, options)
	return Config{options: merged}
}

// WithDefaults overlays the receiver on top of defaults. Existing keys win.
func (c Config) WithDefaults(defaults map[string]any) Config {
	merged := make(map[string]any, len(c.options)+len(defaults))
	maps.Copy(merged, defaults)
	maps.Copy(merged, c.options)
	return Config{options: merged}
}

// WithSetting returns a copy with key set to value.
func (c Config) WithSetting(key string, value any) Config {
	return c.Extend(map[string]any{key: value})
}

// Without returns a copy with key removed.
func (c Config) Without(key string) Config {
	clone := maps.Clone(c.options)
	delete(clone, key)
	return Config{options: clone}
}

// Options returns a copy of all options.
func (c Config) Options() map[string]any {
	if c.options == nil {
		return map[string]any{}
	}
	return maps.Clone(c.options)
}
