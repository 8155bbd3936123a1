// Package config loads zoomrelay settings from CLI flags, environment
// variables and a TOML file, and watches that file for changes.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/zoomrelay/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` tag when looking up variables.
const EnvPrefix = "ZOOMRELAY_"

// LoadConfig loads configuration with proper precedence: CLI args > env vars > config file.
// If cmd is provided, flags explicitly set via CLI will not be overwritten.
// A missing config file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()

	changedFlags := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		})
	}

	var configPath string
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		configPath = f.String()
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if applyErr := applyTOML(v, data, changedFlags); applyErr != nil {
				return applyErr
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	applyEnv(v, changedFlags)
	return nil
}

func applyTOML(v reflect.Value, data []byte, changedFlags map[string]bool) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changedFlags[flagName(fieldType)] {
			continue
		}
		if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" {
			if value := getNestedValue(doc, tomlPath); value != nil {
				setFieldValue(v.Field(i), value)
			}
		}
	}
	return nil
}

func applyEnv(v reflect.Value, changedFlags map[string]bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changedFlags[flagName(fieldType)] {
			continue
		}
		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue := os.Getenv(EnvPrefix + envKey); envValue != "" {
				setFieldValueFromString(v.Field(i), envValue)
			}
		}
	}
}

// flagName returns the CLI flag bound to a struct field: the `name` tag if
// present, otherwise the kebab-cased field name.
func flagName(field reflect.StructField) string {
	if name := field.Tag.Get("name"); name != "" {
		return name
	}
	return fieldNameToFlag(field.Name)
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "ListenHost" -> "listen-host", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// setFieldValue sets a field from a decoded TOML value.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		switch i := value.(type) {
		case int64:
			field.SetInt(i)
		case int:
			field.SetInt(int64(i))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		if arr, ok := value.([]any); ok {
			slice := make([]string, len(arr))
			for i, v := range arr {
				if s, strOk := v.(string); strOk {
					slice[i] = s
				}
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// setFieldValueFromString sets a field value from string (for env vars).
// Unparsable values leave the field untouched.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// ReadLoggingConfig reads the [logging] table of a TOML file. Keys other
// than level and format are per-module levels.
func ReadLoggingConfig(configPath string) (logging.Config, error) {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	var rawConfig struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &rawConfig); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for key, value := range rawConfig.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg, nil
}

// LoadLoggingConfig is ReadLoggingConfig falling back to defaults when the
// file is missing or malformed.
func LoadLoggingConfig(configPath string) logging.Config {
	if configPath == "" {
		return logging.Config{Level: "info", Format: "text", Modules: make(map[string]string)}
	}
	cfg, err := ReadLoggingConfig(configPath)
	if err != nil {
		return logging.Config{Level: "info", Format: "text", Modules: make(map[string]string)}
	}
	return cfg
}
