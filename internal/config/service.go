package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// ServiceConfig holds the effective runtime settings of the database service.
// Values carries every key of the override section, recognized or not.
type ServiceConfig struct {
	DataDir    string
	Executable string
	Values     map[string]string
}

// Port returns the effective service port.
func (s ServiceConfig) Port() string {
	return s.Values["port"]
}

// Value returns a merged key, or "" when absent.
func (s ServiceConfig) Value(key string) string {
	return s.Values[strings.ToLower(key)]
}

// ServiceDefaults are the compiled-in values the override file is merged over.
func (c *Config) ServiceDefaults() map[string]string {
	return map[string]string{
		"port":     c.Service.Port,
		"user":     "",
		"password": "",
		"db":       c.Service.Resource,
	}
}

// LoadServiceConfig merges section from the INI file at path over defaults.
// A missing file yields the defaults unchanged.
func LoadServiceConfig(path, section string, defaults map[string]string) (map[string]string, bool, error) {
	merged := make(map[string]string, len(defaults))
	for k, v := range defaults {
		merged[strings.ToLower(k)] = v
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return merged, false, nil
		}
		return nil, false, fmt.Errorf("stat service config: %w", err)
	}

	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return nil, true, fmt.Errorf("parse service config %s: %w", path, err)
	}
	sec, err := file.GetSection(strings.ToLower(section))
	if err != nil {
		return merged, true, nil
	}
	overrides := make(map[string]string, len(sec.Keys()))
	for _, key := range sec.Keys() {
		overrides[key.Name()] = strings.TrimSpace(key.String())
	}
	maps.Copy(merged, overrides)
	return merged, true, nil
}

// BuildServiceConfig assembles the ServiceConfig for goos from the home override file.
func (c *Config) BuildServiceConfig(goos string) (ServiceConfig, error) {
	values, _, err := LoadServiceConfig(c.ServiceFilePath(), c.Service.Section, c.ServiceDefaults())
	if err != nil {
		return ServiceConfig{}, err
	}
	if err := ValidatePort(values["port"]); err != nil {
		return ServiceConfig{}, fmt.Errorf("%s [%s] port: %w", c.ServiceFilePath(), c.Service.Section, err)
	}
	return ServiceConfig{
		DataDir:    c.ServiceDataPath(),
		Executable: c.ServiceBinaryPath(goos),
		Values:     values,
	}, nil
}
