package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Get returns the value at a dotted key ("workflows.max_review_iterations")
// from the effective configuration.
func Get(cfg *Config, key string) (any, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	cur := any(m)
	for _, part := range strings.Split(key, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config key %q not found", key)
		}
		cur, ok = node[part]
		if !ok {
			return nil, fmt.Errorf("config key %q not found", key)
		}
	}
	return cur, nil
}

// Set writes a dotted key into the user-level config file, coercing the
// value to bool or int where it parses as one. The effective config is
// re-merged on next Load.
func Set(key, value string) error {
	userPath, err := UserConfigPath()
	if err != nil {
		return err
	}

	existing := map[string]any{}
	if data, err := os.ReadFile(userPath); err == nil {
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parsing %s: %w", userPath, err)
		}
	}

	parts := strings.Split(key, ".")
	node := existing
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = coerce(value)

	if err := os.MkdirAll(filepath.Dir(userPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(userPath, data, 0644)
}

// Keys returns all dotted keys of the effective configuration, sorted.
func Keys(cfg *Config) ([]string, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	var keys []string
	collectKeys("", m, &keys)
	sort.Strings(keys)
	return keys, nil
}

func collectKeys(prefix string, m map[string]any, out *[]string) {
	for k, v := range m {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			collectKeys(full, child, out)
			continue
		}
		*out = append(*out, full)
	}
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func coerce(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}
