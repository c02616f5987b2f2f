package authz

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the file representation of the rule tables plus engine tuning.
// Configuration is trusted operator input loaded at startup; it is the only
// path besides code that builds condition trees.
type Config struct {
	Version  uint16                  `json:"version" yaml:"version"`
	RuleSets map[string][]RuleConfig `json:"rule_sets" yaml:"rule_sets"`
	Engine   EngineConfig            `json:"engine" yaml:"engine"`
}

// RuleConfig is one rule row in a config file.
type RuleConfig struct {
	Condition   string `json:"condition" yaml:"condition"`
	Level       string `json:"level" yaml:"level"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// EngineConfig carries tuning knobs for the engine and the store decorators.
type EngineConfig struct {
	AuditBuffer     int   `json:"audit_buffer,omitempty" yaml:"audit_buffer,omitempty"`
	GrantCacheTTLMS int64 `json:"grant_cache_ttl_ms,omitempty" yaml:"grant_cache_ttl_ms,omitempty"`
}

// ConfigLoader loads configuration from supported formats.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports config to YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate parses every rule without building a registry.
func (c *Config) Validate() error {
	for resourceType, rules := range c.RuleSets {
		if len(rules) == 0 {
			return fmt.Errorf("resource type %q has an empty rule table", resourceType)
		}
		for i, rc := range rules {
			if _, err := ParseCondition(rc.Condition); err != nil {
				return fmt.Errorf("resource type %q rule %d: %w", resourceType, i, err)
			}
			if _, err := ParseAccessLevel(rc.Level); err != nil {
				return fmt.Errorf("resource type %q rule %d: %w", resourceType, i, err)
			}
		}
	}
	return nil
}

// BuildRegistry compiles the config into a Registry. Call once at startup;
// the result is read-only afterwards.
func (c *Config) BuildRegistry() (*Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := NewRegistry()
	// deterministic registration order for reproducible startup logs
	types := make([]string, 0, len(c.RuleSets))
	for t := range c.RuleSets {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, resourceType := range types {
		rules := make([]AccessRule, 0, len(c.RuleSets[resourceType]))
		for _, rc := range c.RuleSets[resourceType] {
			cond, err := ParseCondition(rc.Condition)
			if err != nil {
				return nil, fmt.Errorf("resource type %q: %w", resourceType, err)
			}
			level, err := ParseAccessLevel(rc.Level)
			if err != nil {
				return nil, fmt.Errorf("resource type %q: %w", resourceType, err)
			}
			rules = append(rules, AccessRule{Condition: cond, Level: level, Description: rc.Description})
		}
		r.Register(resourceType, rules)
	}
	return r, nil
}

// DefaultConfig renders the stock rule tables as a Config, mainly for the
// CLI's convert and stats commands.
func DefaultConfig() *Config {
	reg := DefaultRegistry()
	cfg := &Config{Version: 1, RuleSets: make(map[string][]RuleConfig)}
	for _, resourceType := range reg.Types() {
		rules := reg.Rules(resourceType)
		rcs := make([]RuleConfig, 0, len(rules))
		for _, rule := range rules {
			rcs = append(rcs, RuleConfig{
				Condition:   rule.Condition.String(),
				Level:       rule.Level.String(),
				Description: rule.Description,
			})
		}
		cfg.RuleSets[resourceType] = rcs
	}
	return cfg
}
