package virtualsensor

import (
	"fmt"
	"strings"

	"github.com/c360/virtualsensor/codec"
	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/statestore"
)

// DefaultStateKey is the store key holding the persisted description.
const DefaultStateKey = "SensorDescription"

// Config holds configuration for a virtual sensor
type Config struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	StateKey      string `json:"state_key,omitempty" yaml:"state_key,omitempty"`
	Codec         string `json:"codec,omitempty" yaml:"codec,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`
}

// DefaultConfig returns default configuration for a virtual sensor
func DefaultConfig() Config {
	return Config{
		ID:            "urn:virtualsensor:default",
		Name:          "Virtual Sensor",
		StateKey:      DefaultStateKey,
		Codec:         codec.NameJSON,
		SubjectPrefix: "sensors",
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "id is required")
	}
	if strings.Contains(c.ID, TemplateSeparator) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("id must not contain %q", TemplateSeparator))
	}
	if err := statestore.ValidateKey(c.StateKey); err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "state_key: "+err.Error())
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "codec must be one of: json, cbor, yaml")
	}
	if c.SubjectPrefix == "" || strings.ContainsAny(c.SubjectPrefix, " *>") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "subject_prefix must be a valid NATS subject")
	}
	return nil
}

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StateKey == "" {
		c.StateKey = def.StateKey
	}
	if c.Codec == "" {
		c.Codec = def.Codec
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = def.SubjectPrefix
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return c
}
