package xsmvm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Config carries every numeric and behavioral knob that varies by XSM
// build or deployment rather than being a fixed protocol constant.
type Config struct {
	// LineTimeout bounds a single take(n) line read.
	LineTimeout time.Duration `yaml:"line_timeout" json:"line_timeout" jsonschema:"default=1s"`
	// IdleQuantum bounds how long drain() waits for more lines once the
	// channel has gone quiet.
	IdleQuantum time.Duration `yaml:"idle_quantum" json:"idle_quantum" jsonschema:"default=10ms"`
	// ChannelCapacity is the line reader's bounded queue size.
	ChannelCapacity int `yaml:"channel_capacity" json:"channel_capacity" jsonschema:"default=100,minimum=1"`
	// PageSize is XSM's fixed page size in words.
	PageSize int `yaml:"page_size" json:"page_size" jsonschema:"default=512,minimum=1"`
	// KernelMemorySentinel is the kernel-mode code window's upper
	// address bound — kernel mode has no page table to clamp against,
	// so the window needs some fixed ceiling instead.
	KernelMemorySentinel int `yaml:"kernel_memory_sentinel" json:"kernel_memory_sentinel" jsonschema:"default=99999,minimum=1"`
	// SpawnGrace is how long SpawnNew waits after starting the child
	// before concluding it failed to reach its first debug prompt.
	SpawnGrace time.Duration `yaml:"spawn_grace" json:"spawn_grace" jsonschema:"default=200ms"`
	// MemAckLines is the number of lines the memory reader consumes as
	// the `mem` command's acknowledgement; not every XSM build emits
	// exactly one.
	MemAckLines int `yaml:"mem_ack_lines" json:"mem_ack_lines" jsonschema:"default=1,minimum=1"`
}

// DefaultConfig returns reasonable defaults for a locally-run XSM build.
func DefaultConfig() Config {
	return Config{
		LineTimeout:          time.Second,
		IdleQuantum:          10 * time.Millisecond,
		ChannelCapacity:      100,
		PageSize:             512,
		KernelMemorySentinel: 99999,
		SpawnGrace:           200 * time.Millisecond,
		MemAckLines:          1,
	}
}

// GenerateConfigSchema produces a JSON Schema Draft 2020-12 document
// for Config using invopop/jsonschema, the same reflector
// pkg/schema/schema.go uses for its runbook/tool schemas.
func GenerateConfigSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Config{})
	s.ID = "https://github.com/ormasoftchile/xsmdbg/schemas/config-v1.json"
	s.Title = "xsmdbg adapter configuration"
	s.Description = "Schema for the xsmdbg XSM control adapter configuration file"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config schema: %w", err)
	}
	return data, nil
}

// rawConfig mirrors Config for YAML decoding, with duration fields as
// plain strings — gopkg.in/yaml.v3 has no notion of time.Duration, so
// durations are parsed explicitly with time.ParseDuration, the same
// way pkg/tools/jsonrpc.go:parseDuration handles tool-startup timeouts.
type rawConfig struct {
	LineTimeout          string `yaml:"line_timeout"`
	IdleQuantum          string `yaml:"idle_quantum"`
	ChannelCapacity      int    `yaml:"channel_capacity"`
	PageSize             int    `yaml:"page_size"`
	KernelMemorySentinel int    `yaml:"kernel_memory_sentinel"`
	SpawnGrace           string `yaml:"spawn_grace"`
	MemAckLines          int    `yaml:"mem_ack_lines"`
}

// LoadConfigFile parses a YAML config file, validates it against the
// generated JSON Schema, and returns the merged-with-defaults Config.
func LoadConfigFile(data []byte) (Config, error) {
	def := DefaultConfig()
	raw := rawConfig{
		LineTimeout:          def.LineTimeout.String(),
		IdleQuantum:          def.IdleQuantum.String(),
		ChannelCapacity:      def.ChannelCapacity,
		PageSize:             def.PageSize,
		KernelMemorySentinel: def.KernelMemorySentinel,
		SpawnGrace:           def.SpawnGrace.String(),
		MemAckLines:          def.MemAckLines,
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg := Config{
		ChannelCapacity:      raw.ChannelCapacity,
		PageSize:             raw.PageSize,
		KernelMemorySentinel: raw.KernelMemorySentinel,
		MemAckLines:          raw.MemAckLines,
	}
	var err error
	if cfg.LineTimeout, err = time.ParseDuration(raw.LineTimeout); err != nil {
		return Config{}, fmt.Errorf("parse line_timeout: %w", err)
	}
	if cfg.IdleQuantum, err = time.ParseDuration(raw.IdleQuantum); err != nil {
		return Config{}, fmt.Errorf("parse idle_quantum: %w", err)
	}
	if cfg.SpawnGrace, err = time.ParseDuration(raw.SpawnGrace); err != nil {
		return Config{}, fmt.Errorf("parse spawn_grace: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateConfig round-trips cfg through JSON and checks it against the
// generated schema with santhosh-tekuri/jsonschema, mirroring
// pkg/schema/validate.go's semantic-validation phase.
func validateConfig(cfg Config) error {
	schemaJSON, err := GenerateConfigSchema()
	if err != nil {
		return fmt.Errorf("generate config schema: %w", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal config schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("config-v1.json", schemaDoc); err != nil {
		return fmt.Errorf("add config schema resource: %w", err)
	}
	sch, err := c.Compile("config-v1.json")
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal config document: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.ChannelCapacity < 1 || cfg.PageSize < 1 || cfg.KernelMemorySentinel < 1 || cfg.MemAckLines < 1 {
		return fmt.Errorf("config validation failed: all size fields must be positive")
	}
	return nil
}
