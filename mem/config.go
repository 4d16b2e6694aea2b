package mem

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config sizes the address space.
type Config struct {
	// AllocatedMemory is the size of the linear memory in bytes.
	// Default: 1 MiB.
	AllocatedMemory uint32 `json:"allocated_memory"`

	// StackSize is the size of the stack region at the top of memory.
	// Must not exceed AllocatedMemory. Default: 64 KiB.
	StackSize uint32 `json:"stack_size"`
}

// DefaultConfig returns the default memory configuration.
func DefaultConfig() Config {
	return Config{
		AllocatedMemory: 1 << 20,
		StackSize:       64 << 10,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read memory config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse memory config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize memory config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a usable address space.
func (c Config) Validate() error {
	if c.AllocatedMemory == 0 {
		return fmt.Errorf("%w: allocated_memory must be > 0", ErrInvalidConfig)
	}
	if c.StackSize > c.AllocatedMemory {
		return fmt.Errorf("%w: stack_size %d exceeds allocated_memory %d",
			ErrInvalidConfig, c.StackSize, c.AllocatedMemory)
	}
	return nil
}
