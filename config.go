package aof

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config carries the tunables a caller may load from a TOML file rather
// than a package-level global (§9 Design Notes): the conductor endpoint,
// default sizing for Create, and the buffer/queue/concurrency knobs of
// §4.4-§4.6. It is threaded explicitly through Create/Open.
type Config struct {
	ConductorEndpoint string `toml:"conductor_endpoint"`

	DefaultReplicaCount int   `toml:"default_replica_count"`
	DefaultAofSizeBytes int64 `toml:"default_aof_size_bytes"`

	AppendBufSize   int `toml:"append_buf_size"`
	EventQueueDepth int `toml:"event_queue_depth"`
	InFlightWindow  int `toml:"in_flight_window"`

	LibraryVersion int `toml:"library_version"`
}

// DefaultConfig returns a Config populated with this client's defaults
// (§4.4, §5); callers typically start here and override via LoadConfig.
func DefaultConfig(conductorEndpoint string) *Config {
	return &Config{
		ConductorEndpoint:   conductorEndpoint,
		DefaultReplicaCount: DefaultReplicaCount,
		DefaultAofSizeBytes: DefaultAofSizeBytes,
		AppendBufSize:       DefaultAppendBufSize,
		EventQueueDepth:     DefaultQueueDepth,
		InFlightWindow:      DefaultInFlightWindow,
		LibraryVersion:      LibraryVersion,
	}
}

// LoadConfig reads a TOML config file and overlays it onto DefaultConfig.
// A missing file is not an error: the defaults are returned unchanged.
func LoadConfig(path, conductorEndpoint string) (*Config, error) {
	cfg := DefaultConfig(conductorEndpoint)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configurable sizes honor §3/§4.4's alignment
// requirements.
func (c *Config) Validate() error {
	if c.AppendBufSize <= 0 || c.AppendBufSize%SectorSize != 0 {
		return NewError("Validate", ErrCodeInvalidParameters, "append_buf_size must be a positive multiple of 4096")
	}
	if c.EventQueueDepth <= 0 {
		return NewError("Validate", ErrCodeInvalidParameters, "event_queue_depth must be positive")
	}
	if c.InFlightWindow <= 0 {
		return NewError("Validate", ErrCodeInvalidParameters, "in_flight_window must be positive")
	}
	if c.DefaultReplicaCount <= 0 {
		return NewError("Validate", ErrCodeInvalidParameters, "default_replica_count must be positive")
	}
	return nil
}
