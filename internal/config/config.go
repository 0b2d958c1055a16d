// Package config loads node configuration from YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Backing names.
const (
	BackingHeap = "heap"
	BackingMmap = "mmap"
)

// Config is the full configuration of one node.
type Config struct {
	Node      Node      `mapstructure:"node"`
	Region    Region    `mapstructure:"region"`
	Engine    Engine    `mapstructure:"engine"`
	Admin     Admin     `mapstructure:"admin"`
	Discovery Discovery `mapstructure:"discovery"`
	Log       Log       `mapstructure:"log"`
}

// Node identifies this node and how it reaches its peer.
type Node struct {
	ID     string `mapstructure:"id"`
	Listen string `mapstructure:"listen"`
	Peer   string `mapstructure:"peer"`
}

// Region describes the shared memory region.
type Region struct {
	Name     string `mapstructure:"name"`
	Base     uint64 `mapstructure:"base"`
	Pages    int    `mapstructure:"pages"`
	PageSize int    `mapstructure:"page_size"`
	Backing  string `mapstructure:"backing"`
}

type Engine struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxHandlers int           `mapstructure:"max_handlers"`
}

type Admin struct {
	Addr string `mapstructure:"addr"`
}

// Discovery enables peer lookup through Redis. It is off when RedisAddr is empty.
type Discovery struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Region: Region{
			Name:     "default",
			Base:     0x10000000,
			Pages:    16,
			PageSize: domain.DefaultPageSize,
			Backing:  BackingHeap,
		},
		Engine: Engine{
			Timeout: 5 * time.Second,
		},
		Discovery: Discovery{
			Prefix: "coherence:",
			TTL:    30 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := Parse(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes data into cfg. ext selects JSON for ".json" and YAML otherwise.
// Keys absent from data keep their current value.
func Parse(data []byte, ext string, cfg *Config) error {
	raw := map[string]any{}
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse config json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse config yaml: %w", err)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// Validate checks that the configuration describes a runnable node.
func (c Config) Validate() error {
	var errs []error

	if ps := c.Region.PageSize; ps <= 0 || ps&(ps-1) != 0 {
		errs = append(errs, fmt.Errorf("region.page_size must be a positive power of two, got %d", ps))
	} else if c.Region.Base%uint64(ps) != 0 {
		errs = append(errs, fmt.Errorf("region.base %#x is not aligned to the page size", c.Region.Base))
	}
	if c.Region.Pages <= 0 {
		errs = append(errs, fmt.Errorf("region.pages must be positive, got %d", c.Region.Pages))
	}
	switch c.Region.Backing {
	case BackingHeap, BackingMmap:
	default:
		errs = append(errs, fmt.Errorf("region.backing must be %q or %q, got %q", BackingHeap, BackingMmap, c.Region.Backing))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, errors.New("engine.timeout must not be negative"))
	}

	switch {
	case c.Discovery.RedisAddr != "":
		if c.Node.Listen == "" {
			errs = append(errs, errors.New("discovery needs node.listen to announce"))
		}
		if c.Node.Peer != "" {
			errs = append(errs, errors.New("node.peer and discovery are mutually exclusive"))
		}
		if c.Discovery.TTL <= 0 {
			errs = append(errs, errors.New("discovery.ttl must be positive"))
		}
		if c.Region.Name == "" {
			errs = append(errs, errors.New("discovery needs region.name"))
		}
	case c.Node.Listen != "" && c.Node.Peer != "":
		errs = append(errs, errors.New("set only one of node.listen and node.peer"))
	case c.Node.Listen == "" && c.Node.Peer == "":
		errs = append(errs, errors.New("one of node.listen, node.peer or discovery.redis_addr is required"))
	}

	return errors.Join(errs...)
}
