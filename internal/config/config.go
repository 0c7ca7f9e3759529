// Package config loads the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/gentanala/mes/internal/domain"
)

// Config is the full application configuration.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Identity  IdentityConfig  `toml:"identity"`
	Logging   LoggingConfig   `toml:"logging"`
	Blueprint BlueprintConfig `toml:"blueprint"`
}

// DatabaseConfig locates the sqlite database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// IdentityConfig names the acting user recorded in the audit trail.
type IdentityConfig struct {
	Actor string `toml:"actor"`
}

// LoggingConfig controls runtime log output.
type LoggingConfig struct {
	Level string `toml:"level"` // debug | info | warn | error
	File  string `toml:"file"`  // optional logfmt sink
}

// BlueprintConfig overrides the built-in workflow. An empty stage list keeps
// the default watch pipeline.
type BlueprintConfig struct {
	ID          string        `toml:"id"`
	Name        string        `toml:"name"`
	ProductType string        `toml:"product_type"`
	Description string        `toml:"description"`
	Stages      []StageConfig `toml:"stages"`
}

// StageConfig is one configured workflow stage.
type StageConfig struct {
	ID                string   `toml:"id"`
	Name              string   `toml:"name"`
	Order             int      `toml:"order"`
	LogicType         string   `toml:"logic_type"`
	AllowedCategories []string `toml:"allowed_categories"`
	DefaultYield      int      `toml:"default_yield"`
	MergeInputCount   int      `toml:"merge_input_count"`
	ExitChannels      []string `toml:"exit_channels"`
	Emoji             string   `toml:"emoji"`
}

// Default returns the configuration used when no file exists.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{Path: dbPath},
		Server:   ServerConfig{Addr: "127.0.0.1:8743"},
		Identity: IdentityConfig{Actor: "operator"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads the file at path over the defaults. A missing or empty file
// keeps the defaults unchanged.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is coherent.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server addr is required")
	}
	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if len(c.Blueprint.Stages) > 0 {
		bp, err := c.Blueprint.ToBlueprint()
		if err != nil {
			return err
		}
		if err := bp.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToBlueprint converts the configured workflow into a domain blueprint. An
// empty stage list yields the built-in default.
func (c BlueprintConfig) ToBlueprint() (domain.WorkflowBlueprint, error) {
	if len(c.Stages) == 0 {
		return domain.DefaultBlueprint(), nil
	}

	bp := domain.WorkflowBlueprint{
		ID:          c.ID,
		Name:        c.Name,
		ProductType: c.ProductType,
		Description: c.Description,
	}
	validChannels := []domain.SalesChannel{
		domain.ChannelShopee, domain.ChannelTokopedia, domain.ChannelWhatsApp,
		domain.ChannelOffline, domain.ChannelB2B, domain.ChannelKOLGift,
	}
	for i, s := range c.Stages {
		stage := domain.WorkflowStage{
			ID:              s.ID,
			Name:            s.Name,
			Order:           s.Order,
			LogicType:       domain.StageLogicType(strings.ToLower(strings.TrimSpace(s.LogicType))),
			DefaultYield:    s.DefaultYield,
			MergeInputCount: s.MergeInputCount,
			Emoji:           s.Emoji,
		}
		for _, cat := range s.AllowedCategories {
			category := domain.MaterialCategory(strings.ToLower(strings.TrimSpace(cat)))
			if !domain.IsValidMaterialCategory(category) {
				return domain.WorkflowBlueprint{}, fmt.Errorf("stages[%d] unknown category %q", i, cat)
			}
			stage.AllowedMaterialCategories = append(stage.AllowedMaterialCategories, category)
		}
		for _, ch := range s.ExitChannels {
			channel := domain.SalesChannel(strings.ToLower(strings.TrimSpace(ch)))
			if !slices.Contains(validChannels, channel) {
				return domain.WorkflowBlueprint{}, fmt.Errorf("stages[%d] unknown channel %q", i, ch)
			}
			stage.ExitChannels = append(stage.ExitChannels, channel)
		}
		bp.Stages = append(bp.Stages, stage)
	}
	return bp, nil
}

// EnsureConfigDir creates the directory that will hold the config file.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
