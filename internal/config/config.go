// Package config loads node and coordinator configuration through a
// layered viper.Viper instance (flags > environment > config file >
// defaults), replacing a bare getenv/mustGetenv pair with
// the pack's richer config-loading convention while preserving the same
// "required vs. defaulted" distinction: Load still terminates construction
// with an error (not log.Fatal — callers decide how to fail) when a
// required key is missing, matching mustGetenv's intent without its
// process-exit side effect.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/dreamware/ftindex/internal/enginerr"
)

// NodeConfig is a single node's runtime configuration.
type NodeConfig struct {
	NodeID          string `mapstructure:"node_id"`
	Listen          string `mapstructure:"listen"`
	PublicAddr      string `mapstructure:"public_addr"`
	CoordinatorAddr string `mapstructure:"coordinator_addr"`
	DataDir         string `mapstructure:"data_dir"`
	GossipInterval  string `mapstructure:"gossip_interval"`
}

// CoordinatorConfig is the coordinator's runtime configuration.
type CoordinatorConfig struct {
	Listen      string `mapstructure:"listen"`
	NumSlots    int    `mapstructure:"num_slots"`
	HealthCheck string `mapstructure:"health_check_interval"`
}

// newViper builds a viper.Viper that reads FTINDEX_-prefixed environment
// variables (e.g. FTINDEX_NODE_ID -> node_id), an optional config file
// named by configPath, and falls back to the given defaults.
func newViper(configPath string, defaults map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("FTINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		// A missing config file is not an error: env vars and defaults
		// are a complete configuration on their own, matching getenv's
		// original "optional with fallback" behavior.
		_ = v.ReadInConfig()
	}
	return v
}

// LoadNode builds a NodeConfig from configPath (may be empty) layered
// under environment variables and defaults. node_id and
// coordinator_addr have no default and are required, mirroring the
// teacher's mustGetenv("NODE_ID")/mustGetenv("COORDINATOR_ADDR").
func LoadNode(configPath string) (NodeConfig, error) {
	v := newViper(configPath, map[string]any{
		"listen":          ":8081",
		"public_addr":     "http://127.0.0.1:8081",
		"data_dir":        "./data",
		"gossip_interval": "2s",
	})

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return NodeConfig{}, enginerr.Wrap(enginerr.InvalidArgument, "failed to parse node config", err)
	}
	cfg.NodeID = v.GetString("node_id")
	cfg.CoordinatorAddr = v.GetString("coordinator_addr")

	if cfg.NodeID == "" {
		return NodeConfig{}, enginerr.New(enginerr.InvalidArgument, "missing required config: node_id (set FTINDEX_NODE_ID or node_id in config file)")
	}
	if cfg.CoordinatorAddr == "" {
		return NodeConfig{}, enginerr.New(enginerr.InvalidArgument, "missing required config: coordinator_addr (set FTINDEX_COORDINATOR_ADDR or coordinator_addr in config file)")
	}
	return cfg, nil
}

// LoadCoordinator builds a CoordinatorConfig from configPath layered
// under environment variables and defaults. Unlike node configuration,
// every coordinator field has a usable default, so none of them are
// ever required.
func LoadCoordinator(configPath string) (CoordinatorConfig, error) {
	v := newViper(configPath, map[string]any{
		"listen":                ":8080",
		"num_slots":             16384,
		"health_check_interval": "5s",
	})

	var cfg CoordinatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return CoordinatorConfig{}, enginerr.Wrap(enginerr.InvalidArgument, "failed to parse coordinator config", err)
	}
	return cfg, nil
}
