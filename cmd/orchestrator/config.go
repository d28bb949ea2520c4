// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator process's top-level configuration, loaded
// from an optional YAML file and overlaid with environment variables.
type Config struct {
	Port int `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL string `yaml:"redis_url"`
	JWTSecret string `yaml:"jwt_secret"`

	Registry struct {
 HealthCheckIntervalMs int `yaml:"health_check_interval_ms"`
 HealthCheckTimeoutMs int `yaml:"health_check_timeout_ms"`
 HealthCheckMaxRetries int `yaml:"health_check_max_retries"`
 RemovalGracePeriodMs int `yaml:"removal_grace_period_ms"`
 CircuitBreakerThreshold int `yaml:"circuit_breaker_failure_threshold"`
 CircuitBreakerResetMs int `yaml:"circuit_breaker_reset_timeout_ms"`
	} `yaml:"registry"`

	Router struct {
 DefaultStrategy string `yaml:"default_strategy"`
 MaxCostPerRequest float64 `yaml:"max_cost_per_request"`
 CostBudgetPeriodMs int `yaml:"cost_budget_period_ms"`
 MaxBudgetPerPeriod float64 `yaml:"max_budget_per_period"`
 CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`
 CircuitBreakerResetMs int `yaml:"circuit_breaker_reset_ms"`
 FallbackChain []string `yaml:"fallback_chain"`
	} `yaml:"router"`

	Session struct {
 AutoCheckpoint bool `yaml:"auto_checkpoint"`
 CheckpointInterval int `yaml:"checkpoint_interval"`
 CompactThreshold int `yaml:"compact_threshold"`
	} `yaml:"session"`
}

// DefaultConfig returns a Config populated with the process's documented
// defaults.
func DefaultConfig() Config {
	var c Config
	c.Port = 8081
	c.Registry.HealthCheckIntervalMs = 30000
	c.Registry.HealthCheckTimeoutMs = 5000
	c.Registry.HealthCheckMaxRetries = 3
	c.Registry.RemovalGracePeriodMs = 300000
	c.Registry.CircuitBreakerThreshold = 5
	c.Registry.CircuitBreakerResetMs = 60000
	c.Router.DefaultStrategy = "capability_matched"
	c.Router.MaxCostPerRequest = 10.0
	c.Router.CostBudgetPeriodMs = 3_600_000
	c.Router.MaxBudgetPerPeriod = 100.0
	c.Router.CircuitBreakerThreshold = 5
	c.Router.CircuitBreakerResetMs = 60000
	c.Router.FallbackChain = []string{"anthropic", "openai", "google", "kimi", "groq"}
	c.Session.AutoCheckpoint = true
	c.Session.CheckpointInterval = 10
	c.Session.CompactThreshold = 4000
	return c
}

// LoadConfig reads path (if non-empty and present) as a YAML file with
// ${VAR}/$VAR environment expansion (see expandEnvVars), overlays it onto
// DefaultConfig, then applies a small set of process-level environment
// overrides so a container can be configured without a mounted file.
func LoadConfig(path string) (Config, error) {
	cfg:= DefaultConfig()

	if path != "" {
 data, err:= os.ReadFile(path)
 if err != nil {
 if !os.IsNotExist(err) {
 return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
 }
 } else {
 expanded:= expandEnvVars(string(data))
 if err:= yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
 return cfg, fmt.Errorf("failed to parse config file: %w", err)
 }
 }
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v:= os.Getenv("PORT"); v != "" {
 if p, err:= strconv.Atoi(v); err == nil {
 cfg.Port = p
 }
	}
	if v:= os.Getenv("DATABASE_URL"); v != "" {
 cfg.DatabaseURL = v
	}
	if v:= os.Getenv("REDIS_URL"); v != "" {
 cfg.RedisURL = v
	}
	if v:= os.Getenv("JWT_SECRET"); v != "" {
 cfg.JWTSecret = v
	}
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
 var varName string
 if strings.HasPrefix(match, "${") {
 varName = match[2: len(match)-1]
 } else {
 varName = match[1:]
 }

 defaultVal:= ""
 if idx:= strings.Index(varName, ":-"); idx != -1 {
 defaultVal = varName[idx+2:]
 varName = varName[:idx]
 }

 if value:= os.Getenv(varName); value != "" {
 return value
 }
 if defaultVal != "" {
 return defaultVal
 }
 return ""
	})
}

// checkpointCadence is the Session Manager's auto-checkpoint interval as a
// time.Duration, derived from Config.Session.CheckpointInterval.
func (c Config) checkpointCadence() time.Duration {
	if c.Session.CheckpointInterval <= 0 {
 return 10 * time.Second
	}
	return time.Duration(c.Session.CheckpointInterval) * time.Second
}
