/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads YAML configuration (no environment-variable overrides
// are applied to its values) and watches the file for changes so read-only registry snapshots (active
// provider, active channels) can refresh without restarting in-flight runs.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	HTTPPort    string `yaml:"http_port"`
	MetricsPort string `yaml:"metrics_port"`
}

type StageConfig struct {
	DefaultMaxRetries     int           `yaml:"default_max_retries"`
	DefaultRunTimeout     time.Duration `yaml:"default_run_timeout"`
	DefaultStageTimeout   time.Duration `yaml:"default_stage_timeout"`
	CheckConcurrency      int           `yaml:"check_concurrency"`
	NotifyConcurrency     int           `yaml:"notify_concurrency"`
	// NotifyRatePerSecond caps outbound notification-driver calls across the
	// whole dispatcher; zero/negative leaves delivery unlimited.
	NotifyRatePerSecond float64 `yaml:"notify_rate_per_second"`
}

type StorageConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DiskCheckerConfig parameterizes the illustrative "disk" checker (§4.2's
// opaque checker registry — concrete checkers stay trivial by design).
type DiskCheckerConfig struct {
	Path             string  `yaml:"path"`
	WarnPercent      float64 `yaml:"warn_percent"`
	CriticalPercent  float64 `yaml:"critical_percent"`
}

// ProcessCheckerConfig parameterizes the illustrative "process" checker.
type ProcessCheckerConfig struct {
	Name    string `yaml:"name"`
	PIDFile string `yaml:"pid_file"`
}

type CheckersConfig struct {
	Disk    DiskCheckerConfig    `yaml:"disk"`
	Process ProcessCheckerConfig `yaml:"process"`
}

// IntelligenceConfig carries the optional third-party provider credentials;
// an empty AnthropicAPIKey, BedrockRegion or LangchainAPIKey skips
// registering that provider (an empty base URL does not), leaving the
// always-present local rule engine as the sole fallback.
type IntelligenceConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	BedrockRegion   string `yaml:"bedrock_region"`
	BedrockModelID  string `yaml:"bedrock_model_id"`
	LangchainAPIKey  string `yaml:"langchain_api_key"`
	LangchainBaseURL string `yaml:"langchain_base_url"`
	LangchainModel   string `yaml:"langchain_model"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Stages       StageConfig        `yaml:"stages"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	Checkers     CheckersConfig     `yaml:"checkers"`
	Intelligence IntelligenceConfig `yaml:"intelligence"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    "8080",
			MetricsPort: "9090",
		},
		Stages: StageConfig{
			DefaultMaxRetries:   3,
			DefaultRunTimeout:   300 * time.Second,
			DefaultStageTimeout: 30 * time.Second,
			CheckConcurrency:    8,
			NotifyConcurrency:   8,
			NotifyRatePerSecond: 20,
		},
		Storage: StorageConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Checkers: CheckersConfig{
			Disk: DiskCheckerConfig{
				Path:            "/",
				WarnPercent:     80,
				CriticalPercent: 95,
			},
			Process: ProcessCheckerConfig{
				Name:    "pipeline-service",
				PIDFile: "/var/run/pipeline-service.pid",
			},
		},
	}
}

// Load reads and parses the YAML file at path, applying defaults for any
// field the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Watcher reloads Config from disk whenever the underlying file changes and
// publishes the latest snapshot atomically; readers call Current() rather
// than holding onto a pointer across reloads.
type Watcher struct {
	mu      sync.RWMutex
	current *Config
	path    string
	watcher *fsnotify.Watcher
	onLoad  func(*Config)
}

func NewWatcher(path string, onLoad func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	w := &Watcher{current: cfg, path: path, watcher: fw, onLoad: onLoad}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			if w.onLoad != nil {
				w.onLoad(cfg)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
