package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
	Auth      AuthConfig      `json:"auth"`
	Admission AdmissionConfig `json:"admission"`
	Services  []ServiceConfig `json:"services"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type AuthConfig struct {
	JWTSecret   string `json:"-"`
	ExpiryHours int    `json:"jwt_expiry_hours"`
}

type AdmissionConfig struct {
	// PolicyFile points at the YAML file holding endpoint categories,
	// limit rules and quota plans.
	PolicyFile string `json:"policy_file"`

	// Store selects where limiter and quota state lives: "memory"
	// (per-process) or "redis" (shared across processes).
	Store string `json:"store"`

	// SweepSchedule is a cron spec for evicting idle rate-limit keys.
	SweepSchedule string `json:"sweep_schedule"`

	// LogRetentionDays bounds how long admission logs are kept.
	LogRetentionDays int `json:"log_retention_days"`
}

// ServiceConfig describes one downstream generation provider pool.
type ServiceConfig struct {
	Path         string   `json:"path"`
	Targets      []string `json:"targets"`
	LoadBalancer string   `json:"load_balancer"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Secrets come from the environment, never the config file
	config.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		config.Postgres.DSN = dsn
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Admission.PolicyFile == "" {
		config.Admission.PolicyFile = "policy.yaml"
	}
	if config.Admission.Store == "" {
		config.Admission.Store = "memory"
	}
	if config.Admission.SweepSchedule == "" {
		config.Admission.SweepSchedule = "@every 1m"
	}
	if config.Admission.LogRetentionDays == 0 {
		config.Admission.LogRetentionDays = 30
	}
	if config.Auth.ExpiryHours == 0 {
		config.Auth.ExpiryHours = 24
	}

	return &config, nil
}
