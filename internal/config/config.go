package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App       App
	Database  Database
	Redis     Redis
	JWT       JWT
	Scheduler Scheduler
	Webhook   Webhook
}

type App struct {
	Port string `env:"PORT" env-default:"8080"`
}

type JWT struct {
	Secret string `env:"JWT_SECRET" env-required:"true"`
}

type Redis struct {
	Host string `env:"REDIS_HOST" env-default:"localhost"`
	Port string `env:"REDIS_PORT" env-default:"6379"`
}

func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Database struct {
	Host     string `env:"POSTGRES_HOST" env-required:"true"`
	Port     string `env:"POSTGRES_PORT" env-required:"true"`
	User     string `env:"POSTGRES_USER" env-required:"true"`
	DBName   string `env:"POSTGRES_DB" env-required:"true"`
	Password string `env:"POSTGRES_PASSWORD" env-required:"true"`
	SSLMode  string `env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Scheduler struct {
	IntervalSec int `env:"SCHEDULER_INTERVAL_SEC" env-default:"60"`
}

func (s Scheduler) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

type Webhook struct {
	TimeoutSec int `env:"WEBHOOK_TIMEOUT_SEC" env-default:"5"`
}

func (w Webhook) Timeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

func (d Database) DSN() string {
	return fmt.Sprintf(
		`host=%s port=%s user=%s password=%s dbname=%s sslmode=%s`,
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment variables: %w", err)
	}
	return cfg, nil
}
