package config

import (
	"sync"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"4000"`
	ValkeyAddr  string `env:"VALKEY_ADDR" envDefault:"127.0.0.1:6379"`
	AllowOrigin string `env:"ALLOW_ORIGIN" envDefault:"http://localhost:3000"`
	JWTSecret   string `env:"JWT_SECRET"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	once sync.Once

	Conf Config
)

func load() {
	// A missing .env file is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	if err := env.Parse(&Conf); err != nil {
		panic(err)
	}
}

// Load parses the environment once and returns the shared config.
func Load() Config {
	once.Do(load)
	return Conf
}
