package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv loads dotenv (if it exists) into the process environment without
// overriding variables already set, then overlays DOCAUTH_* variables onto
// config. Unset variables leave the current value alone.
func parseEnv(config *Config, dotenv string) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
