package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/docauth/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN; empty keeps identities in memory
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-k int      bcrypt cost
//	-l int      failed logins before lockout
//	-w int      lockout window, minutes
//	-b string   lockout backend: memory or redis
//	-u string   redis URL
//	-v string   log level
//
// Unknown flags are filtered out first with flagx.FilterArgs so -c/-config
// can share the command line.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-r", "-k", "-l", "-w", "-b", "-u", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.IntVar(&config.LockoutThreshold, "l", config.LockoutThreshold, "failed logins before lockout")
	lockoutWindow := fs.Int("w", int(config.LockoutWindow.Minutes()), "lockout window (in minutes)")
	fs.StringVar(&config.LockoutBackend, "b", config.LockoutBackend, "lockout backend (memory|redis)")
	fs.StringVar(&config.RedisURL, "u", config.RedisURL, "redis URL")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		case "w":
			config.LockoutWindow = time.Duration(*lockoutWindow) * time.Minute
		}
	})
}
