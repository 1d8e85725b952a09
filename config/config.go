// Package config declares the settings shared by every vtime command.
package config

import (
	"flag"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"

	"github.com/vulcan-frame/vtime/history"
)

// EnvPrefix is prepended to the upper-cased flag name to form its environment variable.
const EnvPrefix = "VTIME"

type Config struct {
	ConfigFile string
	LogLevel   string
	Color      bool
	Notify     bool
	Bell       bool

	History      string
	RedisAddr    string
	RedisKey     string
	MongoDSN     string
	MongoDB      string
	HistoryLimit int64
}

// Register declares the settings on fs and returns the Config they are parsed into.
func Register(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar(&c.ConfigFile, "config", "", "YAML config file")
	fs.StringVar(&c.LogLevel, "log-level", "warn", "diagnostics level: debug, info, warn, error")
	fs.BoolVar(&c.Color, "color", true, "colorize status markers when writing to a terminal")
	fs.BoolVar(&c.Notify, "notify", true, "send desktop notifications")
	fs.BoolVar(&c.Bell, "bell", true, "ring the terminal bell on completion and cancellation")
	fs.StringVar(&c.History, "history", history.BackendNone, "session history backend: none, redis, mongo")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "redis address for history, host:port")
	fs.StringVar(&c.RedisKey, "redis-key", "vtime:history", "redis list holding history")
	fs.StringVar(&c.MongoDSN, "mongo-dsn", "", "mongo DSN for history, without the mongodb:// scheme")
	fs.StringVar(&c.MongoDB, "mongo-db", "vtime", "mongo database for history")
	fs.Int64Var(&c.HistoryLimit, "history-limit", 100, "records kept by the redis history backend")
	return c
}

var levels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"fatal": log.LevelFatal,
}

// Level is the parsed log level. Call Validate first.
func (c *Config) Level() log.Level {
	return log.ParseLevel(c.LogLevel)
}

func (c *Config) Validate() error {
	if _, ok := levels[strings.ToLower(c.LogLevel)]; !ok {
		return errors.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.History {
	case "", history.BackendNone:
	case history.BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("history backend redis requires -redis-addr")
		}
		if c.RedisKey == "" {
			return errors.New("history backend redis requires -redis-key")
		}
	case history.BackendMongo:
		if c.MongoDSN == "" || c.MongoDB == "" {
			return errors.New("history backend mongo requires -mongo-dsn and -mongo-db")
		}
	default:
		return errors.Errorf("unknown history backend %q", c.History)
	}

	if c.HistoryLimit <= 0 {
		return errors.Errorf("history-limit must be positive. got=%d", c.HistoryLimit)
	}
	return nil
}

func (c *Config) HistoryOptions() history.Options {
	return history.Options{
		Backend:   c.History,
		RedisAddr: c.RedisAddr,
		RedisKey:  c.RedisKey,
		MongoDSN:  c.MongoDSN,
		MongoDB:   c.MongoDB,
		Limit:     c.HistoryLimit,
	}
}
