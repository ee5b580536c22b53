// Package config reads process configuration from environment
// variables with defaults: a single Load() loaded once at startup,
// no hot reload.
package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port                int
	DBPath              string
	ReadTimeout         int // seconds; idle-session TTL
	WriteTimeout        int // seconds; per-frame write deadline
	HeartbeatSeconds    int // expected client heartbeat interval
	DefaultBoardSize    int
	LogLevel            string
	MaxFramePayloadLen  int
	TimeWheelTickMillis int
	TimeWheelSlots      int
}

func Load() *Config {
	cfg := &Config{
		Port:                3215,
		DBPath:              "gomoku.db",
		ReadTimeout:         120,
		WriteTimeout:        30,
		HeartbeatSeconds:    20,
		DefaultBoardSize:    15,
		LogLevel:            "info",
		MaxFramePayloadLen:  1 << 20,
		TimeWheelTickMillis: 1000,
		TimeWheelSlots:      120,
	}

	if v := os.Getenv("GOMOKU_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}

	if v := os.Getenv("GOMOKU_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := os.Getenv("GOMOKU_READ_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReadTimeout = n
		}
	}

	if v := os.Getenv("GOMOKU_WRITE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WriteTimeout = n
		}
	}

	if v := os.Getenv("GOMOKU_HEARTBEAT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HeartbeatSeconds = n
		}
	}

	if v := os.Getenv("GOMOKU_DEFAULT_BOARD_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultBoardSize = n
		}
	}

	if v := os.Getenv("GOMOKU_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("GOMOKU_MAX_FRAME_PAYLOAD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFramePayloadLen = n
		}
	}

	if v := os.Getenv("GOMOKU_TIMEWHEEL_TICK_MILLIS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeWheelTickMillis = n
		}
	}

	if v := os.Getenv("GOMOKU_TIMEWHEEL_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeWheelSlots = n
		}
	}

	return cfg
}
