// Package config parses the IPC configuration surface from the process
// environment, grounded on original_source/server/src/ipc/path.rs's
// IpcConfig::default(). The performance-optimization presets live in the
// perf package (perf/config.go) and are chosen by cmd/bridge's -profile
// flag, not read from the environment.
/*
 * Copyright (c) 2024-2026, the unity-mcp-bridge authors.
 */
package config

import (
	"os"
	"strconv"
	"time"
)

// IpcConfig is the collaborator-supplied config surface from spec.md §6.
type IpcConfig struct {
	Endpoint               string
	Token                  string
	ConnectTimeout         time.Duration
	HandshakeTimeout       time.Duration
	TotalHandshakeTimeout  time.Duration
	CallTimeout            time.Duration
	MaxReconnectAttempts   int // 0 means unbounded
}

func IpcFromEnv() IpcConfig {
	return IpcConfig{
		Endpoint:              os.Getenv("MCP_IPC_ENDPOINT"),
		Token:                 os.Getenv("MCP_IPC_TOKEN"),
		ConnectTimeout:        envMillis("MCP_IPC_CONNECT_TIMEOUT_MS", 2000),
		HandshakeTimeout:      envMillis("MCP_IPC_HANDSHAKE_TIMEOUT_MS", 3000),
		TotalHandshakeTimeout: envMillis("MCP_IPC_TOTAL_HANDSHAKE_TIMEOUT_MS", 15000),
		CallTimeout:           envMillis("MCP_IPC_CALL_TIMEOUT_MS", 4000),
		MaxReconnectAttempts:  envInt("MCP_IPC_MAX_RECONNECT_ATTEMPTS", 0),
	}
}

func envMillis(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Millisecond
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
