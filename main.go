// Command gomoku-server boots the process: load config, open the
// sqlite gateway, build the zap logger, wire the transport server, and
// run until a signal asks it to stop (config.Load → db.New →
// server.New → signal-driven shutdown, plus a unix control socket for
// admin stats/shutdown).
package main

import (
	"bufio"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gomoku-server/config"
	"gomoku-server/db"
	"gomoku-server/server"
)

const controlSocketPath = "/tmp/gomoku-server.sock"

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	srvCfg := server.Config{
		Port:               cfg.Port,
		ReadTimeout:        time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:       time.Duration(cfg.WriteTimeout) * time.Second,
		MaxFramePayloadLen: cfg.MaxFramePayloadLen,
		TimeWheelTick:      time.Duration(cfg.TimeWheelTickMillis) * time.Millisecond,
		TimeWheelSlots:     cfg.TimeWheelSlots,
	}

	srv := server.New(srvCfg, database, logger)
	if err := srv.WarmFromDB(); err != nil {
		logger.Fatal("failed to warm store from database", zap.Error(err))
	}

	go startControlSocket(srv, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		srv.Shutdown()
		os.Remove(controlSocketPath)
		os.Exit(0)
	}()

	logger.Fatal("server stopped", zap.Error(srv.Start()))
}

// newLogger builds a zap logger honoring cfg.LogLevel, constructed
// once here and threaded through every constructor (§9 N2 — no
// package-level global logger).
func newLogger(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// startControlSocket listens on a unix socket for line-delimited admin
// commands (stats, shutdown). §9's admin operations are explicitly
// outside the core API, but a local management channel is ambient ops
// tooling, not a core feature, so it is kept.
func startControlSocket(srv *server.Server, logger *zap.Logger) {
	os.Remove(controlSocketPath)

	listener, err := net.Listen("unix", controlSocketPath)
	if err != nil {
		logger.Warn("failed to create control socket", zap.Error(err))
		return
	}
	defer listener.Close()
	defer os.Remove(controlSocketPath)

	logger.Info("control socket listening", zap.String("path", controlSocketPath))

	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}
		go handleControlCommand(srv, conn, logger)
	}
}

func handleControlCommand(srv *server.Server, conn net.Conn, logger *zap.Logger) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}

	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, "|", 2)
	if len(parts) == 0 || parts[0] == "" {
		conn.Write([]byte("ERROR|Invalid command\n"))
		return
	}

	switch parts[0] {
	case "stats":
		conn.Write([]byte("OK|" + srv.GetStats() + "\n"))

	case "shutdown":
		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()
		time.Sleep(100 * time.Millisecond)
		logger.Info("shutdown requested via control socket")
		srv.Shutdown()
		os.Remove(controlSocketPath)
		os.Exit(0)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
