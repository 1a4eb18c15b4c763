// Package main runs a headless whiteboard participant: resolve a host by
// name, join its encrypted session and keep a local board in step. Drawing
// events are read as JSON lines on stdin, one event per line; the words
// "undo" and "redo" act on the local board only.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/LF-108/BestNotes/internal/board"
	"github.com/LF-108/BestNotes/internal/discovery"
	"github.com/LF-108/BestNotes/internal/models"
	"github.com/LF-108/BestNotes/internal/registry"
	"github.com/LF-108/BestNotes/internal/session"
)

func main() {
	var (
		username     = flag.String("username", "", "participant name, unique within the session")
		hostName     = flag.String("host", "", "host username to join")
		discoveryURL = flag.String("discovery", "http://127.0.0.1:9000", "discovery service base URL")
		certPath     = flag.String("cert", "ssl/server.crt", "host certificate to trust")
		insecure     = flag.Bool("insecure", false, "skip certificate verification")
		timeout      = flag.Duration("timeout", 10*time.Second, "resolve and handshake timeout")
	)
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	if *username == "" || *hostName == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := discovery.NewClient(*discoveryURL, *timeout)
	reg, err := resolver.Resolve(ctx, *hostName)
	if errors.Is(err, registry.ErrHostNotFound) {
		logger.Fatal("no such host", zap.String("host", *hostName))
	}
	if err != nil {
		logger.Fatal("resolve host", zap.String("host", *hostName), zap.Error(err))
	}

	tlsCfg, err := session.ClientTLSConfig(*certPath)
	if err != nil {
		logger.Fatal("load certificate", zap.Error(err))
	}
	if *insecure {
		tlsCfg.InsecureSkipVerify = true
	}

	client, err := session.Dial(ctx, session.DialConfig{
		Address:          reg.Address,
		Port:             reg.Port,
		Username:         *username,
		TLS:              tlsCfg,
		HandshakeTimeout: *timeout,
		OnDisconnect: func(err error) {
			if err != nil {
				logger.Warn("disconnected from host", zap.Error(err))
			} else {
				logger.Info("disconnected from host")
			}
			stop()
		},
	}, logger)
	if err != nil {
		logger.Fatal("join session", zap.Error(err))
	}
	defer client.Close()

	scene := board.NewScene(board.NewMemorySurface())
	sync := board.NewSynchronizer(scene, logger)
	sync.AttachClient(client)

	go func() {
		for e := range client.Events() {
			if _, err := sync.RemoteEvent(e); err != nil {
				logger.Warn("remote event rejected", zap.Error(err))
			}
		}
	}()

	go readCommands(sync, logger)

	<-ctx.Done()
	logger.Info("leaving session", zap.String("host", *hostName))
}

// readCommands applies stdin lines to the board until EOF.
func readCommands(sync *board.Synchronizer, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "undo":
			sync.Undo()
		case line == "redo":
			sync.Redo()
		case line == "snapshot":
			snapshot, err := sync.Scene().Snapshot()
			if err != nil {
				logger.Warn("snapshot failed", zap.Error(err))
				continue
			}
			fmt.Println(string(snapshot))
		default:
			e, err := models.DecodeEvent([]byte(line))
			if err != nil {
				logger.Warn("bad event line", zap.Error(err))
				continue
			}
			if _, err := sync.LocalEvent(e); err != nil {
				logger.Warn("event rejected", zap.Error(err))
			}
		}
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
