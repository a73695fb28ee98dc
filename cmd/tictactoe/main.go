// Package main provides the tic-tac-toe server binary. It accepts TCP clients
// speaking the line-delimited JSON protocol and hosts any number of game rooms.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe/internal/config"
	"github.com/cory-johannsen/tictactoe/internal/frontend/stream"
	"github.com/cory-johannsen/tictactoe/internal/game/registry"
	"github.com/cory-johannsen/tictactoe/internal/gameserver"
	"github.com/cory-johannsen/tictactoe/internal/observability"
	"github.com/cory-johannsen/tictactoe/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"_CONFIG"), "path to an optional YAML configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if flag.NArg() > 0 {
		port, err := parsePort(flag.Arg(0))
		if err != nil {
			log.Fatalf("invalid port: %v", err)
		}
		cfg.Listener.Port = port
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting tictactoe server",
		zap.String("addr", cfg.Listener.Addr()),
		zap.Duration("handshake_timeout", cfg.Listener.HandshakeTimeout),
		zap.Duration("write_timeout", cfg.Listener.WriteTimeout),
	)

	games := registry.NewManager(logger)
	gameServer := gameserver.NewServer(games, stream.SessionOptions{
		HandshakeTimeout: cfg.Listener.HandshakeTimeout,
		WriteTimeout:     cfg.Listener.WriteTimeout,
	}, logger)
	acceptor := stream.NewAcceptor(cfg.Listener, gameServer, logger)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("acceptor", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn: func() error {
			gameServer.Shutdown()
			acceptor.Stop()
			return nil
		},
	})

	if cfg.Stats.Interval > 0 {
		quit := make(chan struct{})
		lifecycle.Add("stats", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(cfg.Stats.Interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						logStats(logger, gameServer.Stats())
					case <-quit:
						return nil
					}
				}
			},
			StopFn: func() error {
				close(quit)
				return nil
			},
		})
	}

	logger.Info("server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logStats(logger, gameServer.Stats())
}

// parsePort converts a command-line port argument.
func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", arg)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%d is outside 1-65535", port)
	}
	return port, nil
}

func logStats(logger *zap.Logger, st gameserver.Stats) {
	logger.Info("server stats",
		zap.Int("connected_clients", st.ConnectedClients),
		zap.Int("total_games", st.TotalGames),
		zap.Int("waiting_games", st.WaitingGames),
		zap.Int("active_games", st.ActiveGames),
		zap.Int("completed_games", st.CompletedGames),
		zap.Int("total_players", st.TotalPlayers),
	)
}
