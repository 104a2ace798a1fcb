package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/issuekit/jira-bridge/internal/audit"
	"github.com/issuekit/jira-bridge/internal/config"
	"github.com/issuekit/jira-bridge/internal/jira"
	"github.com/issuekit/jira-bridge/internal/logger"
	"github.com/issuekit/jira-bridge/internal/rpc"
	"github.com/issuekit/jira-bridge/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		addr      = flag.String("addr", "", "listen address override (host:port)")
		stdio     = flag.Bool("stdio", false, "serve JSON-RPC on stdin/stdout instead of HTTP")
		auditTail = flag.Int("audit-tail", 0, "print the N most recent audited calls and exit")
	)
	flag.Parse()

	cfg := config.Load()
	logger.Setup(cfg.LogLevel)

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to ensure directories: %v", err)
	}

	if *auditTail > 0 {
		if err := printAuditTail(cfg, *auditTail); err != nil {
			log.Fatalf("Failed to read audit log: %v", err)
		}
		return
	}

	// Credential absence is a startup failure, not something discovered on
	// the first call.
	if err := cfg.ValidateCredentials(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dispatcher := rpc.NewDispatcher(cfg, jira.NewClient)

	if *stdio {
		runStdio(cfg, dispatcher)
		return
	}

	if *addr != "" {
		host, port, err := net.SplitHostPort(*addr)
		if err != nil {
			log.Fatalf("Invalid -addr: %v", err)
		}
		cfg.ListenAddr = host
		cfg.ListenPort = port
	}

	runHTTP(cfg, dispatcher)
}

func runHTTP(cfg *config.Config, dispatcher *rpc.Dispatcher) {
	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			log.Fatalf("Failed to open audit store: %v", err)
		}
		defer store.Close()
		auditStore = store
	}

	srv := server.New(cfg, dispatcher, auditStore)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Shutdown failed: %v", err)
		}
	}
}

func runStdio(cfg *config.Config, dispatcher *rpc.Dispatcher) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.NewStdioServer(cfg, dispatcher)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Stdio server failed: %v", err)
	}
}

func printAuditTail(cfg *config.Config, limit int) error {
	store, err := audit.Open(cfg.Audit.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(limit)
	if err != nil {
		return err
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s %-14s %-8s", e.CreatedAt.Format(time.RFC3339), e.Method, e.Status)
		if e.Code != 0 {
			line += fmt.Sprintf(" code=%d", e.Code)
		}
		if e.Detail != "" {
			line += " " + e.Detail
		}
		fmt.Println(line)
	}

	return nil
}
