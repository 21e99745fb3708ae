// acme-lsp: a Language Server Protocol bridge for the acme editor.
//
// Watches acme for tracked files (those matching a configured server's
// file regex), spawns and drives the matching language server, and
// exposes its requests through a coordination window: definition,
// references, hover, completion, signatureHelp, rename, and format/
// code-action-on-save.
//
// Usage:
//
//	acme-lsp --config ~/lib/acme-lsp/config.toml
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/acmelsp/bridge/internal/config"
	"github.com/acmelsp/bridge/internal/logging"
	"github.com/acmelsp/bridge/internal/router"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.toml (required)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *cfgPath == "" {
		log.Fatal("acme-lsp: --config flag is required")
	}

	var l *zap.Logger
	var err error
	if *verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	file, err := config.Load(*cfgPath)
	if err != nil {
		l.Fatal("load config", zap.Error(err))
	}
	servers, err := config.Compile(file)
	if err != nil {
		l.Fatal("compile config", zap.Error(err))
	}
	if len(servers) == 0 {
		l.Fatal("config defines no [[server]] entries")
	}
	l.Info("servers compiled", zap.Int("count", len(servers)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.NewContext(ctx, l)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, shutdownSignals...)
	go func() {
		<-sigs
		cancel()
	}()

	// Reconnect loop: Run drives one acme session (coordination window,
	// log stream, sessions) to completion. A transient acme disconnect —
	// the file-server process restarting — is retried with full-jitter
	// backoff rather than treated as fatal; this is the one place the
	// crash-on-error posture is deliberately softened, since it concerns
	// the acme connection and not an LSP server child (mirrors the
	// teacher's own acme.Mount retry loop).
	bo := router.Backoff{Base: 200 * time.Millisecond, Cap: 30 * time.Second}
	for ctx.Err() == nil {
		rt := router.New(l, servers)
		runErr := rt.Run(ctx)
		if ctx.Err() != nil {
			break
		}
		if runErr != nil {
			d := bo.Next()
			l.Warn("router exited, reconnecting", zap.Error(runErr), zap.Duration("in", d))
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
			continue
		}
		bo.Reset()
	}

	l.Info("shutting down")
}
