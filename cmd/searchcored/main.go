// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point for the searchcored demo binary: it
// wires a Handler to an in-memory reference index and serves the command
// surface over a plain line-oriented TCP listener, alongside an HTTP
// endpoint exposing Prometheus metrics.
//
// The listener's tokenization (whitespace-split, one command per line) is
// a stand-in for the host's real argument tokenization, which is out of
// scope for this module; it exists only so the query/cursor layer below it
// is reachable end to end without a real key-value host.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/searchcore/searchcore/internal/handler"
	"github.com/searchcore/searchcore/internal/index/memindex"
	"github.com/searchcore/searchcore/internal/planner"
	"github.com/searchcore/searchcore/internal/queryerr"
	"github.com/searchcore/searchcore/internal/reply"
	"github.com/searchcore/searchcore/internal/util/ctxutil"
)

// cli represents all command-line flags. Keep structure and order in sync
// with documentation.
//
//nolint:lll // for readability
var cli struct {
	ListenAddr  string        `default:"127.0.0.1:6380"  help:"Listen TCP address for the command protocol."          group:"Interfaces"`
	DebugAddr   string        `default:"127.0.0.1:6381"  help:"Listen address for the Prometheus /metrics endpoint."  group:"Interfaces"`
	CursorCap   int           `default:"128"             help:"Default per-index maximum concurrent open cursors."    group:"Cursors"`
	DefaultIdle time.Duration `default:"5m"              help:"Default cursor idle timeout when WITHCURSOR omits MAXIDLE." group:"Cursors"`
	GCInterval  time.Duration `default:"30s"             help:"Interval between idle-cursor reaper sweeps."           group:"Cursors"`

	Log struct {
		Level  string `default:"info"    help:"Log level: 'debug', 'info', 'warn', 'error'."        enum:"debug,info,warn,error"`
		Format string `default:"console" help:"Log format: 'console' or 'json'."                     enum:"console,json"`
	} `embed:"" prefix:"log-" group:"Miscellaneous"`
}

var kongOptions = []kong.Option{
	kong.DefaultEnvars("SEARCHCORED"),
}

func main() {
	kong.Parse(&cli, kongOptions...)

	logger := setupLogger()
	defer logger.Sync() //nolint:errcheck // best effort on shutdown

	setGOMAXPROCS(logger)

	backend := memindex.NewBackend()
	seedDemoIndex(backend)

	h := handler.New(&handler.NewOpts{
		Backend:          backend,
		Compiler:         planner.RefCompilerFactory{},
		L:                logger,
		DefaultMaxIdle:   cli.DefaultIdle,
		CursorGCInterval: cli.GCInterval,
	})
	defer h.Close()

	h.Cursors.SetCap("demo", cli.CursorCap)

	registry := prometheus.NewRegistry()
	registry.MustRegister(h)

	ctx, stop := ctxutil.SigTerm(context.Background())
	defer stop()

	go serveMetrics(ctx, logger, registry)

	if err := serveCommands(ctx, logger, h); err != nil {
		logger.Error("Command listener stopped", zap.Error(err))
	}
}

// setupLogger builds the process-wide zap.Logger according to cli.Log.
func setupLogger() *zap.Logger {
	var cfg zap.Config
	if cli.Log.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if err := level.UnmarshalText([]byte(cli.Log.Level)); err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.Level = level

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return logger.Named("searchcored")
}

// seedDemoIndex populates a single "demo" index so the binary is usable
// out of the box without a real ingest path, which is out of scope here.
func seedDemoIndex(backend *memindex.Backend) {
	idx := memindex.NewIndex()
	idx.Insert(memindex.Document{
		Key:    "d1",
		Body:   "hello world, this is the first document",
		Fields: map[string]any{"name": "alice", "brand": "acme"},
	})
	idx.Insert(memindex.Document{
		Key:    "d2",
		Body:   "hello again, a second hello document",
		Fields: map[string]any{"name": "bob", "brand": "acme"},
	})
	backend.CreateIndex("demo", idx)
}

// serveMetrics runs the Prometheus /metrics HTTP endpoint until ctx is done.
func serveMetrics(ctx context.Context, logger *zap.Logger, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cli.DebugAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on shutdown
	}()

	logger.Info("Metrics listener started", zap.String("addr", cli.DebugAddr))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics listener failed", zap.Error(err))
	}
}

// serveCommands accepts connections on cli.ListenAddr until ctx is done,
// handling each on its own goroutine.
func serveCommands(ctx context.Context, logger *zap.Logger, h *handler.Handler) error {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", cli.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck // unblocks Accept below
	}()

	logger.Info("Command listener started", zap.String("addr", cli.ListenAddr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accept: %w", err)
		}

		go handleConn(ctx, logger, h, conn)
	}
}

// handleConn serves one connection: each line is a command, tokenized on
// whitespace, whose reply bytes (including the trailing RESP terminator)
// are written back followed by a newline for human readability.
func handleConn(ctx context.Context, logger *zap.Logger, h *handler.Handler, conn net.Conn) {
	defer conn.Close() //nolint:errcheck // client already gone

	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		out := dispatch(ctx, h, line)

		if _, err := conn.Write(append(out, '\n')); err != nil {
			logger.Debug("Write failed", zap.Error(err))
			return
		}
	}
}

// dispatch tokenizes line and routes it to the matching Handler command.
func dispatch(ctx context.Context, h *handler.Handler, line string) []byte {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return reply.WriteError("empty command")
	}

	cmd := strings.ToUpper(tokens[0])
	args := tokens[1:]

	var (
		out []byte
		err error
	)

	switch cmd {
	case "SEARCH":
		out, err = h.CmdSearch(ctx, args)
	case "AGGREGATE":
		out, err = h.CmdAggregate(ctx, args)
	case "CURSOR":
		out, err = h.CmdCursor(ctx, args)
	case "EXPLAIN":
		out, err = h.CmdExplain(ctx, args)
	default:
		return reply.WriteError(fmt.Sprintf("unknown command %q", tokens[0]))
	}

	// A command that fails after it started its reply (a pipeline error in
	// mid-chunk) returns the reply written so far; that is what is sent.
	if err != nil && out == nil {
		return reply.WriteError(queryerr.Message(err))
	}

	return out
}
