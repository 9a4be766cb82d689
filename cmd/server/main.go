package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"driftwatch/pkg/api"
	"driftwatch/pkg/collector"
	"driftwatch/pkg/db"
	"driftwatch/pkg/scan"
	"driftwatch/pkg/search"
	"driftwatch/pkg/store"
	"driftwatch/pkg/version"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	scanTimeout := flag.Duration("scan-timeout", scan.DefaultDeadline, "hard deadline for a single scan")
	tlsCert := flag.String("tls-cert", "", "TLS cert path (enables HTTPS if set with --tls-key)")
	tlsKey := flag.String("tls-key", "", "TLS key path (enables HTTPS if set with --tls-cert)")
	clientCA := flag.String("client-ca", "", "require and verify client certs using this CA (optional)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	gdb, err := db.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	st := store.NewDBStore(gdb)

	orch := scan.NewOrchestrator(st, collector.New(log), *scanTimeout, log)
	server := api.NewServer(st, orch, search.NewSearcher(st, log), log)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		orch.Wait()
	}()

	log.Info().Str("addr", *addr).Str("build", version.Build).Msg("driftwatch listening")
	if *tlsCert != "" && *tlsKey != "" {
		if *clientCA != "" {
			cfg, errTLS := api.ServerTLSConfig(*tlsCert, *tlsKey, *clientCA)
			if errTLS != nil {
				log.Fatal().Err(errTLS).Msg("failed to build TLS config")
			}
			srv.TLSConfig = cfg
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		}
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
