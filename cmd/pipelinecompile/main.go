package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/queryforge/mbql-mongo/cmd/pipelinecompile/api"
)

func main() {
	var cfg api.Config
	configFile := flag.String("config", "", "configuration file")
	flag.Parse()
	if *configFile != "" {
		configContent, err := os.ReadFile(*configFile)
		if err != nil {
			log.Fatalf("failed to read config file: %v", err)
		}
		if err = json.Unmarshal(configContent, &cfg); err != nil {
			log.Fatalf("failed to parse config file: %v", err)
		}
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	validateStartupConfig(cfg)

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to configure server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("pipelinecompile listening on %s (%d table(s), %d field(s), document store %s)",
			cfg.ListenAddr, len(cfg.Tables), len(cfg.Fields), driverState(cfg))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	log.Println("server stopped")
}

// validateStartupConfig logs warnings for configuration problems that
// would otherwise only surface as a field-resolution failure on the
// first query that touches the bad field: a field whose parentId
// points at an id not present in cfg.Fields, or a field id declared
// more than once.
func validateStartupConfig(cfg api.Config) {
	if len(cfg.Tables) == 0 {
		log.Println("WARNING: no tables configured; every /compile and /query request will fail table resolution")
	}

	seen := make(map[int]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if seen[f.ID] {
			log.Printf("WARNING: field id %d is declared more than once in config", f.ID)
		}
		seen[f.ID] = true
	}
	for _, f := range cfg.Fields {
		if f.ParentID != nil && !seen[*f.ParentID] {
			log.Printf("WARNING: field %q (id %d) has parentId %d, which is not declared", f.Name, f.ID, *f.ParentID)
		}
	}
}

// driverState describes, for the startup log line, whether /query can
// dispatch to a real document store or will reject every request with
// "no document store configured".
func driverState(cfg api.Config) string {
	if cfg.Driver.URI == "" {
		return "disabled"
	}
	return "enabled"
}
