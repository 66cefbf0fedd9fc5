// Command server runs the crashline round engine: a long-lived TCP
// listener plus an optional admin HTTP plane, driven by the config file/
// environment (internal/config) with command-line arguments taking final
// precedence, matching the teacher's cmd/migrate plain-arg-parsing idiom.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"crashline/internal/adminserver"
	"crashline/internal/audit"
	"crashline/internal/cache"
	"crashline/internal/config"
	"crashline/internal/database"
	"crashline/internal/engine"
)

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	network := os.Args[1]
	if network != "v4" && network != "v6" {
		printUsage()
		os.Exit(1)
	}

	port, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("server: invalid port %q: %v", os.Args[2], err)
	}

	cfg, err := config.LoadServerConfig(getFlag("-config", ""))
	if err != nil {
		log.Fatalf("server: loading config: %v", err)
	}
	cfg.Network = network
	cfg.Port = port
	if addr := getFlag("-admin", ""); addr != "" {
		cfg.AdminAddr = addr
	}

	// A single cache.Service backs both the audit sink's Redis publish and
	// the admin plane's health check, rather than opening a second
	// redis.Client for the same REDIS_URL.
	var cacheSvc cache.Service
	if cfg.RedisURL != "" {
		cacheSvc = cache.New()
	}

	auditSink := buildAuditSink(cfg, cacheSvc)
	eng := engine.New(engine.Config{
		Capacity:      cfg.Capacity,
		BettingWindow: cfg.BettingWindow,
		TickInterval:  cfg.TickInterval,
	}, auditSink)

	var admin *adminserver.Server
	if cfg.AdminAddr != "" {
		admin = buildAdminServer(eng, cacheSvc, cfg)
		eng.SetSink(engine.MultiSink{auditSink, admin.Sink()})
	}

	ln, err := engine.Listen(cfg.Network, cfg.Port)
	if err != nil {
		log.Fatalf("server: listen: %v", err)
	}
	log.Printf("[SERVER] listening on %s (%s), capacity=%d", ln.Addr(), cfg.Network, cfg.Capacity)

	go eng.Run()

	if admin != nil {
		go func() {
			log.Printf("[ADMIN] listening on %s", cfg.AdminAddr)
			if err := admin.Listen(cfg.AdminAddr); err != nil {
				log.Printf("[ADMIN] stopped: %v", err)
			}
		}()
	}

	if err := eng.Serve(ln); err != nil {
		log.Fatalf("server: accept loop: %v", err)
	}
}

func buildAuditSink(cfg config.ServerConfig, cacheSvc cache.Service) *audit.Sink {
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		p, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Printf("[AUDIT] postgres unavailable: %v", err)
		} else {
			pool = p
		}
	}

	return audit.New(pool, cacheSvc)
}

func buildAdminServer(eng *engine.Engine, cacheSvc cache.Service, cfg config.ServerConfig) *adminserver.Server {
	var redisHealth, dbHealth adminserver.HealthChecker
	if cacheSvc != nil {
		redisHealth = cacheSvc
	}
	if cfg.DatabaseURL != "" {
		dbHealth = database.New()
	}
	return adminserver.New(eng, redisHealth, dbHealth)
}

func getFlag(name, defaultVal string) string {
	for i, arg := range os.Args {
		if arg == name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return defaultVal
}

func printUsage() {
	fmt.Println("crashline server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  server <v4|v6> <port> [-admin <addr>] [-config <path>]")
}
