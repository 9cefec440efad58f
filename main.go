package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"rentsync/config"
	"rentsync/httputil"
	"rentsync/logging"
	"rentsync/scheduler"
	"rentsync/scraper"
	"rentsync/server"
	"rentsync/services"
	"rentsync/storage"
	"rentsync/tracker"
)

func main() {
	syncOnce := flag.Bool("sync", false, "run one sync pass and exit")
	siteFlag := flag.String("site", "", "limit -sync to one site id")
	flag.Parse()

	logWriter, err := logging.Setup("daemon.log")
	if err != nil {
		log.Fatalf("Log setup failed: %v", err)
	}
	defer logWriter.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	if len(cfg.Sites) == 0 {
		log.Fatalf("No site configs found; nothing to sync")
	}
	log.Printf("Loaded %d site config(s), database %s", len(cfg.Sites), maskConnectionString(cfg.PostgresURL))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}
	defer pg.Close()

	ops, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("SQLite open failed: %v", err)
	}
	defer ops.Close()

	clients := httputil.NewClients()
	trk := tracker.New()
	session := scraper.NewSessionManager()
	defer session.Close()

	upsert := services.NewUpsertEngine(pg)
	orch := scraper.NewOrchestrator(cfg, session, trk, upsert, ops, clients)

	if *syncOnce {
		if *siteFlag != "" {
			if err := orch.RunSite(ctx, *siteFlag); err != nil {
				log.Fatalf("Sync failed: %v", err)
			}
		} else {
			orch.RunAll(ctx)
		}
		return
	}

	var archiver *logging.Archiver
	if cfg.Archive.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			log.Printf("Log archiving disabled: %v", err)
		} else {
			archiver = logging.NewArchiver(cfg.LogsDir, uploader)
		}
	}

	sched := scheduler.New(cfg, orch, ops, archiver)

	offlineWorkers := make(map[string]*scheduler.OfflineWorker)
	offlineRings := make(map[string]*logging.RingSink)
	for id, site := range cfg.Sites {
		if !site.OfflineSync.Enabled {
			continue
		}
		ring := logging.NewRingSink(500)
		offlineRings[id] = ring
		sink := logging.MultiSink{ring, logging.NewDailyFileSink(cfg.LogsDir, id)}
		worker := scheduler.NewOfflineWorker(site, services.NewOfflineSync(pg, sink), ops)
		offlineWorkers[id] = worker
		go worker.Run(ctx)
	}

	session.StartHeartbeat(func() bool { return !trk.Active() }, trk.SetHeartbeat)

	srv := server.New(cfg, trk, sched, ops, offlineWorkers, offlineRings)
	go func() {
		log.Printf("API listening on %s", cfg.ListenAddr)
		if err := srv.Run(cfg.ListenAddr); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	sched.Run(ctx)
	log.Println("Shutting down")
}

// maskConnectionString hides credentials in startup logging.
func maskConnectionString(connString string) string {
	if connString == "" {
		return "(unset)"
	}
	u, err := url.Parse(connString)
	if err != nil || u.User == nil {
		return connString
	}
	u.User = url.User(u.User.Username())
	return u.String()
}
