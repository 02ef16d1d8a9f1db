package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"phone_lister/codes"
	"phone_lister/config"
	"phone_lister/httputil"
	"phone_lister/ingest"
	"phone_lister/logging"
	"phone_lister/mail"
	"phone_lister/models"
	"phone_lister/obs"
	"phone_lister/orchestrator"
	"phone_lister/scheduler"
	"phone_lister/storage"
)

var (
	batchFile = flag.String("batch", "", "Run one batch file (.xlsx or .csv) and exit")
	platform  = flag.String("platform", "", "Default platform for batch rows without a platform column")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting phone_lister...")

	log.Printf("Loaded %d platform descriptors", len(cfg.Platforms))
	for id, desc := range cfg.Platforms {
		log.Printf("  - %s (%s)", desc.Name, id)
	}

	ctx := context.Background()
	clients := httputil.NewClients()

	var retriever mail.Retriever
	if cfg.Mail.Recipient != "" {
		var llm mail.LLMExtractor
		if cfg.LLM.APIURL != "" {
			llm = mail.NewHTTPLLMExtractor(clients.LLM, cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model)
		}
		retriever, err = mail.NewGmailRetriever(ctx, cfg.Mail.CredentialsPath, cfg.Mail.TokenPath, clients.Mail, llm)
		if err != nil {
			log.Printf("Warning: mail retriever unavailable, email 2FA will fall back to manual: %v", err)
			retriever = nil
		} else {
			log.Printf("Mail retriever ready for %s", cfg.Mail.Recipient)
		}
	}

	var journal *storage.SQLiteJournal
	if cfg.JobsDBPath != "" {
		journal, err = storage.NewSQLiteJournal(cfg.JobsDBPath)
		if err != nil {
			log.Fatalf("Failed to open job journal: %v", err)
		}
		defer journal.Close()
		log.Printf("Job journal: %s", cfg.JobsDBPath)
	}

	var archive *storage.PostgresArchive
	if cfg.DatabaseURL != "" {
		archive, err = storage.NewPostgresArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer archive.Close()
		log.Println("Postgres archive connected")
	}

	if cfg.MetricsAddr != "" {
		obs.Serve(cfg.MetricsAddr)
		log.Printf("Metrics on %s/metrics", cfg.MetricsAddr)
	}

	orch := orchestrator.New(cfg, storage.NewJobStore(), journal, archive, codes.NewStore(), retriever)

	if *batchFile != "" {
		runBatch(ctx, orch, *batchFile, *platform)
		return
	}

	// Daemon mode: jobs arrive through the embedding application; this
	// process keeps the sweeps and the metrics endpoint alive.
	sched := scheduler.New(cfg, orch)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// runBatch posts one spreadsheet and exits 0 only when every row ended
// Verified or PendingReview.
func runBatch(ctx context.Context, orch *orchestrator.Orchestrator, path, defaultPlatform string) {
	batch, err := ingest.ReadBatch(path, defaultPlatform)
	if err != nil {
		log.Fatalf("Failed to read batch: %v", err)
	}
	log.Printf("Read %d rows from %s", len(batch), path)

	rows := make([]orchestrator.RowInput, len(batch))
	for i, b := range batch {
		rows[i] = orchestrator.RowInput{Platform: b.Platform, Listing: b.Listing}
	}

	job, err := orch.RunSync(ctx, "", rows)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	verified, review, other := 0, 0, 0
	for _, row := range job.Rows {
		switch row.Status {
		case models.RowVerified:
			verified++
		case models.RowPendingReview:
			review++
		default:
			other++
			log.Printf("Row %d (%s): %s [%s] %s", row.Index, row.Platform, row.Status, row.Kind, row.Reason)
		}
	}
	log.Printf("Batch done: %d verified, %d pending review, %d failed", verified, review, other)

	if !job.Succeeded() {
		os.Exit(1)
	}
}
