package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

// Worker drains the scan queue into the scan_events audit table. The roster
// never depends on this path; losing a message loses audit detail only.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:scans")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for scans...")
	for msg := range messages {
		if msg.Type != "scan" {
			continue
		}

		var ev attendance.ScanEvent
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			log.Printf("bad scan event: %v", err)
			continue
		}

		if err := repo.InsertScanEvent(ctx, ev); err != nil {
			log.Printf("audit insert failed for session %s student %s: %v", ev.SessionID, ev.StudentID, err)
			continue
		}
	}

	log.Println("worker stopped")
}
