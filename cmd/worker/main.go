package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"markbook/internal/config"
	"markbook/internal/mailer"
	"markbook/internal/queue"
	"markbook/internal/store"
)

// Worker drains the job queue and delivers the mails the API defers:
// generated teacher credentials and student attendance reports.
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

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		jobs = queue.NewRedisQueue(redisClient.Client, "")
	}

	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	if !mail.Enabled() {
		log.Println("WARNING: smtp not configured, mail jobs are logged and dropped")
	}

	messages, err := jobs.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for jobs...")
	for msg := range messages {
		if err := deliver(mail, msg); err != nil {
			log.Printf("job %s failed: %v", msg.Type, err)
		}
	}

	log.Println("worker stopped")
}

func deliver(mail *mailer.Mailer, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeCredentialsMail:
		var job mailer.CredentialsJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return err
		}
		subject, body := job.Render()
		return mail.Send(job.Email, subject, body)

	case queue.TypeStudentReportMail:
		var job mailer.StudentReportJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return err
		}
		subject, body := job.Render()
		return mail.Send(job.Email, subject, body)

	default:
		log.Printf("skipping unknown job type %q", msg.Type)
		return nil
	}
}
