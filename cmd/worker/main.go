package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/ragbot/ragchat/internal/chatflow"
	"github.com/ragbot/ragchat/internal/config"
	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/db"
	"github.com/ragbot/ragchat/internal/rag"
	"github.com/ragbot/ragchat/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file, using environment as-is")
	}

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	defer db.Close(gdb)

	repo := conversation.NewRepo(gdb)
	convs := conversation.NewService(repo)
	backend := rag.NewClient(cfg.RAGBaseURL)
	flow := chatflow.New(convs, backend)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logrus.WithError(err).Fatal("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Fatal("rabbit channel")
	}
	defer ch.Close()

	// Main queue dead-letters to the DLQ, same topology the publisher
	// declares. Declaring on both sides keeps start order irrelevant.
	dlq := cfg.RabbitQueue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		logrus.WithError(err).Fatal("dlq declare")
	}
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}); err != nil {
		logrus.WithError(err).Fatal("queue declare")
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logrus.WithError(err).Fatal("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logrus.WithError(err).Fatal("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"queue":       cfg.RabbitQueue,
		"concurrency": concurrency,
	}).Info("worker started")

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					logrus.WithField("worker", workerID).WithError(err).Warn("bad message")
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, flow, repo, m.JobID); err != nil {
					logrus.WithFields(logrus.Fields{
						"worker": workerID,
						"job":    m.JobID,
						"cost":   time.Since(start).String(),
					}).WithError(err).Warn("job failed")
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logrus.WithFields(logrus.Fields{
						"worker": workerID,
						"job":    m.JobID,
					}).WithError(err).Warn("ack failed")
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logrus.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logrus.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// handleJob runs one queued ask end to end. Backend failures are not job
// failures: the orchestrator persists them as assistant messages and the
// job still records which message holds the outcome.
func handleJob(ctx context.Context, flow *chatflow.Orchestrator, repo *conversation.Repo, jobID string) error {
	_ = repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	res, err := flow.Ask(ctx, j.UserID, j.ConversationID, j.Question)
	if err != nil {
		_ = repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	return repo.MarkJobSucceeded(ctx, jobID, res.AssistantMessage.ID)
}
