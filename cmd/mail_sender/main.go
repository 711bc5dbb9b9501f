package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"messenger_auth/internal/config"
	sl "messenger_auth/internal/lib/logger"
	mailer "messenger_auth/internal/mail-sender"
	"messenger_auth/internal/models"
	"messenger_auth/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoadMailer("./config/config.yaml")
	log := setupLogger(cfg.Env)

	log.Info("Starting mail_sender", slog.String("env", cfg.Env))

	startConsumer(ctx, cfg, log)
}

func startConsumer(ctx context.Context, cfg *config.MailerConfig, log *slog.Logger) {
	r, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return
	}
	defer r.Close()

	m := mailer.New(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)

	done := make(chan struct{})

	go func() {
		defer close(done)

		err := r.StartReading(ctx, func(body []byte) error {
			var msg models.Message
			if err := json.Unmarshal(body, &msg); err != nil {
				log.Error("failed to unmarshal message", sl.Err(err))
				return err
			}

			log := log.With(slog.String("message_id", msg.ID), slog.String("purpose", msg.Purpose))

			if err := m.Send(msg); err != nil {
				log.Error("failed to send message", sl.Err(err))
				return err
			}

			log.Info("message sent successfully")

			return nil
		})
		if err != nil {
			log.Error("consumer stopped", sl.Err(err))
		}
	}()

	log.Info("consumer successfully started", slog.String("queue", cfg.RabbitMQ.QueueName))

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
		<-done
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("service gracefully stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
