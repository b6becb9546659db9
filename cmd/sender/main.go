package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/logger"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/rabbit"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/reminder"
	log "github.com/sirupsen/logrus"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/sender_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	sender := reminder.Sender{}
	log.Info("sender is running...")
	err = r.Consume(ctx, func(body []byte) error {
		if _, err := sender.Handle(body); err != nil {
			log.Errorf("failed to handle reminder: %v", err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Errorf("sender stopped: %v", err)
	}
}
