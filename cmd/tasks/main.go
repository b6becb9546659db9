package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/app"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/auth"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/calendarsync"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/credential"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/logger"
	internalhttp "github.com/lomoval/otus-golang/tasks_calendar_sync/internal/server/http"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		printVersion()
		return
	}

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		os.Exit(1)
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "auth":
		err = authorize(config.Calendar)
	case "token":
		err = issueToken(config.Auth, flag.Arg(1))
	case "":
		err = serve(config)
	default:
		err = fmt.Errorf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// authorize runs the browser authorization and stores the token for the server.
func authorize(config CalendarConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := credential.NewManager(config.Credential(), credential.LocalServerAuthorizer{Out: os.Stdout})
	if _, err := m.Client(ctx); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	fmt.Printf("calendar credential saved to %s\n", config.TokenFile)
	return nil
}

func issueToken(config auth.Config, subject string) error {
	if subject == "" {
		return fmt.Errorf("usage: tasks token <subject>")
	}
	jwtManager, err := auth.NewJWTManager(config)
	if err != nil {
		return err
	}
	token, err := jwtManager.IssueToken(subject)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func serve(config Config) error {
	jwtManager, err := auth.NewJWTManager(config.Auth)
	if err != nil {
		return fmt.Errorf("failed to start %w", err)
	}
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		return fmt.Errorf("failed to start %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		if err := stor.Close(ctx); err != nil {
			log.Errorf("failed to close storage: %v", err)
		}
	}()

	tasks := app.New(stor, nil)
	if config.Calendar.Enabled {
		var authorizer credential.Authorizer
		switch {
		case config.Calendar.TestToken != "":
			authorizer = credential.StaticAuthorizer{Token: &oauth2.Token{AccessToken: config.Calendar.TestToken}}
		case config.Calendar.Interactive:
			authorizer = credential.LocalServerAuthorizer{Out: os.Stdout}
		}
		syncer, err := calendarsync.New(credential.NewManager(config.Calendar.Credential(), authorizer), config.Calendar.Sync())
		if err != nil {
			return fmt.Errorf("failed to start %w", err)
		}
		tasks.Calendar = syncer
	} else {
		log.Warn("calendar sync is disabled")
	}

	server, err := internalhttp.NewServer(config.HTTPServer, tasks, jwtManager)
	if err != nil {
		return fmt.Errorf("failed to start %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
	}()

	log.Info("tasks service is running...")
	return server.Start(ctx)
}
