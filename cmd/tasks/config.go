package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/auth"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/calendarsync"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/credential"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/logger"
	internalhttp "github.com/lomoval/otus-golang/tasks_calendar_sync/internal/server/http"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storagebuilder"
	"github.com/spf13/viper"
)

const envConfigPrefix = "$env:"

type CalendarConfig struct {
	// Enabled turns synchronization of tasks to the calendar on.
	Enabled         bool
	CalendarID      string
	TimeZone        string
	CredentialsFile string
	ClientID        string
	ClientSecret    string
	TokenFile       string
	RequestTimeout  time.Duration
	Endpoint        string
	// Interactive lets the server start the browser authorization itself
	// when there is no usable token. Otherwise run "tasks auth" beforehand.
	// Development only: the flow runs inside the API request that needed the
	// token and holds the credential lock, so every other sync waits for it.
	Interactive bool
	// TestToken is handed out instead of running any authorization,
	// for end-to-end runs against a fake calendar Endpoint.
	TestToken string
}

func (c CalendarConfig) Credential() credential.Config {
	return credential.Config{
		CredentialsFile: c.CredentialsFile,
		ClientID:        c.ClientID,
		ClientSecret:    c.ClientSecret,
		TokenFile:       c.TokenFile,
		RequestTimeout:  c.RequestTimeout,
		Endpoint:        c.Endpoint,
	}
}

func (c CalendarConfig) Sync() calendarsync.Config {
	return calendarsync.Config{CalendarID: c.CalendarID, TimeZone: c.TimeZone}
}

type Config struct {
	HTTPServer internalhttp.Config
	Logger     logger.Config
	Storage    storagebuilder.Config
	Auth       auth.Config
	Calendar   CalendarConfig
}

func NewConfig(configFile string) (Config, error) {
	config := Config{}
	viper.SetConfigFile(configFile)

	viper.SetDefault("httpServer.host", "127.0.0.1")
	viper.SetDefault("httpServer.port", "8005")
	viper.SetDefault("logger.level", "WARN")
	viper.SetDefault("logger.format", "text")
	viper.SetDefault("storage.storageType", "memory")
	viper.SetDefault("storage.connectTimeout", "15s")
	viper.SetDefault("auth.issuer", "tasks-calendar-sync")
	viper.SetDefault("auth.tokenTTL", "24h")
	viper.SetDefault("calendar.enabled", true)
	viper.SetDefault("calendar.calendarId", "primary")
	viper.SetDefault("calendar.timeZone", "America/Sao_Paulo")
	viper.SetDefault("calendar.credentialsFile", "credentials.json")
	viper.SetDefault("calendar.tokenFile", "token.json")
	viper.SetDefault("calendar.requestTimeout", "10s")

	err := viper.ReadInConfig()
	if err != nil {
		return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	keys := viper.AllKeys()
	for _, key := range keys {
		env := viper.GetString(key)
		if strings.HasPrefix(env, envConfigPrefix) {
			err := viper.BindEnv(key, env[len(envConfigPrefix):])
			if err != nil {
				return Config{}, fmt.Errorf("failed to prepare config: %w", err)
			}
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return config, nil
}
