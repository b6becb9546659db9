package main

import (
	"fmt"
	"strings"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/logger"
	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/rabbit"
	"github.com/spf13/viper"
)

const envConfigPrefix = "$env:"

type Config struct {
	Logger logger.Config
	Rabbit rabbit.Config
}

func NewConfig(configFile string) (Config, error) {
	config := Config{}
	viper.SetConfigFile(configFile)

	viper.SetDefault("rabbit.host", "127.0.0.1")
	viper.SetDefault("rabbit.port", "5672")
	viper.SetDefault("rabbit.user", "user")
	viper.SetDefault("rabbit.password", "pass")
	viper.SetDefault("rabbit.queue", "tasks.remind")
	viper.SetDefault("logger.level", "INFO")

	err := viper.ReadInConfig()
	if err != nil {
		return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	for _, key := range viper.AllKeys() {
		env := viper.GetString(key)
		if strings.HasPrefix(env, envConfigPrefix) {
			if err := viper.BindEnv(key, env[len(envConfigPrefix):]); err != nil {
				return config, fmt.Errorf("failed to prepare config: %w", err)
			}
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return config, nil
}
