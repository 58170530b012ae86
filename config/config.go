package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig
	Relay    RelayConfig

	PostgresURL        string
	PostgresSecretPath string

	LogLevel        log.Level
	LogFormat       LogFormat
	TestModeEnabled bool
	HealthcheckPort int
}

type TelegramConfig struct {
	BotToken   string
	SecretPath string
	// PollTimeout is the long-poll timeout passed to getUpdates, in seconds.
	PollTimeout int
}

type RelayConfig struct {
	// TmpRoot is the directory scratch workspaces are created under.
	TmpRoot string
	// MaxConcurrent bounds how many messages are resolved at once.
	MaxConcurrent int
}

type LogFormat string

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type EnvfileKey string

const (
	// Telegram bot API token, as issued by BotFather
	EnvfileKeyTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	// AWS Secrets Manager path where the Telegram bot token can be found
	EnvfileKeyTelegramSecretPath = "TELEGRAM_SECRETS_PATH"
	// Long-poll timeout for getUpdates, in seconds
	EnvfileKeyTelegramPollTimeout = "TELEGRAM_POLL_TIMEOUT"

	// Postgres connection string for the activity log
	EnvfileKeyPostgresURL = "POSTGRES_URL"
	// AWS Secrets Manager path where Postgres connection string can be found
	EnvfileKeyPostgresSecretsPath = "POSTGRES_SECRETS_PATH"

	// Directory scratch workspaces are created under (default os.TempDir)
	EnvfileKeyTmpRoot = "TMP_ROOT"
	// Maximum number of messages resolved concurrently
	EnvfileKeyMaxConcurrent = "MAX_CONCURRENT"

	// Log level (e.g. "debug", "info", "warn", "error")
	EnvfileKeyLogLevel = "LOG_LEVEL"
	// Log output format (e.g. "text", "json")
	EnvfileKeyLogFormat = "LOG_FORMAT"
	// Enables "test mode" (server simulates sending/uploading)
	EnvfileKeyTestMode = "TEST_MODE"
	// Port for the healthcheck endpoint
	EnvfileKeyHealthcheckPort = "HEALTHCHECK_PORT"
)

func FromEnvfile() Config {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("dotenv")

	err := viper.ReadInConfig()
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	botToken := getConfigString(EnvfileKeyTelegramBotToken)
	telegramSecretPath := getConfigString(EnvfileKeyTelegramSecretPath)
	if botToken == "" && telegramSecretPath == "" {
		log.Fatal("telegram bot token not configured")
	}

	pollTimeout := getConfigInt(EnvfileKeyTelegramPollTimeout)
	if pollTimeout == 0 {
		pollTimeout = 30
	}

	tmpRoot := getConfigString(EnvfileKeyTmpRoot)
	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}

	maxConcurrent := getConfigInt(EnvfileKeyMaxConcurrent)
	if maxConcurrent == 0 {
		maxConcurrent = 4
	}

	logLevel, err := log.ParseLevel(getConfigString(EnvfileKeyLogLevel))
	if err != nil {
		// Default to info level but log a warning
		log.Warnf("unable to parse log level: %v", err)
		logLevel = log.InfoLevel
	}

	logFormat, err := parseLogFormat(getConfigString(EnvfileKeyLogFormat))
	if err != nil {
		// Default to text formatter but log a warning
		log.Warnf("unable to parse log format: %v", err)
		logFormat = LogFormatText
	}

	postgresURL := getConfigString(EnvfileKeyPostgresURL)
	postgresSecretsPath := getConfigString(EnvfileKeyPostgresSecretsPath)
	if postgresURL == "" && postgresSecretsPath == "" {
		log.Fatal("postgres not configured")
	}

	healthcheckPort := getConfigInt(EnvfileKeyHealthcheckPort)
	if healthcheckPort == 0 {
		healthcheckPort = 8080
	}

	return Config{
		Telegram: TelegramConfig{
			BotToken:    botToken,
			SecretPath:  telegramSecretPath,
			PollTimeout: pollTimeout,
		},
		Relay: RelayConfig{
			TmpRoot:       tmpRoot,
			MaxConcurrent: maxConcurrent,
		},
		PostgresURL:        postgresURL,
		PostgresSecretPath: postgresSecretsPath,
		LogLevel:           logLevel,
		LogFormat:          logFormat,
		TestModeEnabled:    viper.GetBool(EnvfileKeyTestMode),
		HealthcheckPort:    healthcheckPort,
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(raw) {
	case LogFormatJSON:
		return LogFormatJSON, nil
	case LogFormatText:
		return LogFormatText, nil
	default:
		return "", fmt.Errorf("unidentified log format: %s", raw)
	}
}

// Gets a config value as a string from env vars or a .env file
func getConfigString(key string) string {
	value := os.Getenv(key)
	if value == "" {
		value = viper.GetString(key)
	}
	return value
}

// Gets a config value as an int from env vars or a .env file
func getConfigInt(key string) int {
	envVarValue := os.Getenv(key)
	if envVarValue == "" {
		return viper.GetInt(key)
	}
	value, err := strconv.Atoi(envVarValue)
	if err != nil {
		return 0
	}
	return value
}
