package config

type TelegramSecretData struct {
	BotToken string `json:"botToken"`
}

type PostgresSecretData struct {
	ConnectionString string `json:"connectionString"`
}
