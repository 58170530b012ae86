package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gramrelay/gramrelay/config"
)

// TelegramService wraps the bot API: long-poll updates in, status
// messages and media uploads out. In test mode sends are simulated.
type TelegramService struct {
	bot             *tgbotapi.BotAPI
	pollTimeout     int
	testModeEnabled bool

	// Telegram flood-limits bots that send too fast; every outbound
	// call waits on this.
	limiter *rate.Limiter
}

func NewTelegramService(ctx context.Context, cfg config.Config, secretsManagerClient *secretsmanager.Client) *TelegramService {
	token := cfg.Telegram.BotToken
	if token == "" {
		// Get the bot token from AWS Secrets Manager
		result, err := secretsManagerClient.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(cfg.Telegram.SecretPath)})
		if err != nil {
			log.Fatal(err.Error())
		}
		var telegramSecrets config.TelegramSecretData
		err = json.Unmarshal([]byte(*result.SecretString), &telegramSecrets)
		if err != nil {
			log.Panicf("telegram secrets read error: %v", err)
		}
		token = telegramSecrets.BotToken
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Panicf("telegram bot init error: %v", err)
	}
	log.Infof("Telegram bot authorized as @%s", bot.Self.UserName)

	return &TelegramService{
		bot:             bot,
		pollTimeout:     cfg.Telegram.PollTimeout,
		testModeEnabled: cfg.TestModeEnabled,
		limiter:         rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// Updates returns the long-poll update channel. The channel closes
// when StopPolling is called.
func (s *TelegramService) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = s.pollTimeout
	return s.bot.GetUpdatesChan(u)
}

func (s *TelegramService) StopPolling() {
	s.bot.StopReceivingUpdates()
}

// SendStatus posts a progress message and returns its message ID so it
// can be edited as the request advances. Best effort: callers log
// failures and move on.
func (s *TelegramService) SendStatus(ctx context.Context, chatID int64, text string) (int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if s.testModeEnabled {
		log.WithField("chatID", chatID).Infof("Simulating status message: %s", text)
		return 0, nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := s.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditStatus replaces an earlier status message in place.
func (s *TelegramService) EditStatus(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.testModeEnabled {
		log.WithField("chatID", chatID).Infof("Simulating status edit: %s", text)
		return nil
	}
	_, err := s.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}
