package service

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/gramrelay/gramrelay/instagram"
	"github.com/gramrelay/gramrelay/resolver"
)

// Telegram caps media groups (albums) at ten items.
const mediaGroupLimit = 10

// DeliverArtifacts uploads staged media to the chat: images as albums,
// videos individually. It returns how many artifacts were uploaded
// alongside the total, so partial failures can be reported as
// "uploaded X of Y". The files must still exist when this is called;
// the resolver removes the workspace as soon as delivery returns.
func (s *TelegramService) DeliverArtifacts(ctx context.Context, chatID int64, artifacts []resolver.Artifact) (int, int) {
	var images, videos []resolver.Artifact
	for _, artifact := range artifacts {
		switch artifact.Kind {
		case instagram.MediaKindImage:
			images = append(images, artifact)
		case instagram.MediaKindVideo:
			videos = append(videos, artifact)
		}
	}

	total := len(images) + len(videos)
	uploaded := 0
	uploaded += s.uploadImages(ctx, chatID, images)
	uploaded += s.uploadVideos(ctx, chatID, videos)
	return uploaded, total
}

// imageChunks splits images into album-sized chunks. A trailing chunk
// may hold a single image; Telegram rejects one-item albums, so the
// caller sends those as plain photos.
func imageChunks(images []resolver.Artifact) [][]resolver.Artifact {
	var chunks [][]resolver.Artifact
	for start := 0; start < len(images); start += mediaGroupLimit {
		end := start + mediaGroupLimit
		if end > len(images) {
			end = len(images)
		}
		chunks = append(chunks, images[start:end])
	}
	return chunks
}

func (s *TelegramService) uploadImages(ctx context.Context, chatID int64, images []resolver.Artifact) int {
	uploaded := 0
	for _, chunk := range imageChunks(images) {
		if len(chunk) == 1 {
			if s.send(ctx, tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(chunk[0].Path))) {
				uploaded++
			}
			continue
		}

		var group []interface{}
		for _, artifact := range chunk {
			group = append(group, tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(artifact.Path)))
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return uploaded
		}
		if s.testModeEnabled {
			log.WithField("chatID", chatID).Infof("Simulating album upload of %d images", len(chunk))
			uploaded += len(chunk)
			continue
		}
		if _, err := s.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, group)); err != nil {
			log.WithField("chatID", chatID).Errorf("error uploading album: %v", err)
			continue
		}
		uploaded += len(chunk)
	}
	return uploaded
}

func (s *TelegramService) uploadVideos(ctx context.Context, chatID int64, videos []resolver.Artifact) int {
	uploaded := 0
	for _, artifact := range videos {
		if s.send(ctx, tgbotapi.NewVideo(chatID, tgbotapi.FilePath(artifact.Path))) {
			uploaded++
		}
	}
	return uploaded
}

func (s *TelegramService) send(ctx context.Context, c tgbotapi.Chattable) bool {
	if err := s.limiter.Wait(ctx); err != nil {
		return false
	}
	if s.testModeEnabled {
		log.Info("Simulating media upload")
		return true
	}
	if _, err := s.bot.Send(c); err != nil {
		log.Errorf("error uploading media: %v", err)
		return false
	}
	return true
}
