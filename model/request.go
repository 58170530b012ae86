package model

import (
	"time"

	"github.com/gramrelay/gramrelay/database/db"
	"github.com/gramrelay/gramrelay/instagram"
)

// Request is one logged resolution attempt. The activity log is an
// append-only record; nothing in the resolution path reads it back.
type Request struct {
	ID            string
	ChatID        int64
	UserID        int64
	ContentType   instagram.ContentType
	ContentID     string
	URL           string
	Status        db.RequestStatus
	Strategy      string
	ArtifactCount int
	Detail        string
	Requested     time.Time
	Completed     *time.Time
}

func RequestFromRequestLog(row db.RequestLog) Request {
	return Request{
		ID:            row.ID,
		ChatID:        row.ChatID,
		UserID:        row.UserID,
		ContentType:   instagram.ContentType(row.ContentType),
		ContentID:     row.ContentID,
		URL:           row.URL,
		Status:        row.Status,
		Strategy:      row.Strategy,
		ArtifactCount: row.ArtifactCount,
		Detail:        row.Detail,
		Requested:     row.Requested,
		Completed:     row.Completed,
	}
}

// RequestStats backs the /status command.
type RequestStats struct {
	Total    int64
	Resolved int64
	Failed   int64
}
