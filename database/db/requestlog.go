package db

import "time"

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusResolved RequestStatus = "RESOLVED"
	RequestStatusFailed   RequestStatus = "FAILED"
)

type RequestLog struct {
	ID            string        `db:"id"`
	ChatID        int64         `db:"chat_id"`
	UserID        int64         `db:"user_id"`
	ContentType   string        `db:"content_type"`
	ContentID     string        `db:"content_id"`
	URL           string        `db:"url"`
	Status        RequestStatus `db:"status"`
	Strategy      string        `db:"strategy"`
	ArtifactCount int           `db:"artifact_count"`
	Detail        string        `db:"detail"`
	Requested     time.Time     `db:"requested"`
	Completed     *time.Time    `db:"completed"`
}
