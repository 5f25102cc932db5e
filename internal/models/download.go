package models

import "time"

// DownloadEvent is an append-only audit record of a software download
type DownloadEvent struct {
	ID         string
	UserID     *string // nil for anonymous downloads
	ProductID  string
	DownloadIP string
	UserAgent  string
	CreatedAt  time.Time
}
