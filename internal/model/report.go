package model

import "time"

const (
	ReportStatusLive = "live"
	ReportTypeVideo  = "video"
)

type ReportReason struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Report is keyed by (user, video): reporting the same video twice replaces
// the earlier record.
type Report struct {
	UserID       string    `json:"-"`
	VideoID      string    `json:"videoId"`
	VideoTitle   string    `json:"videoTitle"`
	ChannelTitle string    `json:"channelTitle"`
	ReasonID     string    `json:"reasonId"`
	ReasonTitle  string    `json:"reasonTitle"`
	Status       string    `json:"status"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
}
