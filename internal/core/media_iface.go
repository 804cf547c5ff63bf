package core

import (
	"context"

	"github.com/dkeye/podcall/internal/domain"
)

// MediaService is the external real-time media relay that hosts rooms and
// records them. This process only orchestrates it.
type MediaService interface {
	// Configured reports whether a media service base URL is set at all.
	Configured() bool
	CreateRoom(ctx context.Context, sessionID domain.SessionID) (roomID string, err error)
	DeleteRoom(ctx context.Context, roomID string) error
	StartRecording(ctx context.Context, req StartRecordingRequest) error
	StopRecording(ctx context.Context, roomID string) error
}

type StartRecordingRequest struct {
	RoomID         string `json:"roomId"`
	SessionID      string `json:"sessionId"`
	SegmentID      string `json:"segmentId"`
	EpisodeID      string `json:"episodeId"`
	PodcastID      string `json:"podcastId"`
	CallbackSecret string `json:"callbackSecret"`
}

// UserFacing is implemented by errors that carry a message safe to show to
// call participants.
type UserFacing interface {
	UserMessage() string
}
