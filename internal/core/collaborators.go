package core

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/podcall/internal/domain"
)

var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrPathOutsideBase = errors.New("path escapes base directory")
	ErrInvalidIdentity = errors.New("invalid identity")
)

// AccessControl answers per-user permission questions about episodes.
type AccessControl interface {
	CanAccessEpisode(ctx context.Context, userID domain.UserID, episodeID string) (bool, error)
	CanEditSegments(ctx context.Context, userID domain.UserID, episodeID string) (bool, error)
}

type EpisodeInfo struct {
	ID           string
	Title        string
	PodcastID    string
	PodcastTitle string
	ArtworkURL   string
	OwnerUserID  domain.UserID
}

// Catalog resolves the podcast/episode/user data shown around a call.
type Catalog interface {
	Episode(ctx context.Context, episodeID string) (EpisodeInfo, error)
	DisplayName(ctx context.Context, userID domain.UserID) string
}

type QuotaStatus struct {
	Allowed    bool
	UsedBytes  int64
	LimitBytes int64
}

// StorageQuota checks whether a podcast owner can store additionalBytes more.
type StorageQuota interface {
	CheckQuota(ctx context.Context, podcastID string, additionalBytes int64) (QuotaStatus, error)
}

// FailureTracker counts failed join attempts per IP and bans repeat offenders.
type FailureTracker interface {
	IsBanned(ip string) bool
	// RecordFailure returns true when this failure tipped the IP into a ban.
	RecordFailure(ip string) bool
	Reset(ip string)
}

type SegmentInput struct {
	EpisodeID string
	PodcastID string
	SegmentID string
	Path      string
	Duration  time.Duration
	SizeBytes int64
}

type Segment struct {
	ID         string    `json:"id"`
	EpisodeID  string    `json:"episodeId"`
	Path       string    `json:"-"`
	DurationMs int64     `json:"durationMs"`
	SizeBytes  int64     `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
	Position   int       `json:"position"`
}

// SegmentIngestor registers a finished recording file as an episode segment.
type SegmentIngestor interface {
	CreateSegmentFromPath(ctx context.Context, in SegmentInput) (Segment, error)
}

// PathGuard asserts a path stays inside a base directory.
type PathGuard interface {
	AssertWithin(base, target string) error
}

// FileStore moves recording files between the media service's output
// directory and permanent storage.
type FileStore interface {
	Copy(src, dst string) (int64, error)
	Remove(path string) error
}

// IdentityVerifier resolves a signed-in credential to a user.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, credential string) (domain.UserID, error)
}
