package catalog

import "time"

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type User struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string
	CreatedAt   time.Time
}

type Podcast struct {
	ID          string `gorm:"primaryKey"`
	Title       string
	OwnerUserID string `gorm:"index"`
	ArtworkURL  string
	// StorageLimitBytes of zero means unlimited.
	StorageLimitBytes int64
	StorageUsedBytes  int64
	CreatedAt         time.Time
}

type Episode struct {
	ID         string `gorm:"primaryKey"`
	PodcastID  string `gorm:"index"`
	Title      string
	ArtworkURL string
	CreatedAt  time.Time
}

type Member struct {
	PodcastID string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey"`
	Role      string
}

type Segment struct {
	ID         string `gorm:"primaryKey"`
	EpisodeID  string `gorm:"index"`
	Path       string
	DurationMs int64
	SizeBytes  int64
	Position   int
	CreatedAt  time.Time
}

var AutoMaintainRange = []any{
	&User{},
	&Podcast{},
	&Episode{},
	&Member{},
	&Segment{},
}
