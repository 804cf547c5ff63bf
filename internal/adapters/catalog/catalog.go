// Package catalog keeps the podcast, episode, membership and segment records
// a call needs, on gorm over sqlite.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
)

type Catalog struct {
	db *gorm.DB
}

var (
	_ core.AccessControl   = (*Catalog)(nil)
	_ core.Catalog         = (*Catalog)(nil)
	_ core.StorageQuota    = (*Catalog)(nil)
	_ core.SegmentIngestor = (*Catalog)(nil)
)

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.AutoMigrate(AutoMaintainRange...); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) DB() *gorm.DB { return c.db }

func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *Catalog) episode(ctx context.Context, episodeID string) (Episode, Podcast, error) {
	var ep Episode
	if err := c.db.WithContext(ctx).First(&ep, "id = ?", episodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Episode{}, Podcast{}, core.ErrEpisodeNotFound
		}
		return Episode{}, Podcast{}, err
	}
	var pod Podcast
	if err := c.db.WithContext(ctx).First(&pod, "id = ?", ep.PodcastID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Episode{}, Podcast{}, core.ErrEpisodeNotFound
		}
		return Episode{}, Podcast{}, err
	}
	return ep, pod, nil
}

// role is the user's role on the episode's podcast, empty when none.
func (c *Catalog) role(ctx context.Context, userID domain.UserID, episodeID string) (string, error) {
	_, pod, err := c.episode(ctx, episodeID)
	if err != nil {
		if errors.Is(err, core.ErrEpisodeNotFound) {
			return "", nil
		}
		return "", err
	}
	if pod.OwnerUserID == string(userID) {
		return RoleOwner, nil
	}
	var m Member
	err = c.db.WithContext(ctx).
		Where(&Member{PodcastID: pod.ID, UserID: string(userID)}).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return m.Role, err
}

func (c *Catalog) CanAccessEpisode(ctx context.Context, userID domain.UserID, episodeID string) (bool, error) {
	role, err := c.role(ctx, userID, episodeID)
	return role != "", err
}

func (c *Catalog) CanEditSegments(ctx context.Context, userID domain.UserID, episodeID string) (bool, error) {
	role, err := c.role(ctx, userID, episodeID)
	return role == RoleOwner || role == RoleEditor, err
}

func (c *Catalog) Episode(ctx context.Context, episodeID string) (core.EpisodeInfo, error) {
	ep, pod, err := c.episode(ctx, episodeID)
	if err != nil {
		return core.EpisodeInfo{}, err
	}
	artwork := ep.ArtworkURL
	if artwork == "" {
		artwork = pod.ArtworkURL
	}
	return core.EpisodeInfo{
		ID:           ep.ID,
		Title:        ep.Title,
		PodcastID:    pod.ID,
		PodcastTitle: pod.Title,
		ArtworkURL:   artwork,
		OwnerUserID:  domain.UserID(pod.OwnerUserID),
	}, nil
}

func (c *Catalog) DisplayName(ctx context.Context, userID domain.UserID) string {
	var u User
	if err := c.db.WithContext(ctx).First(&u, "id = ?", string(userID)).Error; err != nil {
		return ""
	}
	return u.DisplayName
}

func (c *Catalog) CheckQuota(ctx context.Context, podcastID string, additionalBytes int64) (core.QuotaStatus, error) {
	var pod Podcast
	if err := c.db.WithContext(ctx).First(&pod, "id = ?", podcastID).Error; err != nil {
		return core.QuotaStatus{}, err
	}
	return core.QuotaStatus{
		Allowed:    pod.StorageLimitBytes == 0 || pod.StorageUsedBytes+additionalBytes < pod.StorageLimitBytes,
		UsedBytes:  pod.StorageUsedBytes,
		LimitBytes: pod.StorageLimitBytes,
	}, nil
}

// CreateSegmentFromPath appends a segment to the episode timeline and
// charges its size to the podcast's storage usage.
func (c *Catalog) CreateSegmentFromPath(ctx context.Context, in core.SegmentInput) (core.Segment, error) {
	seg := Segment{
		ID:         in.SegmentID,
		EpisodeID:  in.EpisodeID,
		Path:       in.Path,
		DurationMs: in.Duration.Milliseconds(),
		SizeBytes:  in.SizeBytes,
		CreatedAt:  time.Now(),
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Segment{}).Where(&Segment{EpisodeID: in.EpisodeID}).Count(&count).Error; err != nil {
			return err
		}
		seg.Position = int(count)
		if err := tx.Create(&seg).Error; err != nil {
			return err
		}
		return tx.Model(&Podcast{}).
			Where("id = ?", in.PodcastID).
			Update("storage_used_bytes", gorm.Expr("storage_used_bytes + ?", in.SizeBytes)).Error
	})
	if err != nil {
		return core.Segment{}, fmt.Errorf("create segment: %w", err)
	}
	return core.Segment{
		ID:         seg.ID,
		EpisodeID:  seg.EpisodeID,
		Path:       seg.Path,
		DurationMs: seg.DurationMs,
		SizeBytes:  seg.SizeBytes,
		CreatedAt:  seg.CreatedAt,
		Position:   seg.Position,
	}, nil
}
