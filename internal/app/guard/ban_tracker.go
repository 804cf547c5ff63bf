// Package guard protects the unauthenticated join paths: per-IP request
// rate limiting and failure counting with temporary bans.
package guard

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

type BanConfig struct {
	MaxFailures   int           `mapstructure:"max_failures"`
	FailureWindow time.Duration `mapstructure:"failure_window"`
	BanDuration   time.Duration `mapstructure:"ban_duration"`
}

// BanTracker counts failed join attempts (bad token, wrong password, unknown
// code) per IP. MaxFailures within FailureWindow bans the IP for BanDuration.
type BanTracker struct {
	mu       sync.Mutex
	failures *cache.Cache
	bans     *cache.Cache
	cfg      BanConfig
}

func NewBanTracker(cfg BanConfig) *BanTracker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 10
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = 15 * time.Minute
	}
	if cfg.BanDuration <= 0 {
		cfg.BanDuration = time.Hour
	}
	return &BanTracker{
		failures: cache.New(cfg.FailureWindow, cfg.FailureWindow),
		bans:     cache.New(cfg.BanDuration, cfg.BanDuration),
		cfg:      cfg,
	}
}

func (b *BanTracker) IsBanned(ip string) bool {
	_, banned := b.bans.Get(ip)
	return banned
}

func (b *BanTracker) RecordFailure(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failures.Add(ip, 1, cache.DefaultExpiration); err != nil {
		if _, err := b.failures.IncrementInt(ip, 1); err != nil {
			b.failures.Set(ip, 1, cache.DefaultExpiration)
		}
	}
	v, _ := b.failures.Get(ip)
	count, _ := v.(int)
	if count < b.cfg.MaxFailures {
		return false
	}
	b.failures.Delete(ip)
	b.bans.Set(ip, time.Now(), cache.DefaultExpiration)
	log.Warn().Str("module", "guard").Str("ip", ip).Int("failures", count).Dur("ban", b.cfg.BanDuration).Msg("ip banned")
	return true
}

func (b *BanTracker) Reset(ip string) {
	b.failures.Delete(ip)
}
