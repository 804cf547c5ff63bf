// Package domain contains call-session entities and the small rules that
// belong to them; no I/O, no locking.
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxDisplayNameLen = 60
	MaxChatLen        = 2000
	DefaultGuestName  = "Guest"
	DefaultHostName   = "Host"
)

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

type UserID string

// NormalizeName trims a display name and caps it at MaxDisplayNameLen runes.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return truncateRunes(name, MaxDisplayNameLen), ErrNameTooLong
	}
	return name, nil
}

// NameOrDefault is NormalizeName with a fallback for empty input. Overlong
// names are truncated rather than rejected.
func NameOrDefault(name, fallback string) string {
	n, err := NormalizeName(name)
	if errors.Is(err, ErrNameEmpty) {
		return fallback
	}
	return n
}

// NormalizeChat trims text and caps it at limit runes. An empty result means
// the message must be dropped.
func NormalizeChat(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		limit = MaxChatLen
	}
	if utf8.RuneCountInString(text) > limit {
		text = truncateRunes(text, limit)
	}
	return text
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
