package app

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/podcall/internal/domain"
)

const (
	joinCodeAlphabet = "0123456789"
	joinCodeLen      = 4
	joinCodeAttempts = 64
	tokenAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	tokenLen         = 32
)

var (
	ErrSessionExists     = errors.New("an active session already exists for this episode and host")
	ErrSessionNotFound   = errors.New("session not found")
	ErrJoinCodeExhausted = errors.New("no free join code")
)

type CreateParams struct {
	EpisodeID  string
	PodcastID  string
	HostUserID domain.UserID
	HostName   string
	OriginHint string
	Password   string
}

type sessionEntry struct {
	session *domain.CallSession
	onEnded func(domain.CallSession)
}

// Store owns every CallSession in the process. Callers only ever see
// snapshots; mutation goes through the methods below.
type Store struct {
	mu      sync.RWMutex
	byID    map[domain.SessionID]*sessionEntry
	byToken map[string]domain.SessionID
	byCode  map[string]domain.SessionID
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		byID:    make(map[domain.SessionID]*sessionEntry),
		byToken: make(map[string]domain.SessionID),
		byCode:  make(map[string]domain.SessionID),
		now:     time.Now,
	}
}

func (s *Store) Create(p CreateParams, onEnded func(domain.CallSession)) (*domain.CallSession, error) {
	token, err := gonanoid.Generate(tokenAlphabet, tokenLen)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findActiveLocked(p.EpisodeID, p.HostUserID); ok {
		return nil, ErrSessionExists
	}

	now := s.now()
	sess := &domain.CallSession{
		ID:         domain.SessionID(uuid.NewString()),
		Token:      token,
		EpisodeID:  p.EpisodeID,
		PodcastID:  p.PodcastID,
		HostUserID: p.HostUserID,
		Password:   strings.TrimSpace(p.Password),
		OriginHint: p.OriginHint,
		Participants: []domain.Participant{{
			ID:       domain.ParticipantID(uuid.NewString()),
			Name:     domain.NameOrDefault(p.HostName, domain.DefaultHostName),
			IsHost:   true,
			JoinedAt: now,
		}},
		CreatedAt:           now,
		LastHostHeartbeatAt: now,
	}
	s.byID[sess.ID] = &sessionEntry{session: sess, onEnded: onEnded}
	s.byToken[token] = sess.ID

	log.Info().Str("module", "app.store").Str("sid", string(sess.ID)).Str("episode", p.EpisodeID).Msg("session created")
	return sess.Clone(), nil
}

func (s *Store) FindActive(episodeID string, hostUserID domain.UserID) (*domain.CallSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.findActiveLocked(episodeID, hostUserID)
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

func (s *Store) findActiveLocked(episodeID string, hostUserID domain.UserID) (*sessionEntry, bool) {
	for _, e := range s.byID {
		if !e.session.Ended && e.session.EpisodeID == episodeID && e.session.HostUserID == hostUserID {
			return e, true
		}
	}
	return nil, false
}

func (s *Store) GetByID(id domain.SessionID) (*domain.CallSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.live(id)
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

func (s *Store) GetByToken(token string) (*domain.CallSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	e, ok := s.live(id)
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

func (s *Store) GetByCode(code string) (*domain.CallSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	e, ok := s.live(id)
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

// GetForJoinInfo returns the pre-join view for a guest link.
func (s *Store) GetForJoinInfo(token string) (*domain.JoinInfo, bool) {
	sess, ok := s.GetByToken(token)
	if !ok {
		return nil, false
	}
	info := &domain.JoinInfo{
		SessionID:        sess.ID,
		EpisodeID:        sess.EpisodeID,
		PodcastID:        sess.PodcastID,
		HostUserID:       sess.HostUserID,
		PasswordRequired: sess.HasPassword(),
	}
	if h, ok := sess.Host(); ok {
		info.HostName = h.Name
	}
	return info, true
}

// EnsureJoinCode assigns a 4-digit code unique among live sessions, or
// returns the one already assigned.
func (s *Store) EnsureJoinCode(id domain.SessionID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	if e.session.JoinCode != "" {
		return e.session.JoinCode, nil
	}
	for range joinCodeAttempts {
		code, err := gonanoid.Generate(joinCodeAlphabet, joinCodeLen)
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; taken {
			continue
		}
		e.session.JoinCode = code
		s.byCode[code] = id
		return code, nil
	}
	return "", ErrJoinCodeExhausted
}

func (s *Store) UpdateHostHeartbeat(id domain.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return false
	}
	e.session.LastHostHeartbeatAt = s.now()
	return true
}

func (s *Store) SetRoomID(id domain.SessionID, roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return false
	}
	e.session.RoomID = roomID
	return true
}

// SetParticipantName reports whether the stored name changed.
func (s *Store) SetParticipantName(id domain.SessionID, pid domain.ParticipantID, name string) bool {
	name, err := domain.NormalizeName(name)
	if errors.Is(err, domain.ErrNameEmpty) {
		return false
	}
	return s.mutateParticipant(id, pid, func(p *domain.Participant) bool {
		if p.Name == name {
			return false
		}
		p.Name = name
		return true
	})
}

func (s *Store) SetParticipantMutedBySelf(id domain.SessionID, pid domain.ParticipantID, muted bool) bool {
	return s.mutateParticipant(id, pid, func(p *domain.Participant) bool {
		if p.MutedBySelf == muted {
			return false
		}
		p.MutedBySelf = muted
		return true
	})
}

func (s *Store) SetParticipantMutedByHost(id domain.SessionID, pid domain.ParticipantID, muted bool) bool {
	return s.mutateParticipant(id, pid, func(p *domain.Participant) bool {
		if p.MutedByHost == muted {
			return false
		}
		p.MutedByHost = muted
		return true
	})
}

func (s *Store) mutateParticipant(id domain.SessionID, pid domain.ParticipantID, fn func(*domain.Participant) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return false
	}
	for i := range e.session.Participants {
		if e.session.Participants[i].ID == pid {
			return fn(&e.session.Participants[i])
		}
	}
	return false
}

// AddParticipant appends a guest. Nil when the session is gone or the id is
// already present.
func (s *Store) AddParticipant(id domain.SessionID, pid domain.ParticipantID, name string) *domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return nil
	}
	if _, exists := e.session.Participant(pid); exists {
		return nil
	}
	p := domain.Participant{
		ID:       pid,
		Name:     domain.NameOrDefault(name, domain.DefaultGuestName),
		JoinedAt: s.now(),
	}
	e.session.Participants = append(e.session.Participants, p)
	log.Info().Str("module", "app.store").Str("sid", string(id)).Str("pid", string(pid)).Msg("participant added")
	return &p
}

// RemoveParticipant drops a guest. The host record is never removed.
func (s *Store) RemoveParticipant(id domain.SessionID, pid domain.ParticipantID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return false
	}
	before := len(e.session.Participants)
	e.session.Participants = lo.Reject(e.session.Participants, func(p domain.Participant, _ int) bool {
		return p.ID == pid && !p.IsHost
	})
	removed := len(e.session.Participants) != before
	if removed {
		log.Info().Str("module", "app.store").Str("sid", string(id)).Str("pid", string(pid)).Msg("participant removed")
	}
	return removed
}

// Participant returns one participant of a live session.
func (s *Store) Participant(id domain.SessionID, pid domain.ParticipantID) (domain.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.live(id)
	if !ok {
		return domain.Participant{}, false
	}
	return e.session.Participant(pid)
}

// End marks the session ended, drops it and runs its onEnded hook. Only the
// first call returns the session; later calls return nil.
func (s *Store) End(id domain.SessionID) *domain.CallSession {
	s.mu.Lock()
	e, ok := s.live(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	e.session.Ended = true
	delete(s.byID, id)
	delete(s.byToken, e.session.Token)
	if e.session.JoinCode != "" {
		delete(s.byCode, e.session.JoinCode)
	}
	snap := e.session.Clone()
	onEnded := e.onEnded
	s.mu.Unlock()

	log.Info().Str("module", "app.store").Str("sid", string(id)).Msg("session ended")
	if onEnded != nil {
		onEnded(*snap)
	}
	return snap
}

// IdleSince lists live sessions whose host has not been heard from since cutoff.
func (s *Store) IdleSince(cutoff time.Time) []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SessionID
	for id, e := range s.byID {
		if e.session.LastHostHeartbeatAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) live(id domain.SessionID) (*sessionEntry, bool) {
	e, ok := s.byID[id]
	if !ok || e.session.Ended {
		return nil, false
	}
	return e, true
}
