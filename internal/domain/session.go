package domain

import "time"

type SessionID string

// CallSession is one live recording call tied to one episode and one host.
// Instances handed out by the session store are snapshots.
type CallSession struct {
	ID                  SessionID
	Token               string
	JoinCode            string
	EpisodeID           string
	PodcastID           string
	HostUserID          UserID
	Password            string
	RoomID              string
	OriginHint          string
	Participants        []Participant
	Ended               bool
	CreatedAt           time.Time
	LastHostHeartbeatAt time.Time
}

// Host returns the host participant record.
func (s *CallSession) Host() (Participant, bool) {
	for _, p := range s.Participants {
		if p.IsHost {
			return p, true
		}
	}
	return Participant{}, false
}

// Participant finds a participant by id.
func (s *CallSession) Participant(id ParticipantID) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

func (s *CallSession) HasPassword() bool { return s.Password != "" }

// Clone copies the session including its participant list.
func (s *CallSession) Clone() *CallSession {
	c := *s
	c.Participants = append([]Participant(nil), s.Participants...)
	return &c
}

// JoinInfo is the reduced view shown to a guest before they join. It never
// carries the password or the token.
type JoinInfo struct {
	SessionID        SessionID
	EpisodeID        string
	PodcastID        string
	HostUserID       UserID
	HostName         string
	PasswordRequired bool
}
