package domain

import "time"

type ParticipantID string

// Participant is one person in a call. No transport fields here: the
// connection registry maps connections onto participants.
type Participant struct {
	ID          ParticipantID `json:"id"`
	Name        string        `json:"name"`
	IsHost      bool          `json:"isHost"`
	MutedBySelf bool          `json:"mutedBySelf"`
	MutedByHost bool          `json:"mutedByHost"`
	JoinedAt    time.Time     `json:"joinedAt"`
}
