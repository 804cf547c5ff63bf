package protocol

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
)

type ServerType string

const (
	TypeJoined              ServerType = "joined"
	TypeAlreadyInCall       ServerType = "alreadyInCall"
	TypeError               ServerType = "error"
	TypeParticipants        ServerType = "participants"
	TypeParticipantJoined   ServerType = "participantJoined"
	TypeChat                ServerType = "chat"
	TypeSetMute             ServerType = "setMute"
	TypeDisconnected        ServerType = "disconnected"
	TypeRecordingStarted    ServerType = "recordingStarted"
	TypeRecordingStopped    ServerType = "recordingStopped"
	TypeRecordingStopFailed ServerType = "recordingStopFailed"
	TypeRecordingError      ServerType = "recordingError"
	TypeSegmentRecorded     ServerType = "segmentRecorded"
	TypeCallEnded           ServerType = "callEnded"
	TypeHeartbeatAck        ServerType = "heartbeatAck"
)

// Reasons carried by disconnected and callEnded.
const (
	ReasonRemovedByHost = "removedByHost"
	ReasonMigrated      = "migrated"
	ReasonEndedByHost   = "endedByHost"
	ReasonHostIdle      = "hostIdle"
)

// MediaDetails tells a client how to reach the media relay for its room.
type MediaDetails struct {
	WebRTCURL  string             `json:"webrtcUrl"`
	RoomID     string             `json:"roomId"`
	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`
}

type Joined struct {
	Type          ServerType           `json:"type"`
	SessionID     domain.SessionID     `json:"sessionId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	IsHost        bool                 `json:"isHost"`
	Participants  []domain.Participant `json:"participants"`
	Media         *MediaDetails        `json:"media,omitempty"`
}

type AlreadyInCall struct {
	Type       ServerType `json:"type"`
	CanMigrate bool       `json:"canMigrate"`
	Message    string     `json:"message"`
}

type Error struct {
	Type  ServerType `json:"type"`
	Error string     `json:"error"`
}

type Participants struct {
	Type         ServerType           `json:"type"`
	Participants []domain.Participant `json:"participants"`
}

type ParticipantJoined struct {
	Type        ServerType         `json:"type"`
	Participant domain.Participant `json:"participant"`
}

type ChatMessage struct {
	Type          ServerType           `json:"type"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	Name          string               `json:"name"`
	Text          string               `json:"text"`
	SentAt        time.Time            `json:"sentAt"`
}

// MuteInstruction is pushed directly to a participant whose mute state was
// decided for them.
type MuteInstruction struct {
	Type    ServerType `json:"type"`
	Muted   bool       `json:"muted"`
	ByHost  bool       `json:"byHost"`
	Message string     `json:"message,omitempty"`
}

type Disconnected struct {
	Type   ServerType `json:"type"`
	Reason string     `json:"reason"`
}

type RecordingStarted struct {
	Type      ServerType `json:"type"`
	SegmentID string     `json:"segmentId"`
}

type RecordingStopped struct {
	Type ServerType `json:"type"`
}

type RecordingFailure struct {
	Type  ServerType `json:"type"`
	Error string     `json:"error"`
}

type SegmentRecorded struct {
	Type    ServerType   `json:"type"`
	Segment core.Segment `json:"segment"`
}

type CallEnded struct {
	Type   ServerType `json:"type"`
	Reason string     `json:"reason,omitempty"`
}

type HeartbeatAck struct {
	Type ServerType `json:"type"`
	At   time.Time  `json:"at"`
}

func NewJoined(s *domain.CallSession, pid domain.ParticipantID, isHost bool, media *MediaDetails) Joined {
	return Joined{
		Type:          TypeJoined,
		SessionID:     s.ID,
		ParticipantID: pid,
		IsHost:        isHost,
		Participants:  s.Participants,
		Media:         media,
	}
}

func NewAlreadyInCall() AlreadyInCall {
	return AlreadyInCall{
		Type:       TypeAlreadyInCall,
		CanMigrate: true,
		Message:    "You are already in this call from another window or device.",
	}
}

func NewError(msg string) Error { return Error{Type: TypeError, Error: msg} }

func NewParticipants(ps []domain.Participant) Participants {
	return Participants{Type: TypeParticipants, Participants: ps}
}

func NewParticipantJoined(p domain.Participant) ParticipantJoined {
	return ParticipantJoined{Type: TypeParticipantJoined, Participant: p}
}

func NewChat(p domain.Participant, text string, at time.Time) ChatMessage {
	return ChatMessage{Type: TypeChat, ParticipantID: p.ID, Name: p.Name, Text: text, SentAt: at}
}

func NewMuteInstruction(muted, byHost bool, msg string) MuteInstruction {
	return MuteInstruction{Type: TypeSetMute, Muted: muted, ByHost: byHost, Message: msg}
}

func NewDisconnected(reason string) Disconnected {
	return Disconnected{Type: TypeDisconnected, Reason: reason}
}

func NewRecordingStarted(segmentID string) RecordingStarted {
	return RecordingStarted{Type: TypeRecordingStarted, SegmentID: segmentID}
}

func NewRecordingStopped() RecordingStopped { return RecordingStopped{Type: TypeRecordingStopped} }

func NewRecordingError(msg string) RecordingFailure {
	return RecordingFailure{Type: TypeRecordingError, Error: msg}
}

func NewRecordingStopFailed(msg string) RecordingFailure {
	return RecordingFailure{Type: TypeRecordingStopFailed, Error: msg}
}

func NewSegmentRecorded(seg core.Segment) SegmentRecorded {
	return SegmentRecorded{Type: TypeSegmentRecorded, Segment: seg}
}

func NewCallEnded(reason string) CallEnded { return CallEnded{Type: TypeCallEnded, Reason: reason} }

func NewHeartbeatAck(at time.Time) HeartbeatAck { return HeartbeatAck{Type: TypeHeartbeatAck, At: at} }
