// Package protocol defines the JSON messages exchanged on /call/ws.
//
// Client messages decode into a closed set of variants: every variant
// implements ClientMessage, whose marker method is unexported, so the set
// cannot grow outside this package.
package protocol

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Kind string

const (
	KindHost                  Kind = "host"
	KindMigrateHost           Kind = "migrateHost"
	KindGuest                 Kind = "guest"
	KindHeartbeat             Kind = "heartbeat"
	KindUpdateHostName        Kind = "updateHostName"
	KindUpdateParticipantName Kind = "updateParticipantName"
	KindLeave                 Kind = "leave"
	KindChat                  Kind = "chat"
	KindStartRecording        Kind = "startRecording"
	KindStopRecording         Kind = "stopRecording"
	KindSetMute               Kind = "setMute"
	KindDisconnectParticipant Kind = "disconnectParticipant"
	KindEndCall               Kind = "endCall"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownKind = errors.New("unknown message kind")
)

type ClientMessage interface {
	Kind() Kind
	clientMessage()
}

type Host struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name,omitempty"`
	AuthToken string `json:"authToken,omitempty"`
}

type MigrateHost struct{}

type Guest struct {
	Token    string `json:"token"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

type Heartbeat struct{}

type UpdateHostName struct {
	Name string `json:"name"`
}

type UpdateParticipantName struct {
	Name string `json:"name"`
}

type Leave struct{}

type Chat struct {
	Text string `json:"text"`
}

type StartRecording struct{}

type StopRecording struct{}

// SetMute without a target addresses the sender. A nil Muted toggles.
type SetMute struct {
	TargetParticipantID string `json:"targetParticipantId,omitempty"`
	Muted               *bool  `json:"muted,omitempty"`
}

type DisconnectParticipant struct {
	ParticipantID string `json:"participantId"`
}

type EndCall struct{}

func (Host) Kind() Kind                  { return KindHost }
func (MigrateHost) Kind() Kind           { return KindMigrateHost }
func (Guest) Kind() Kind                 { return KindGuest }
func (Heartbeat) Kind() Kind             { return KindHeartbeat }
func (UpdateHostName) Kind() Kind        { return KindUpdateHostName }
func (UpdateParticipantName) Kind() Kind { return KindUpdateParticipantName }
func (Leave) Kind() Kind                 { return KindLeave }
func (Chat) Kind() Kind                  { return KindChat }
func (StartRecording) Kind() Kind        { return KindStartRecording }
func (StopRecording) Kind() Kind         { return KindStopRecording }
func (SetMute) Kind() Kind               { return KindSetMute }
func (DisconnectParticipant) Kind() Kind { return KindDisconnectParticipant }
func (EndCall) Kind() Kind               { return KindEndCall }

func (Host) clientMessage()                  {}
func (MigrateHost) clientMessage()           {}
func (Guest) clientMessage()                 {}
func (Heartbeat) clientMessage()             {}
func (UpdateHostName) clientMessage()        {}
func (UpdateParticipantName) clientMessage() {}
func (Leave) clientMessage()                 {}
func (Chat) clientMessage()                  {}
func (StartRecording) clientMessage()        {}
func (StopRecording) clientMessage()         {}
func (SetMute) clientMessage()               {}
func (DisconnectParticipant) clientMessage() {}
func (EndCall) clientMessage()               {}

// IsHandshake reports whether msg is one of the kinds accepted before a
// connection is initialised.
func IsHandshake(msg ClientMessage) bool {
	switch msg.(type) {
	case Host, MigrateHost, Guest:
		return true
	}
	return false
}

// Decode parses one client frame into its variant.
func Decode(data []byte) (ClientMessage, error) {
	var env struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg ClientMessage
	var err error
	switch env.Type {
	case KindHost:
		msg, err = decodeInto[Host](data)
	case KindMigrateHost:
		msg = MigrateHost{}
	case KindGuest:
		msg, err = decodeInto[Guest](data)
	case KindHeartbeat:
		msg = Heartbeat{}
	case KindUpdateHostName:
		msg, err = decodeInto[UpdateHostName](data)
	case KindUpdateParticipantName:
		msg, err = decodeInto[UpdateParticipantName](data)
	case KindLeave:
		msg = Leave{}
	case KindChat:
		msg, err = decodeInto[Chat](data)
	case KindStartRecording:
		msg = StartRecording{}
	case KindStopRecording:
		msg = StopRecording{}
	case KindSetMute:
		msg, err = decodeInto[SetMute](data)
	case KindDisconnectParticipant:
		msg, err = decodeInto[DisconnectParticipant](data)
	case KindEndCall:
		msg = EndCall{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeInto[T ClientMessage](data []byte) (ClientMessage, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
