package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	muted := true
	tests := []struct {
		name string
		in   string
		want ClientMessage
	}{
		{"host", `{"type":"host","sessionId":"s1","name":"Ann"}`, Host{SessionID: "s1", Name: "Ann"}},
		{"migrate", `{"type":"migrateHost"}`, MigrateHost{}},
		{"guest", `{"type":"guest","token":"T","name":"Bob","password":"pw"}`, Guest{Token: "T", Name: "Bob", Password: "pw"}},
		{"heartbeat", `{"type":"heartbeat"}`, Heartbeat{}},
		{"chat", `{"type":"chat","text":"hi"}`, Chat{Text: "hi"}},
		{"set mute self toggle", `{"type":"setMute"}`, SetMute{}},
		{"set mute target", `{"type":"setMute","targetParticipantId":"p2","muted":true}`, SetMute{TargetParticipantID: "p2", Muted: &muted}},
		{"disconnect", `{"type":"disconnectParticipant","participantId":"p2"}`, DisconnectParticipant{ParticipantID: "p2"}},
		{"end", `{"type":"endCall"}`, EndCall{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`{"type":"chat","text":42}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIsHandshake(t *testing.T) {
	assert.True(t, IsHandshake(Host{}))
	assert.True(t, IsHandshake(Guest{}))
	assert.True(t, IsHandshake(MigrateHost{}))
	assert.False(t, IsHandshake(Chat{}))
	assert.False(t, IsHandshake(EndCall{}))
}
