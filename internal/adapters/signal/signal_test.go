package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/app/guard"
	"github.com/dkeye/podcall/internal/app/orch"
	"github.com/dkeye/podcall/internal/app/recording"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/protocol"
)

type staticIdentity map[string]domain.UserID

func (s staticIdentity) VerifyIdentity(_ context.Context, token string) (domain.UserID, error) {
	if uid, ok := s[token]; ok {
		return uid, nil
	}
	return "", core.ErrInvalidIdentity
}

type overQuota struct{}

func (overQuota) CheckQuota(context.Context, string, int64) (core.QuotaStatus, error) {
	return core.QuotaStatus{Allowed: false}, nil
}

type countingMedia struct{ starts int }

func (m *countingMedia) Configured() bool { return true }
func (m *countingMedia) CreateRoom(context.Context, domain.SessionID) (string, error) {
	return "room-1", nil
}
func (m *countingMedia) DeleteRoom(context.Context, string) error { return nil }
func (m *countingMedia) StartRecording(context.Context, core.StartRecordingRequest) error {
	m.starts++
	return nil
}
func (m *countingMedia) StopRecording(context.Context, string) error { return nil }

type harness struct {
	srv   *httptest.Server
	orch  *orch.Orchestrator
	media *countingMedia
	sess  *domain.CallSession
}

func newHarness(t *testing.T, grace time.Duration) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := app.NewStore()
	reg := app.NewRegistry()
	media := &countingMedia{}
	o := &orch.Orchestrator{
		Sessions:     store,
		Registry:     reg,
		Media:        media,
		MediaURL:     "wss://media.example.com",
		RemountGrace: grace,
	}
	o.Recorder = &recording.Coordinator{Sessions: store, Out: reg, Media: media, Quota: overQuota{}}

	ctl := NewSignalWSController(o, staticIdentity{"good-token": "U1"}, guard.NewBanTracker(guard.BanConfig{MaxFailures: 2}), nil)

	r := gin.New()
	r.GET("/call/ws", func(c *gin.Context) {
		ctl.HandleSignal(context.Background(), c, domain.UserID(c.GetHeader("X-Test-User")))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	res, err := o.StartCall(context.Background(), app.CreateParams{EpisodeID: "E1", PodcastID: "P1", HostUserID: "U1", HostName: "Alice"})
	require.NoError(t, err)
	return &harness{srv: srv, orch: o, media: media, sess: res.Session}
}

func (h *harness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/call/ws"
	hdr := http.Header{}
	if user != "" {
		hdr.Set("X-Test-User", user)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// expect reads until a message of typ arrives, failing after a timeout.
func expect(t *testing.T, ws *websocket.Conn, typ protocol.ServerType) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, ws.SetReadDeadline(deadline))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == string(typ) {
			return m
		}
	}
}

func expectClosed(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			assert.False(t, isTimeout(err), "connection was not closed")
			return
		}
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

func (h *harness) joinHost(t *testing.T, name string) *websocket.Conn {
	t.Helper()
	ws := h.dial(t, "U1")
	send(t, ws, map[string]any{"type": "host", "sessionId": h.sess.ID, "name": name})
	joined := expect(t, ws, protocol.TypeJoined)
	require.Equal(t, true, joined["isHost"])
	return ws
}

func (h *harness) joinGuest(t *testing.T, name string) (*websocket.Conn, map[string]any) {
	t.Helper()
	ws := h.dial(t, "")
	send(t, ws, map[string]any{"type": "guest", "token": h.sess.Token, "name": name})
	return ws, expect(t, ws, protocol.TypeJoined)
}

func TestSignal_GuestJoinScenario(t *testing.T) {
	h := newHarness(t, time.Hour)
	host := h.joinHost(t, "")

	_, joined := h.joinGuest(t, "Bob")
	assert.Equal(t, false, joined["isHost"])
	assert.Len(t, joined["participants"], 2)
	media := joined["media"].(map[string]any)
	assert.Equal(t, "room-1", media["roomId"])

	pj := expect(t, host, protocol.TypeParticipantJoined)
	assert.Equal(t, "Bob", pj["participant"].(map[string]any)["name"])
}

func TestSignal_IgnoresNoiseBeforeHandshake(t *testing.T) {
	h := newHarness(t, time.Hour)
	ws := h.dial(t, "U1")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, ws, map[string]any{"type": "bogus"})
	send(t, ws, map[string]any{"type": "chat", "text": "too early"})
	send(t, ws, map[string]any{"type": "host", "sessionId": h.sess.ID})

	joined := expect(t, ws, protocol.TypeJoined)
	assert.Equal(t, true, joined["isHost"])
}

func TestSignal_HostIdentity(t *testing.T) {
	h := newHarness(t, time.Hour)

	anon := h.dial(t, "")
	send(t, anon, map[string]any{"type": "host", "sessionId": h.sess.ID})
	assert.Equal(t, MsgSignInFirst, expect(t, anon, protocol.TypeError)["error"])
	expectClosed(t, anon)

	wrong := h.dial(t, "U2")
	send(t, wrong, map[string]any{"type": "host", "sessionId": h.sess.ID})
	assert.Equal(t, MsgJoinRefused, expect(t, wrong, protocol.TypeError)["error"])
	expectClosed(t, wrong)

	viaToken := h.dial(t, "")
	send(t, viaToken, map[string]any{"type": "host", "sessionId": h.sess.ID, "authToken": "good-token"})
	assert.Equal(t, true, expect(t, viaToken, protocol.TypeJoined)["isHost"])
}

func TestSignal_GuestRefusalAndBan(t *testing.T) {
	h := newHarness(t, time.Hour)

	for i := 0; i < 2; i++ {
		ws := h.dial(t, "")
		send(t, ws, map[string]any{"type": "guest", "token": "nope"})
		assert.Equal(t, MsgJoinRefused, expect(t, ws, protocol.TypeError)["error"])
		expectClosed(t, ws)
	}

	ws := h.dial(t, "")
	send(t, ws, map[string]any{"type": "guest", "token": h.sess.Token})
	assert.Equal(t, MsgTooMany, expect(t, ws, protocol.TypeError)["error"])
	expectClosed(t, ws)
}

func TestSignal_HostRemountWithinGrace(t *testing.T) {
	h := newHarness(t, time.Hour)
	first := h.joinHost(t, "")
	h.joinHost(t, "")

	expectClosed(t, first)
	host, _ := h.sess.Host()
	assert.Len(t, h.orch.Registry.ParticipantConnections(h.sess.ID, host.ID), 1)
}

func TestSignal_HostMigration(t *testing.T) {
	h := newHarness(t, 0)
	first := h.joinHost(t, "")

	second := h.dial(t, "U1")
	send(t, second, map[string]any{"type": "host", "sessionId": h.sess.ID, "name": "Alice 2"})
	offer := expect(t, second, protocol.TypeAlreadyInCall)
	assert.Equal(t, true, offer["canMigrate"])

	send(t, second, map[string]any{"type": "migrateHost"})
	joined := expect(t, second, protocol.TypeJoined)
	assert.Equal(t, true, joined["isHost"])

	bye := expect(t, first, protocol.TypeDisconnected)
	assert.Equal(t, protocol.ReasonMigrated, bye["reason"])
	expectClosed(t, first)
}

func TestSignal_StartRecordingOverQuota(t *testing.T) {
	h := newHarness(t, time.Hour)
	host := h.joinHost(t, "")
	guest, _ := h.joinGuest(t, "Bob")

	send(t, guest, map[string]any{"type": "startRecording"})
	send(t, host, map[string]any{"type": "startRecording"})

	for _, ws := range []*websocket.Conn{host, guest} {
		msg := expect(t, ws, protocol.TypeRecordingError)
		assert.Equal(t, recording.MsgStorageLimit, msg["error"])
	}
	assert.Zero(t, h.media.starts)
}

func TestSignal_ChatMuteAndEnd(t *testing.T) {
	h := newHarness(t, time.Hour)
	host := h.joinHost(t, "")
	guest, joined := h.joinGuest(t, "Bob")
	guestID := joined["participantId"].(string)
	expect(t, host, protocol.TypeParticipantJoined)

	send(t, guest, map[string]any{"type": "chat", "text": "  hello  "})
	chat := expect(t, host, protocol.TypeChat)
	assert.Equal(t, "hello", chat["text"])
	assert.Equal(t, "Bob", chat["name"])

	send(t, host, map[string]any{"type": "setMute", "targetParticipantId": guestID, "muted": true})
	instr := expect(t, guest, protocol.TypeSetMute)
	assert.Equal(t, true, instr["byHost"])

	send(t, guest, map[string]any{"type": "setMute", "muted": false})
	rejected := expect(t, guest, protocol.TypeSetMute)
	assert.Equal(t, true, rejected["muted"])

	send(t, host, map[string]any{"type": "heartbeat"})
	expect(t, host, protocol.TypeHeartbeatAck)

	send(t, host, map[string]any{"type": "endCall"})
	ended := expect(t, guest, protocol.TypeCallEnded)
	assert.Equal(t, protocol.ReasonEndedByHost, ended["reason"])
	expect(t, host, protocol.TypeCallEnded)
	assert.Zero(t, h.orch.Sessions.Count())
}

func TestSignal_DisconnectParticipant(t *testing.T) {
	h := newHarness(t, time.Hour)
	host := h.joinHost(t, "")
	guest, joined := h.joinGuest(t, "Bob")
	expect(t, host, protocol.TypeParticipantJoined)

	send(t, host, map[string]any{"type": "disconnectParticipant", "participantId": joined["participantId"]})
	bye := expect(t, guest, protocol.TypeDisconnected)
	assert.Equal(t, protocol.ReasonRemovedByHost, bye["reason"])
	expectClosed(t, guest)

	list := expect(t, host, protocol.TypeParticipants)
	assert.Len(t, list["participants"], 1)
}

func TestSignal_GuestCloseRemovesParticipant(t *testing.T) {
	h := newHarness(t, time.Hour)
	host := h.joinHost(t, "")
	guest, _ := h.joinGuest(t, "Bob")
	expect(t, host, protocol.TypeParticipantJoined)

	require.NoError(t, guest.Close())
	list := expect(t, host, protocol.TypeParticipants)
	assert.Len(t, list["participants"], 1)
}
