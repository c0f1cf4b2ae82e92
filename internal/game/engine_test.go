package game

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsnpeer/internal/ack"
	"lsnpeer/internal/identity"
	"lsnpeer/internal/notify"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
)

type sentMsg struct {
	fields proto.Fields
	ip     string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeSender) SendUnicast(msg, ip string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentMsg{fields: proto.Parse(msg), ip: ip})
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) SendBroadcast(msg string) error { return f.SendUnicast(msg, "broadcast") }

func (f *fakeSender) last() sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMsg{fields: proto.Fields{}}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) byType(msgType string) (sentMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.sent {
		if m.fields.Type() == msgType {
			return m, true
		}
	}
	return sentMsg{}, false
}

type recordingSink struct {
	mu    sync.Mutex
	notes []string
}

func (s *recordingSink) Notify(format string, args ...any) {
	s.mu.Lock()
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *recordingSink) FileOfferReceived(notify.FileOffer) bool { return true }
func (s *recordingSink) GameInviteReceived(from, gameID string) {
	s.Notify("invite %s from %s", gameID, from)
}

func (s *recordingSink) contains(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

const (
	localUser  = "me@10.0.0.1"
	remoteUser = "peer@10.0.0.2"
	remoteIP   = "10.0.0.2"
)

func newTestEngine() (*Engine, *fakeSender, *recordingSink) {
	sender := &fakeSender{}
	sink := &recordingSink{}
	e := &Engine{
		Local:          identity.Local{UserID: localUser, IP: "10.0.0.1"},
		Table:          NewTable(),
		Auth:           token.NewAuthority(),
		Acks:           ack.NewRegistry(0),
		Send:           sender,
		Sink:           sink,
		VerifySenderIP: true,
	}
	return e, sender, sink
}

func gameToken(a *token.Authority, user string) string {
	return a.Generate(user, time.Hour, token.ScopeGame)
}

func TestHandleInviteCreatesSessionAndAcks(t *testing.T) {
	e, sender, _ := newTestEngine()
	e.HandleInvite(proto.GameInvite{
		From: remoteUser, To: localUser, GameID: "g1", MessageID: "m1",
		Symbol: "O", Token: gameToken(e.Auth, remoteUser),
	}, remoteIP)

	s, ok := e.Table.Get("g1")
	require.True(t, ok)
	assert.Equal(t, "O", s.SymbolOf(remoteUser))
	assert.Equal(t, "X", s.SymbolOf(localUser))
	assert.Equal(t, localUser, s.PlayerX)

	last := sender.last()
	assert.Equal(t, proto.TypeAck, last.fields.Type())
	assert.Equal(t, "m1", last.fields.Get("MESSAGE_ID"))
	assert.Equal(t, proto.StatusReceived, last.fields.Get("STATUS"))
	assert.Equal(t, remoteIP, last.ip)
}

func TestHandleInviteRejectsWrongRecipient(t *testing.T) {
	e, sender, _ := newTestEngine()
	e.HandleInvite(proto.GameInvite{
		From: remoteUser, To: "someone@9.9.9.9", GameID: "g1", MessageID: "m1",
		Symbol: "X", Token: gameToken(e.Auth, remoteUser),
	}, remoteIP)
	assert.Zero(t, e.Table.Len())
	assert.Empty(t, sender.sent)
}

func TestHandleInviteRejectsIPMismatch(t *testing.T) {
	e, _, _ := newTestEngine()
	e.HandleInvite(proto.GameInvite{
		From: remoteUser, To: localUser, GameID: "g1", MessageID: "m1",
		Symbol: "X", Token: gameToken(e.Auth, remoteUser),
	}, "10.9.9.9")
	assert.Zero(t, e.Table.Len())

	e.VerifySenderIP = false
	e.HandleInvite(proto.GameInvite{
		From: remoteUser, To: localUser, GameID: "g1", MessageID: "m1",
		Symbol: "X", Token: gameToken(e.Auth, remoteUser),
	}, "10.9.9.9")
	assert.Equal(t, 1, e.Table.Len())
}

func TestHandleInviteRejectsForeignToken(t *testing.T) {
	e, _, _ := newTestEngine()
	e.HandleInvite(proto.GameInvite{
		From: remoteUser, To: localUser, GameID: "g1", MessageID: "m1",
		Symbol: "X", Token: gameToken(e.Auth, "impostor@10.0.0.2"),
	}, remoteIP)
	assert.Zero(t, e.Table.Len())
}

// seedGame installs a session where the remote peer plays X and moves first.
func seedGame(e *Engine) *Session {
	s := NewSession("g1", remoteUser, localUser, remoteIP, "10.0.0.1")
	s.AssignSymbols(remoteUser, "X")
	e.Table.Create(s)
	return s
}

func moveMsg(e *Engine, pos, turn int) proto.GameMove {
	return proto.GameMove{
		From: remoteUser, To: localUser, GameID: "g1",
		MessageID: fmt.Sprintf("m%d", turn), Position: pos, Symbol: "X", Turn: turn,
		Token: gameToken(e.Auth, remoteUser),
	}
}

func TestHandleMoveAcksVerdicts(t *testing.T) {
	e, sender, _ := newTestEngine()
	seedGame(e)

	e.HandleMove(moveMsg(e, 4, 1), remoteIP)
	assert.Equal(t, proto.StatusReceived, sender.last().fields.Get("STATUS"))

	// same turn again: duplicate, not re-applied
	e.HandleMove(moveMsg(e, 4, 1), remoteIP)
	assert.Equal(t, proto.StatusDuplicate, sender.last().fields.Get("STATUS"))

	// skipping ahead is rejected, not buffered
	e.HandleMove(moveMsg(e, 5, 4), remoteIP)
	assert.Equal(t, proto.StatusInvalidTurn, sender.last().fields.Get("STATUS"))

	// occupied cell
	m := moveMsg(e, 4, 2)
	m.Symbol = "X"
	e.HandleMove(m, remoteIP)
	assert.Equal(t, proto.StatusInvalidMove, sender.last().fields.Get("STATUS"))
}

func TestHandleMoveUnknownGame(t *testing.T) {
	e, sender, sink := newTestEngine()
	e.HandleMove(moveMsg(e, 0, 1), remoteIP)
	assert.Empty(t, sender.sent)
	assert.True(t, sink.contains("unknown game"))
}

func TestHandleMoveWinSendsResultAndRetiresSession(t *testing.T) {
	e, sender, sink := newTestEngine()
	s := seedGame(e)
	// remote X is one move away from the top row
	s.board = [9]string{"X", "X", "", "O", "O", "", "", "", ""}
	s.turn = 4
	s.processed = map[int]struct{}{1: {}, 2: {}, 3: {}, 4: {}}

	e.HandleMove(moveMsg(e, 2, 5), remoteIP)

	result, ok := sender.byType(proto.TypeGameResult)
	require.True(t, ok)
	assert.Equal(t, proto.ResultWin, result.fields.Get("RESULT"))
	assert.Equal(t, "X", result.fields.Get("SYMBOL"))
	assert.Equal(t, "0,1,2", result.fields.Get("WINNING_LINE"))
	assert.Equal(t, remoteUser, result.fields.Get("TO"))
	assert.Equal(t, remoteIP, result.ip)

	assert.Zero(t, e.Table.Len())
	assert.True(t, sink.contains("wins"))
}

func TestHandleResultMirrorsOutcome(t *testing.T) {
	e, _, sink := newTestEngine()
	s := seedGame(e)

	e.HandleResult(proto.GameResult{
		From: remoteUser, To: localUser, GameID: "g1", MessageID: "m9",
		Result: proto.ResultWin, Symbol: "X", WinningLine: []int{0, 4, 8},
	}, remoteIP)

	assert.Equal(t, StatusComplete, s.Status())
	assert.Equal(t, remoteUser, s.Winner())
	assert.Equal(t, []int{0, 4, 8}, s.WinningLine())
	assert.Zero(t, e.Table.Len())
	assert.True(t, sink.contains("finished"))
}

func TestHandleResultForfeit(t *testing.T) {
	e, _, _ := newTestEngine()
	s := seedGame(e)
	e.HandleResult(proto.GameResult{
		From: remoteUser, To: localUser, GameID: "g1", MessageID: "m9",
		Result: proto.ResultForfeit, Symbol: "X",
	}, remoteIP)
	assert.Equal(t, StatusForfeit, s.Status())
	assert.Zero(t, e.Table.Len())
}

func TestInviteThenDeliveryAck(t *testing.T) {
	e, sender, sink := newTestEngine()
	gameID, err := e.Invite(remoteUser, remoteIP, "X")
	require.NoError(t, err)
	require.NotEmpty(t, gameID)

	invite, ok := sender.byType(proto.TypeGameInvite)
	require.True(t, ok)
	assert.Equal(t, remoteUser, invite.fields.Get("TO"))
	assert.Equal(t, "X", invite.fields.Get("SYMBOL"))
	require.NotEmpty(t, invite.fields.Get("TOKEN"))

	s, ok := e.Table.Get(gameID)
	require.True(t, ok)
	assert.Equal(t, "X", s.SymbolOf(localUser))

	// delivery confirmation resolves the registered continuation once
	assert.True(t, e.Acks.Resolve(invite.fields.Get("MESSAGE_ID")))
	assert.True(t, sink.contains("delivered"))
	assert.False(t, e.Acks.Resolve(invite.fields.Get("MESSAGE_ID")))
}

func TestPlayMoveSendsAndAppliesLocally(t *testing.T) {
	e, sender, _ := newTestEngine()
	gameID, err := e.Invite(remoteUser, remoteIP, "X")
	require.NoError(t, err)

	require.NoError(t, e.PlayMove(gameID, 4))
	move, ok := sender.byType(proto.TypeGameMove)
	require.True(t, ok)
	assert.Equal(t, "4", move.fields.Get("POSITION"))
	assert.Equal(t, "1", move.fields.Get("TURN"))
	assert.Equal(t, "X", move.fields.Get("SYMBOL"))

	s, _ := e.Table.Get(gameID)
	assert.Equal(t, "X", s.Cell(4))

	// same cell again is rejected before anything is sent
	err = e.PlayMove(gameID, 4)
	assert.Error(t, err)
}
