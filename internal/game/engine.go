package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lsnpeer/internal/ack"
	"lsnpeer/internal/identity"
	"lsnpeer/internal/logging"
	"lsnpeer/internal/notify"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
	"lsnpeer/internal/transport"
)

// Engine drives game sessions: it handles inbound invite/move/result
// messages and builds outbound ones.
type Engine struct {
	Local identity.Local
	Table *Table
	Auth  *token.Authority
	Acks  *ack.Registry
	Send  transport.Sender
	Sink  notify.Sink

	// VerifySenderIP rejects messages whose FROM-embedded ip differs from
	// the UDP source.
	VerifySenderIP bool
}

// gate applies the inbound checks shared by all game messages: the message
// must address the local identity, the claimed FROM ip must match the source
// when the policy is on, and the token must validate for the game scope bound
// to the FROM identity. tokenOptional admits RESULT messages sent bare.
func (e *Engine) gate(to, from, tok, srcIP string, tokenOptional bool) bool {
	if to != e.Local.UserID {
		return false
	}
	if e.VerifySenderIP {
		if _, ip := proto.SplitUserID(from); ip != "" && ip != srcIP {
			logging.Verbosef("DROP!", "game message FROM ip mismatch: %s vs %s", from, srcIP)
			return false
		}
	}
	if tok == "" && tokenOptional {
		return true
	}
	if !e.Auth.Validate(tok, token.ScopeGame) {
		return false
	}
	if user, _, _, _ := token.Parse(tok); user != from {
		logging.Verbosef("DROP!", "game token user %q != FROM %q", user, from)
		return false
	}
	return true
}

func (e *Engine) sendAck(ip, messageID, status string) {
	msg := proto.Ack{MessageID: messageID, Status: status}.Encode()
	if err := e.Send.SendUnicast(msg, ip); err != nil {
		logging.Logf("game ack send failed: %v", err)
	}
}

// HandleInvite creates the session for a validated TICTACTOE_INVITE and ACKs
// receipt. A duplicate invite refreshes the existing session.
func (e *Engine) HandleInvite(m proto.GameInvite, srcIP string) {
	if !e.gate(m.To, m.From, m.Token, srcIP, false) {
		return
	}
	sym := m.Symbol
	if sym != "X" && sym != "O" {
		sym = "X"
	}
	var s *Session
	if sym == "X" {
		s = NewSession(m.GameID, m.From, e.Local.UserID, srcIP, e.Local.IP)
	} else {
		s = NewSession(m.GameID, e.Local.UserID, m.From, e.Local.IP, srcIP)
	}
	s.AssignSymbols(m.From, sym)
	if !e.Table.Create(s) {
		e.Table.Touch(m.GameID)
	}
	e.Sink.GameInviteReceived(m.From, m.GameID)
	logging.Verbosef("GAME", "invite %s from %s (inviter plays %s)", m.GameID, m.From, sym)
	e.sendAck(srcIP, m.MessageID, proto.StatusReceived)
}

// HandleMove applies a validated TICTACTOE_MOVE, ACKing the verdict. A
// decided board completes the session and reports the result to the mover.
func (e *Engine) HandleMove(m proto.GameMove, srcIP string) {
	if !e.gate(m.To, m.From, m.Token, srcIP, false) {
		return
	}
	s, ok := e.Table.Get(m.GameID)
	if !ok {
		e.Sink.Notify("move for unknown game %s from %s", m.GameID, m.From)
		return
	}
	switch s.ApplyMove(m.From, m.Position, m.Symbol, m.Turn) {
	case VerdictDuplicate:
		e.sendAck(srcIP, m.MessageID, proto.StatusDuplicate)
		return
	case VerdictInvalidTurn:
		e.Sink.Notify("unexpected turn %d for game %s (expected %d)", m.Turn, m.GameID, s.Turn()+1)
		e.sendAck(srcIP, m.MessageID, proto.StatusInvalidTurn)
		return
	case VerdictInvalidMove:
		e.Sink.Notify("invalid move by %s in game %s at position %d", m.From, m.GameID, m.Position)
		e.sendAck(srcIP, m.MessageID, proto.StatusInvalidMove)
		return
	}
	e.sendAck(srcIP, m.MessageID, proto.StatusReceived)
	e.Sink.Notify("game %s: %s played %s at %d (turn %d)", m.GameID, m.From, m.Symbol, m.Position, m.Turn)
	e.Table.Touch(m.GameID)

	outcome, decided := s.CheckWinner()
	if !decided {
		return
	}
	s.Complete(outcome)
	e.reportResult(s, m.From, outcome)
	e.Table.Remove(m.GameID)
	if outcome.Result == proto.ResultWin {
		e.Sink.Notify("game %s over: %s wins with %s", m.GameID, outcome.Winner, outcome.Symbol)
	} else {
		e.Sink.Notify("game %s over: draw", m.GameID)
	}
}

// reportResult sends TICTACTOE_RESULT to the local side's opponent, the peer
// whose move decided the game.
func (e *Engine) reportResult(s *Session, mover string, outcome Outcome) {
	opponent := s.OtherPlayer(e.Local.UserID)
	ip := s.IPOf(opponent)
	if ip == "" {
		_, ip = proto.SplitUserID(opponent)
	}
	sym := outcome.Symbol
	if sym == "" {
		sym = s.SymbolOf(mover)
	}
	msg := proto.GameResult{
		From:        e.Local.UserID,
		To:          opponent,
		GameID:      s.GameID,
		MessageID:   newMessageID(),
		Result:      outcome.Result,
		Symbol:      sym,
		WinningLine: outcome.Line,
		Timestamp:   time.Now().Unix(),
	}.Encode()
	if err := e.Send.SendUnicast(msg, ip); err != nil {
		logging.Logf("game result send failed: %v", err)
	}
}

// HandleResult mirrors a remotely decided outcome and retires the session.
func (e *Engine) HandleResult(m proto.GameResult, srcIP string) {
	if !e.gate(m.To, m.From, m.Token, srcIP, true) {
		return
	}
	s, ok := e.Table.Get(m.GameID)
	if !ok {
		e.Sink.Notify("result for unknown game %s from %s", m.GameID, m.From)
		return
	}
	switch m.Result {
	case proto.ResultForfeit:
		s.Forfeit()
		e.Sink.Notify("game %s forfeited by %s", m.GameID, m.From)
	case proto.ResultWin:
		s.Complete(Outcome{
			Result: m.Result,
			Symbol: m.Symbol,
			Line:   m.WinningLine,
			Winner: s.UserOf(m.Symbol),
		})
		e.Sink.Notify("game %s finished: %s wins with %s", m.GameID, s.Winner(), m.Symbol)
	default:
		s.Complete(Outcome{Result: m.Result})
		e.Sink.Notify("game %s finished: %s", m.GameID, m.Result)
	}
	e.Table.Remove(m.GameID)
}

// Invite starts a game with a peer. The local side plays symbol (default X).
// Returns the new game id.
func (e *Engine) Invite(toUser, toIP, symbol string) (string, error) {
	if symbol != "X" && symbol != "O" {
		symbol = "X"
	}
	gameID := "g" + uuid.NewString()[:8]
	var s *Session
	if symbol == "X" {
		s = NewSession(gameID, e.Local.UserID, toUser, e.Local.IP, toIP)
	} else {
		s = NewSession(gameID, toUser, e.Local.UserID, toIP, e.Local.IP)
	}
	s.AssignSymbols(e.Local.UserID, symbol)
	if !e.Table.Create(s) {
		return "", fmt.Errorf("game id collision: %s", gameID)
	}
	messageID := newMessageID()
	msg := proto.GameInvite{
		From:      e.Local.UserID,
		To:        toUser,
		GameID:    gameID,
		MessageID: messageID,
		Symbol:    symbol,
		Timestamp: time.Now().Unix(),
		Token:     e.Auth.Generate(e.Local.UserID, token.TTLGame*time.Second, token.ScopeGame),
	}.Encode()
	if err := e.Send.SendUnicast(msg, toIP); err != nil {
		e.Table.Remove(gameID)
		return "", err
	}
	if e.Acks != nil {
		to := toUser
		e.Acks.Register(messageID, func() {
			e.Sink.Notify("game invite %s delivered to %s", gameID, to)
		})
	}
	return gameID, nil
}

// PlayMove applies the local player's move and sends it to the opponent. On a
// decided board the session completes locally; the opponent reports the
// authoritative RESULT back, which retires the session.
func (e *Engine) PlayMove(gameID string, position int) error {
	s, ok := e.Table.Get(gameID)
	if !ok {
		return fmt.Errorf("unknown game %s", gameID)
	}
	symbol := s.SymbolOf(e.Local.UserID)
	turn := s.Turn() + 1
	switch s.ApplyMove(e.Local.UserID, position, symbol, turn) {
	case VerdictInvalidMove:
		return fmt.Errorf("position %d not playable", position)
	case VerdictInvalidTurn, VerdictDuplicate:
		return fmt.Errorf("turn %d not playable", turn)
	}
	opponent := s.OtherPlayer(e.Local.UserID)
	ip := s.IPOf(opponent)
	if ip == "" {
		_, ip = proto.SplitUserID(opponent)
	}
	messageID := newMessageID()
	msg := proto.GameMove{
		From:      e.Local.UserID,
		To:        opponent,
		GameID:    gameID,
		MessageID: messageID,
		Position:  position,
		Symbol:    symbol,
		Turn:      turn,
		Token:     e.Auth.Generate(e.Local.UserID, token.TTLGame*time.Second, token.ScopeGame),
	}.Encode()
	if err := e.Send.SendUnicast(msg, ip); err != nil {
		return err
	}
	if e.Acks != nil {
		e.Acks.Register(messageID, func() {
			e.Sink.Notify("move %d for game %s delivered", turn, gameID)
		})
	}
	if outcome, decided := s.CheckWinner(); decided {
		s.Complete(outcome)
		if outcome.Result == proto.ResultWin {
			e.Sink.Notify("game %s over: you win with %s", gameID, outcome.Symbol)
		} else {
			e.Sink.Notify("game %s over: draw", gameID)
		}
	}
	return nil
}

func newMessageID() string {
	return uuid.NewString()[:8]
}
