// Package game implements the tic-tac-toe session state machine: strict turn
// ordering, idempotent move application, and win/draw detection.
package game

import (
	"sync"
	"time"

	"lsnpeer/internal/proto"
)

// Session status values.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusComplete   = "COMPLETE"
	StatusForfeit    = "FORFEIT"
)

// Verdict classifies a move attempt so the caller can ACK the right status.
type Verdict int

const (
	VerdictApplied Verdict = iota
	VerdictDuplicate
	VerdictInvalidMove
	VerdictInvalidTurn
)

// Outcome is a decided game: WIN with the winning line and symbol, or DRAW.
type Outcome struct {
	Result string
	Symbol string
	Line   []int
	Winner string // user id of the winner, "" on draw
}

// winLines are the 8 canonical three-in-a-row lines.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Session is one game between two peers. All methods are safe for concurrent
// use.
type Session struct {
	mu sync.Mutex

	GameID  string
	PlayerX string
	PlayerO string
	IPX     string
	IPO     string

	symbolOf    map[string]string
	board       [9]string // "" means empty; a written cell is immutable
	turn        int       // last applied turn number, 0 before the first
	status      string
	winner      string
	winningLine []int
	processed   map[int]struct{}
	lastUpdate  time.Time
}

func NewSession(gameID, playerX, playerO, ipX, ipO string) *Session {
	return &Session{
		GameID:     gameID,
		PlayerX:    playerX,
		PlayerO:    playerO,
		IPX:        ipX,
		IPO:        ipO,
		symbolOf:   make(map[string]string),
		status:     StatusPending,
		processed:  make(map[int]struct{}),
		lastUpdate: time.Now(),
	}
}

// AssignSymbols gives the inviter its chosen symbol (default X when absent or
// invalid) and the other player the complement.
func (s *Session) AssignSymbols(inviter, inviterSymbol string) {
	sym := inviterSymbol
	if sym != "X" && sym != "O" {
		sym = "X"
	}
	other := "O"
	if sym == "O" {
		other = "X"
	}
	otherUser := s.PlayerX
	if inviter == s.PlayerX {
		otherUser = s.PlayerO
	}
	s.mu.Lock()
	s.symbolOf[inviter] = sym
	s.symbolOf[otherUser] = other
	s.mu.Unlock()
}

// SymbolOf returns the symbol assigned to userID, "" when unknown.
func (s *Session) SymbolOf(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbolOf[userID]
}

// UserOf resolves a symbol back to its player, "" when unassigned.
func (s *Session) UserOf(symbol string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, sym := range s.symbolOf {
		if sym == symbol {
			return uid
		}
	}
	return ""
}

// ApplyMove validates and applies one move. Checks run in order: duplicate
// turn, cell validity, symbol ownership, strict turn sequence. On success the
// cell is written, the turn advances, and a pending session goes in-progress.
func (s *Session) ApplyMove(userID string, position int, symbol string, turnNumber int) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.processed[turnNumber]; dup {
		return VerdictDuplicate
	}
	if position < 0 || position > 8 || s.board[position] != "" {
		return VerdictInvalidMove
	}
	if s.symbolOf[userID] != symbol || symbol == "" {
		return VerdictInvalidMove
	}
	if turnNumber != s.turn+1 {
		return VerdictInvalidTurn
	}
	s.board[position] = symbol
	s.turn = turnNumber
	s.processed[turnNumber] = struct{}{}
	s.lastUpdate = time.Now()
	if s.status == StatusPending {
		s.status = StatusInProgress
	}
	return VerdictApplied
}

// CheckWinner scans the 8 lines for a win, then for a draw. The second return
// is false while the game is still open.
func (s *Session) CheckWinner() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range winLines {
		a := s.board[line[0]]
		if a != "" && a == s.board[line[1]] && a == s.board[line[2]] {
			winner := ""
			for uid, sym := range s.symbolOf {
				if sym == a {
					winner = uid
					break
				}
			}
			return Outcome{
				Result: proto.ResultWin,
				Symbol: a,
				Line:   []int{line[0], line[1], line[2]},
				Winner: winner,
			}, true
		}
	}
	for _, cell := range s.board {
		if cell == "" {
			return Outcome{}, false
		}
	}
	return Outcome{Result: proto.ResultDraw}, true
}

// Complete transitions the session to its terminal state for the outcome.
func (s *Session) Complete(o Outcome) {
	s.mu.Lock()
	s.status = StatusComplete
	s.winner = o.Winner
	s.winningLine = o.Line
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

// Forfeit marks the alternate terminal state.
func (s *Session) Forfeit() {
	s.mu.Lock()
	if s.status != StatusComplete {
		s.status = StatusForfeit
	}
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner
}

func (s *Session) WinningLine() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.winningLine...)
}

// Turn returns the last applied turn number.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Cell returns the board cell at position, "" when empty or out of range.
func (s *Session) Cell(position int) string {
	if position < 0 || position > 8 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board[position]
}

// Board snapshots the 9 cells.
func (s *Session) Board() [9]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

// OtherPlayer returns userID's opponent, "" for a stranger.
func (s *Session) OtherPlayer(userID string) string {
	switch userID {
	case s.PlayerX:
		return s.PlayerO
	case s.PlayerO:
		return s.PlayerX
	}
	return ""
}

// IPOf returns the recorded address for a player.
func (s *Session) IPOf(userID string) string {
	switch userID {
	case s.PlayerX:
		return s.IPX
	case s.PlayerO:
		return s.IPO
	}
	return ""
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

func (s *Session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}
