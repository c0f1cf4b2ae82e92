// Package notify is the seam between the protocol engines and whatever
// user-facing layer sits on top. The interactive UI itself lives outside this
// module; engines only emit events and ask accept/decline decisions.
package notify

import "lsnpeer/internal/logging"

// FileOffer describes an inbound file offer awaiting a decision.
type FileOffer struct {
	From        string
	FileID      string
	FileName    string
	FileType    string
	FileSize    int64
	Description string
}

// Sink receives user-visible events. Implementations must not block the
// receive loop; decisions that need real user input should be taken off-loop
// by the implementation.
type Sink interface {
	Notify(format string, args ...any)
	// FileOfferReceived reports an offer and returns whether to accept it.
	FileOfferReceived(offer FileOffer) bool
	GameInviteReceived(from, gameID string)
}

// LogSink is the headless default: events go to the log, and file offers are
// accepted or declined by fixed policy.
type LogSink struct {
	AcceptFiles bool
}

func (s *LogSink) Notify(format string, args ...any) {
	logging.Logf(format, args...)
}

func (s *LogSink) FileOfferReceived(offer FileOffer) bool {
	logging.Logf("file offer from %s: %s (%d bytes, %s)", offer.From, offer.FileName, offer.FileSize, offer.FileType)
	return s.AcceptFiles
}

func (s *LogSink) GameInviteReceived(from, gameID string) {
	logging.Logf("tic-tac-toe invite %s from %s", gameID, from)
}
