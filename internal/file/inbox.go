package file

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lsnpeer/internal/identity"
	"lsnpeer/internal/logging"
	"lsnpeer/internal/notify"
	"lsnpeer/internal/proto"
	"lsnpeer/internal/token"
	"lsnpeer/internal/transport"
)

// incoming is the receiver-side reassembly state for one file id.
type incoming struct {
	fileName    string
	chunks      map[int][]byte
	totalChunks int
	from        string
	senderIP    string
}

// Inbox reassembles inbound transfers. One state per file id, created on
// offer, consumed on completion.
type Inbox struct {
	Local identity.Local
	Auth  *token.Authority
	Send  transport.Sender
	Sink  notify.Sink
	Dir   string // where completed files land

	mu        sync.Mutex
	transfers map[string]*incoming
}

func NewInbox(local identity.Local, auth *token.Authority, send transport.Sender, sink notify.Sink, dir string) *Inbox {
	return &Inbox{
		Local:     local,
		Auth:      auth,
		Send:      send,
		Sink:      sink,
		Dir:       dir,
		transfers: make(map[string]*incoming),
	}
}

func (in *Inbox) gate(to, from, tok string) bool {
	if to != in.Local.UserID {
		return false
	}
	if !in.Auth.Validate(tok, token.ScopeFile) {
		return false
	}
	if user, _, _, _ := token.Parse(tok); user != from {
		logging.Verbosef("DROP!", "file token user %q != FROM %q", user, from)
		return false
	}
	return true
}

// HandleOffer allocates reassembly state and asks the sink to accept or
// decline. Accept ACKs the offer under its file id, arming the sender's
// chunk transmission; decline revokes the offer's token, an explicit signal
// rather than silence.
func (in *Inbox) HandleOffer(m proto.FileOffer, srcIP string) {
	if !in.gate(m.To, m.From, m.Token) {
		return
	}
	if m.FileSize <= 0 {
		// no chunks will ever arrive; state for it could never complete
		logging.Verbosef("DROP!", "file offer %s from %s with no payload", m.FileID, m.From)
		return
	}
	in.mu.Lock()
	in.transfers[m.FileID] = &incoming{
		// prefix to keep a malicious offer from clobbering local files
		fileName: "received_" + filepath.Base(m.FileName),
		chunks:   make(map[int][]byte),
		from:     m.From,
		senderIP: srcIP,
	}
	in.mu.Unlock()

	accepted := in.Sink.FileOfferReceived(notify.FileOffer{
		From:        m.From,
		FileID:      m.FileID,
		FileName:    m.FileName,
		FileType:    m.FileType,
		FileSize:    m.FileSize,
		Description: m.Description,
	})
	if !accepted {
		in.mu.Lock()
		delete(in.transfers, m.FileID)
		in.mu.Unlock()
		revoke := proto.Revoke{From: in.Local.UserID, Token: m.Token}.Encode()
		if err := in.Send.SendUnicast(revoke, srcIP); err != nil {
			logging.Logf("file offer decline send failed: %v", err)
		}
		return
	}
	accept := proto.Ack{MessageID: m.FileID, Status: proto.StatusAccepted}.Encode()
	if err := in.Send.SendUnicast(accept, srcIP); err != nil {
		logging.Logf("file offer accept send failed: %v", err)
	}
}

// HandleChunk buffers one chunk. Chunks for unknown file ids are dropped
// with a warning, never buffered. Completion is by count: once the buffered
// chunk total matches TOTAL_CHUNKS the file is written out.
func (in *Inbox) HandleChunk(m proto.FileChunk, srcIP string) {
	if !in.gate(m.To, m.From, m.Token) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		logging.Verbosef("DROP!", "bad chunk payload for %s index %d: %v", m.FileID, m.ChunkIndex, err)
		return
	}

	in.mu.Lock()
	tr, ok := in.transfers[m.FileID]
	if !ok {
		in.mu.Unlock()
		// a retransmitting sender can flood this; one log line per file id
		// per window is enough
		logging.RateLimitedf("orphan-chunk:"+m.FileID, 10*time.Second,
			"DROP! chunk for unknown file %s from %s", m.FileID, m.From)
		in.Sink.Notify("chunk for unknown file %s from %s", m.FileID, m.From)
		return
	}
	tr.totalChunks = m.TotalChunks
	tr.chunks[m.ChunkIndex] = data // duplicate index overwrites
	complete := tr.totalChunks > 0 && len(tr.chunks) == tr.totalChunks
	if complete {
		delete(in.transfers, m.FileID)
	}
	in.mu.Unlock()

	if complete {
		in.finish(m.FileID, tr)
	}
}

// finish writes the chunks in strict index order and confirms receipt.
func (in *Inbox) finish(fileID string, tr *incoming) {
	if err := os.MkdirAll(in.Dir, 0o755); err != nil {
		logging.Logf("file save mkdir %s: %v", in.Dir, err)
		return
	}
	indexes := make([]int, 0, len(tr.chunks))
	for i := range tr.chunks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	path := filepath.Join(in.Dir, tr.fileName)
	f, err := os.Create(path)
	if err != nil {
		logging.Logf("file save create %s: %v", path, err)
		return
	}
	for _, i := range indexes {
		if _, err := f.Write(tr.chunks[i]); err != nil {
			logging.Logf("file save write %s: %v", path, err)
			_ = f.Close()
			return
		}
	}
	if err := f.Close(); err != nil {
		logging.Logf("file save close %s: %v", path, err)
		return
	}
	in.Sink.Notify("file transfer complete: %s", path)

	confirm := proto.FileReceived{
		From:      in.Local.UserID,
		To:        tr.from,
		FileID:    fileID,
		Status:    proto.StatusComplete,
		Timestamp: time.Now().Unix(),
	}.Encode()
	if err := in.Send.SendUnicast(confirm, tr.senderIP); err != nil {
		logging.Logf("file received confirm send failed: %v", err)
	}
}

// HandleReceived surfaces the sender-side confirmation; no state changes.
func (in *Inbox) HandleReceived(m proto.FileReceived) {
	if m.To != in.Local.UserID {
		return
	}
	in.Sink.Notify("peer %s confirmed file %s (%s)", m.From, m.FileID, m.Status)
}

// Pending reports how many transfers are mid-reassembly.
func (in *Inbox) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.transfers)
}
