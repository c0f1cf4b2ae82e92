// Package file implements chunked file transfer over LSNP: offer, chunk,
// reassemble, confirm. The transport caps datagrams at ~1KB, hence the
// chunking.
package file

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
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

// ChunkSize is the fixed pre-encoding slice size.
const ChunkSize = 1024

// DefaultChunkDelay paces chunk sends so a slow receiver is not saturated.
const DefaultChunkDelay = 50 * time.Millisecond

// Outbox sends files. An offer goes out immediately; chunks flow only after
// the peer ACKs the offer, via the continuation registered under the file id.
type Outbox struct {
	Local      identity.Local
	Auth       *token.Authority
	Acks       *ack.Registry
	Send       transport.Sender
	Sink       notify.Sink
	ChunkDelay time.Duration
}

// Offer announces path to a peer and arms chunk transmission on accept.
// Returns the file id correlating the whole exchange.
func (o *Outbox) Offer(path, toUser, toIP, description string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		// zero chunks would leave the receiver waiting forever
		return "", fmt.Errorf("refusing to offer empty file %s", path)
	}
	fileID := uuid.NewString()
	filetype := mime.TypeByExtension(filepath.Ext(path))
	if filetype == "" {
		filetype = "application/octet-stream"
	}
	offer := proto.FileOffer{
		From:        o.Local.UserID,
		To:          toUser,
		FileName:    filepath.Base(path),
		FileSize:    info.Size(),
		FileType:    filetype,
		FileID:      fileID,
		Description: description,
		Timestamp:   time.Now().Unix(),
		Token:       o.Auth.Generate(o.Local.UserID, token.TTLFile*time.Second, token.ScopeFile),
	}
	if err := o.Send.SendUnicast(offer.Encode(), toIP); err != nil {
		return "", err
	}
	o.Acks.RegisterTTL(fileID, func() {
		go o.transmit(path, toUser, toIP, fileID)
	}, token.TTLFile*time.Second)
	return fileID, nil
}

// transmit streams the file as ordered FILE_CHUNK messages. Runs off the
// receive loop; each chunk carries a fresh file token.
func (o *Outbox) transmit(path, toUser, toIP, fileID string) {
	f, err := os.Open(path)
	if err != nil {
		logging.Logf("file transmit open %s: %v", path, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logging.Logf("file transmit stat %s: %v", path, err)
		return
	}
	totalChunks := int((info.Size() + ChunkSize - 1) / ChunkSize)
	delay := o.ChunkDelay
	if delay <= 0 {
		delay = DefaultChunkDelay
	}

	buf := make([]byte, ChunkSize)
	for index := 0; index < totalChunks; index++ {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			logging.Logf("file transmit read %s chunk %d: %v", path, index, err)
			return
		}
		chunk := proto.FileChunk{
			From:        o.Local.UserID,
			To:          toUser,
			FileID:      fileID,
			ChunkIndex:  index,
			TotalChunks: totalChunks,
			ChunkSize:   n,
			Token:       o.Auth.Generate(o.Local.UserID, token.TTLFile*time.Second, token.ScopeFile),
			Data:        base64.StdEncoding.EncodeToString(buf[:n]),
		}
		if err := o.Send.SendUnicast(chunk.Encode(), toIP); err != nil {
			logging.Logf("file transmit send chunk %d: %v", index, err)
			return
		}
		logging.Verbosef("SEND >", "FILE_CHUNK %s %d/%d", fileID, index+1, totalChunks)
		time.Sleep(delay)
	}
	o.Sink.Notify("sent %s to %s in %d chunks", filepath.Base(path), toUser, totalChunks)
}
