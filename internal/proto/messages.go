package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message TYPE values.
const (
	TypeProfile      = "PROFILE"
	TypePing         = "PING"
	TypePost         = "POST"
	TypeDM           = "DM"
	TypeLike         = "LIKE"
	TypeFollow       = "FOLLOW"
	TypeUnfollow     = "UNFOLLOW"
	TypeGroupCreate  = "GROUP_CREATE"
	TypeGroupUpdate  = "GROUP_UPDATE"
	TypeGroupMessage = "GROUP_MESSAGE"
	TypeFileOffer    = "FILE_OFFER"
	TypeFileChunk    = "FILE_CHUNK"
	TypeFileReceived = "FILE_RECEIVED"
	TypeGameInvite   = "TICTACTOE_INVITE"
	TypeGameMove     = "TICTACTOE_MOVE"
	TypeGameResult   = "TICTACTOE_RESULT"
	TypeAck          = "ACK"
	TypeRevoke       = "REVOKE"
)

// ACK STATUS values.
const (
	StatusReceived    = "RECEIVED"
	StatusAccepted    = "ACCEPTED"
	StatusDuplicate   = "DUPLICATE"
	StatusInvalidTurn = "INVALID_TURN"
	StatusInvalidMove = "INVALID_MOVE"
	StatusComplete    = "COMPLETE"
)

// LIKE ACTION values.
const (
	ActionLike   = "LIKE"
	ActionUnlike = "UNLIKE"
)

// Game RESULT values.
const (
	ResultWin     = "WIN"
	ResultDraw    = "DRAW"
	ResultForfeit = "FORFEIT"
)

var ErrUnknownType = errors.New("unknown message type")

func missing(key string) error {
	return fmt.Errorf("missing field %s", key)
}

func requireFields(f Fields, keys ...string) error {
	for _, k := range keys {
		if f[k] == "" {
			return missing(k)
		}
	}
	return nil
}

func parseInt(f Fields, key string) (int, error) {
	n, err := strconv.Atoi(f[key])
	if err != nil {
		return 0, fmt.Errorf("bad field %s: %q", key, f[key])
	}
	return n, nil
}

func parseInt64(f Fields, key string) (int64, error) {
	n, err := strconv.ParseInt(f[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad field %s: %q", key, f[key])
	}
	return n, nil
}

func optInt64(f Fields, key string) int64 {
	n, _ := strconv.ParseInt(f[key], 10, 64)
	return n
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinCSV(items []string) string { return strings.Join(items, ",") }

type Profile struct {
	UserID      string
	DisplayName string
	Status      string
	AvatarType  string
	AvatarData  string
}

func (m Profile) Encode() string {
	return format([]kv{
		{"TYPE", TypeProfile},
		{"USER_ID", m.UserID},
		{"DISPLAY_NAME", m.DisplayName},
		{"STATUS", m.Status},
		{"AVATAR_TYPE", m.AvatarType},
		{"AVATAR_DATA", m.AvatarData},
	})
}

func decodeProfile(f Fields) (Profile, error) {
	if err := requireFields(f, "USER_ID", "DISPLAY_NAME", "STATUS"); err != nil {
		return Profile{}, err
	}
	return Profile{
		UserID:      f["USER_ID"],
		DisplayName: f["DISPLAY_NAME"],
		Status:      f["STATUS"],
		AvatarType:  f["AVATAR_TYPE"],
		AvatarData:  f["AVATAR_DATA"],
	}, nil
}

type Ping struct {
	UserID string
	Token  string
}

func (m Ping) Encode() string {
	return format([]kv{
		{"TYPE", TypePing},
		{"USER_ID", m.UserID},
		{"TOKEN", m.Token},
	})
}

func decodePing(f Fields) (Ping, error) {
	if err := requireFields(f, "USER_ID", "TOKEN"); err != nil {
		return Ping{}, err
	}
	return Ping{UserID: f["USER_ID"], Token: f["TOKEN"]}, nil
}

type Post struct {
	UserID    string
	Content   string
	Timestamp int64
	MessageID string
	Token     string
}

func (m Post) Encode() string {
	return format([]kv{
		{"TYPE", TypePost},
		{"USER_ID", m.UserID},
		{"CONTENT", m.Content},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
		{"MESSAGE_ID", m.MessageID},
		{"TOKEN", m.Token},
	})
}

func decodePost(f Fields) (Post, error) {
	if err := requireFields(f, "USER_ID", "CONTENT", "MESSAGE_ID", "TOKEN"); err != nil {
		return Post{}, err
	}
	return Post{
		UserID:    f["USER_ID"],
		Content:   f["CONTENT"],
		Timestamp: optInt64(f, "TIMESTAMP"),
		MessageID: f["MESSAGE_ID"],
		Token:     f["TOKEN"],
	}, nil
}

type DM struct {
	From      string
	To        string
	Content   string
	Timestamp int64
	MessageID string
	Token     string
}

func (m DM) Encode() string {
	return format([]kv{
		{"TYPE", TypeDM},
		{"FROM", m.From},
		{"TO", m.To},
		{"CONTENT", m.Content},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
		{"MESSAGE_ID", m.MessageID},
		{"TOKEN", m.Token},
	})
}

func decodeDM(f Fields) (DM, error) {
	if err := requireFields(f, "FROM", "TO", "CONTENT", "MESSAGE_ID", "TOKEN"); err != nil {
		return DM{}, err
	}
	return DM{
		From:      f["FROM"],
		To:        f["TO"],
		Content:   f["CONTENT"],
		Timestamp: optInt64(f, "TIMESTAMP"),
		MessageID: f["MESSAGE_ID"],
		Token:     f["TOKEN"],
	}, nil
}

type Like struct {
	From          string
	To            string
	Action        string
	PostTimestamp int64
	Token         string
}

func (m Like) Encode() string {
	return format([]kv{
		{"TYPE", TypeLike},
		{"FROM", m.From},
		{"TO", m.To},
		{"ACTION", m.Action},
		{"POST_TIMESTAMP", strconv.FormatInt(m.PostTimestamp, 10)},
		{"TOKEN", m.Token},
	})
}

func decodeLike(f Fields) (Like, error) {
	if err := requireFields(f, "FROM", "TO", "POST_TIMESTAMP", "ACTION", "TOKEN"); err != nil {
		return Like{}, err
	}
	ts, err := parseInt64(f, "POST_TIMESTAMP")
	if err != nil {
		return Like{}, err
	}
	action := strings.ToUpper(f["ACTION"])
	if action != ActionLike && action != ActionUnlike {
		return Like{}, fmt.Errorf("bad field ACTION: %q", f["ACTION"])
	}
	return Like{
		From:          f["FROM"],
		To:            f["TO"],
		Action:        action,
		PostTimestamp: ts,
		Token:         f["TOKEN"],
	}, nil
}

type Follow struct {
	From  string
	To    string
	Token string
}

func (m Follow) Encode() string {
	return format([]kv{
		{"TYPE", TypeFollow},
		{"FROM", m.From},
		{"TO", m.To},
		{"TOKEN", m.Token},
	})
}

type Unfollow struct {
	From  string
	To    string
	Token string
}

func (m Unfollow) Encode() string {
	return format([]kv{
		{"TYPE", TypeUnfollow},
		{"FROM", m.From},
		{"TO", m.To},
		{"TOKEN", m.Token},
	})
}

func decodeFollowFields(f Fields) (from, to, token string, err error) {
	if err := requireFields(f, "FROM", "TO", "TOKEN"); err != nil {
		return "", "", "", err
	}
	return f["FROM"], f["TO"], f["TOKEN"], nil
}

type GroupCreate struct {
	From      string
	GroupID   string
	GroupName string
	Members   []string
	Token     string
}

func (m GroupCreate) Encode() string {
	return format([]kv{
		{"TYPE", TypeGroupCreate},
		{"FROM", m.From},
		{"GROUP_ID", m.GroupID},
		{"GROUP_NAME", m.GroupName},
		{"MEMBERS", joinCSV(m.Members)},
		{"TOKEN", m.Token},
	})
}

func decodeGroupCreate(f Fields) (GroupCreate, error) {
	if err := requireFields(f, "FROM", "GROUP_ID", "GROUP_NAME", "MEMBERS", "TOKEN"); err != nil {
		return GroupCreate{}, err
	}
	return GroupCreate{
		From:      f["FROM"],
		GroupID:   f["GROUP_ID"],
		GroupName: f["GROUP_NAME"],
		Members:   splitCSV(f["MEMBERS"]),
		Token:     f["TOKEN"],
	}, nil
}

type GroupUpdate struct {
	From    string
	GroupID string
	Add     []string
	Remove  []string
	Token   string
}

func (m GroupUpdate) Encode() string {
	return format([]kv{
		{"TYPE", TypeGroupUpdate},
		{"FROM", m.From},
		{"GROUP_ID", m.GroupID},
		{"ADD", joinCSV(m.Add)},
		{"REMOVE", joinCSV(m.Remove)},
		{"TOKEN", m.Token},
	})
}

func decodeGroupUpdate(f Fields) (GroupUpdate, error) {
	if err := requireFields(f, "FROM", "GROUP_ID", "TOKEN"); err != nil {
		return GroupUpdate{}, err
	}
	return GroupUpdate{
		From:    f["FROM"],
		GroupID: f["GROUP_ID"],
		Add:     splitCSV(f["ADD"]),
		Remove:  splitCSV(f["REMOVE"]),
		Token:   f["TOKEN"],
	}, nil
}

type GroupMessage struct {
	From      string
	GroupID   string
	Content   string
	Timestamp int64
	Token     string
}

func (m GroupMessage) Encode() string {
	return format([]kv{
		{"TYPE", TypeGroupMessage},
		{"FROM", m.From},
		{"GROUP_ID", m.GroupID},
		{"CONTENT", m.Content},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
		{"TOKEN", m.Token},
	})
}

func decodeGroupMessage(f Fields) (GroupMessage, error) {
	if err := requireFields(f, "FROM", "GROUP_ID", "CONTENT", "TOKEN"); err != nil {
		return GroupMessage{}, err
	}
	return GroupMessage{
		From:      f["FROM"],
		GroupID:   f["GROUP_ID"],
		Content:   f["CONTENT"],
		Timestamp: optInt64(f, "TIMESTAMP"),
		Token:     f["TOKEN"],
	}, nil
}

type FileOffer struct {
	From        string
	To          string
	FileName    string
	FileSize    int64
	FileType    string
	FileID      string
	Description string
	Timestamp   int64
	Token       string
}

func (m FileOffer) Encode() string {
	return format([]kv{
		{"TYPE", TypeFileOffer},
		{"FROM", m.From},
		{"TO", m.To},
		{"FILENAME", m.FileName},
		{"FILESIZE", strconv.FormatInt(m.FileSize, 10)},
		{"FILETYPE", m.FileType},
		{"FILEID", m.FileID},
		{"DESCRIPTION", m.Description},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
		{"TOKEN", m.Token},
	})
}

func decodeFileOffer(f Fields) (FileOffer, error) {
	if err := requireFields(f, "FROM", "TO", "FILEID", "FILENAME", "FILESIZE", "FILETYPE", "TOKEN"); err != nil {
		return FileOffer{}, err
	}
	size, err := parseInt64(f, "FILESIZE")
	if err != nil {
		return FileOffer{}, err
	}
	return FileOffer{
		From:        f["FROM"],
		To:          f["TO"],
		FileName:    f["FILENAME"],
		FileSize:    size,
		FileType:    f["FILETYPE"],
		FileID:      f["FILEID"],
		Description: f["DESCRIPTION"],
		Timestamp:   optInt64(f, "TIMESTAMP"),
		Token:       f["TOKEN"],
	}, nil
}

type FileChunk struct {
	From        string
	To          string
	FileID      string
	ChunkIndex  int
	TotalChunks int
	ChunkSize   int
	Token       string
	Data        string // base64 payload
}

func (m FileChunk) Encode() string {
	return format([]kv{
		{"TYPE", TypeFileChunk},
		{"FROM", m.From},
		{"TO", m.To},
		{"FILEID", m.FileID},
		{"CHUNK_INDEX", strconv.Itoa(m.ChunkIndex)},
		{"TOTAL_CHUNKS", strconv.Itoa(m.TotalChunks)},
		{"CHUNK_SIZE", strconv.Itoa(m.ChunkSize)},
		{"TOKEN", m.Token},
		{"DATA", m.Data},
	})
}

func decodeFileChunk(f Fields) (FileChunk, error) {
	if err := requireFields(f, "FROM", "TO", "FILEID", "CHUNK_INDEX", "TOTAL_CHUNKS", "DATA", "TOKEN"); err != nil {
		return FileChunk{}, err
	}
	idx, err := parseInt(f, "CHUNK_INDEX")
	if err != nil {
		return FileChunk{}, err
	}
	total, err := parseInt(f, "TOTAL_CHUNKS")
	if err != nil {
		return FileChunk{}, err
	}
	if idx < 0 || total < 1 {
		return FileChunk{}, fmt.Errorf("bad chunk bounds: index %d total %d", idx, total)
	}
	size, _ := strconv.Atoi(f["CHUNK_SIZE"])
	return FileChunk{
		From:        f["FROM"],
		To:          f["TO"],
		FileID:      f["FILEID"],
		ChunkIndex:  idx,
		TotalChunks: total,
		ChunkSize:   size,
		Token:       f["TOKEN"],
		Data:        f["DATA"],
	}, nil
}

type FileReceived struct {
	From      string
	To        string
	FileID    string
	Status    string
	Timestamp int64
}

func (m FileReceived) Encode() string {
	return format([]kv{
		{"TYPE", TypeFileReceived},
		{"FROM", m.From},
		{"TO", m.To},
		{"FILEID", m.FileID},
		{"STATUS", m.Status},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
	})
}

func decodeFileReceived(f Fields) (FileReceived, error) {
	if err := requireFields(f, "FROM", "TO", "FILEID", "STATUS"); err != nil {
		return FileReceived{}, err
	}
	return FileReceived{
		From:      f["FROM"],
		To:        f["TO"],
		FileID:    f["FILEID"],
		Status:    f["STATUS"],
		Timestamp: optInt64(f, "TIMESTAMP"),
	}, nil
}

type GameInvite struct {
	From      string
	To        string
	GameID    string
	MessageID string
	Symbol    string
	Timestamp int64
	Token     string
}

func (m GameInvite) Encode() string {
	return format([]kv{
		{"TYPE", TypeGameInvite},
		{"FROM", m.From},
		{"TO", m.To},
		{"GAMEID", m.GameID},
		{"MESSAGE_ID", m.MessageID},
		{"SYMBOL", m.Symbol},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
		{"TOKEN", m.Token},
	})
}

func decodeGameInvite(f Fields) (GameInvite, error) {
	if err := requireFields(f, "FROM", "TO", "GAMEID", "MESSAGE_ID", "TOKEN"); err != nil {
		return GameInvite{}, err
	}
	return GameInvite{
		From:      f["FROM"],
		To:        f["TO"],
		GameID:    f["GAMEID"],
		MessageID: f["MESSAGE_ID"],
		Symbol:    strings.ToUpper(f["SYMBOL"]),
		Timestamp: optInt64(f, "TIMESTAMP"),
		Token:     f["TOKEN"],
	}, nil
}

type GameMove struct {
	From      string
	To        string
	GameID    string
	MessageID string
	Position  int
	Symbol    string
	Turn      int
	Token     string
}

func (m GameMove) Encode() string {
	return format([]kv{
		{"TYPE", TypeGameMove},
		{"FROM", m.From},
		{"TO", m.To},
		{"GAMEID", m.GameID},
		{"MESSAGE_ID", m.MessageID},
		{"POSITION", strconv.Itoa(m.Position)},
		{"SYMBOL", m.Symbol},
		{"TURN", strconv.Itoa(m.Turn)},
		{"TOKEN", m.Token},
	})
}

func decodeGameMove(f Fields) (GameMove, error) {
	if err := requireFields(f, "FROM", "TO", "GAMEID", "MESSAGE_ID", "POSITION", "SYMBOL", "TURN", "TOKEN"); err != nil {
		return GameMove{}, err
	}
	pos, err := parseInt(f, "POSITION")
	if err != nil {
		return GameMove{}, err
	}
	turn, err := parseInt(f, "TURN")
	if err != nil {
		return GameMove{}, err
	}
	return GameMove{
		From:      f["FROM"],
		To:        f["TO"],
		GameID:    f["GAMEID"],
		MessageID: f["MESSAGE_ID"],
		Position:  pos,
		Symbol:    strings.ToUpper(f["SYMBOL"]),
		Turn:      turn,
		Token:     f["TOKEN"],
	}, nil
}

type GameResult struct {
	From        string
	To          string
	GameID      string
	MessageID   string
	Result      string
	Symbol      string
	WinningLine []int
	Timestamp   int64
	Token       string
}

func (m GameResult) Encode() string {
	var line string
	if len(m.WinningLine) > 0 {
		parts := make([]string, len(m.WinningLine))
		for i, p := range m.WinningLine {
			parts[i] = strconv.Itoa(p)
		}
		line = strings.Join(parts, ",")
	}
	return format([]kv{
		{"TYPE", TypeGameResult},
		{"FROM", m.From},
		{"TO", m.To},
		{"GAMEID", m.GameID},
		{"MESSAGE_ID", m.MessageID},
		{"RESULT", m.Result},
		{"SYMBOL", m.Symbol},
		{"WINNING_LINE", line},
		{"TIMESTAMP", strconv.FormatInt(m.Timestamp, 10)},
	})
}

func decodeGameResult(f Fields) (GameResult, error) {
	if err := requireFields(f, "FROM", "TO", "GAMEID", "MESSAGE_ID", "RESULT", "SYMBOL"); err != nil {
		return GameResult{}, err
	}
	var line []int
	for _, part := range splitCSV(f["WINNING_LINE"]) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return GameResult{}, fmt.Errorf("bad field WINNING_LINE: %q", f["WINNING_LINE"])
		}
		line = append(line, n)
	}
	return GameResult{
		From:        f["FROM"],
		To:          f["TO"],
		GameID:      f["GAMEID"],
		MessageID:   f["MESSAGE_ID"],
		Result:      strings.ToUpper(f["RESULT"]),
		Symbol:      strings.ToUpper(f["SYMBOL"]),
		WinningLine: line,
		Timestamp:   optInt64(f, "TIMESTAMP"),
		Token:       f["TOKEN"],
	}, nil
}

type Ack struct {
	UserID    string
	MessageID string // original MESSAGE_ID or FILEID being acknowledged
	Status    string
}

func (m Ack) Encode() string {
	return format([]kv{
		{"TYPE", TypeAck},
		{"USER_ID", m.UserID},
		{"MESSAGE_ID", m.MessageID},
		{"STATUS", m.Status},
	})
}

func decodeAck(f Fields) (Ack, error) {
	id := f["MESSAGE_ID"]
	if id == "" {
		id = f["FILEID"]
	}
	if id == "" {
		return Ack{}, missing("MESSAGE_ID")
	}
	if f["STATUS"] == "" {
		return Ack{}, missing("STATUS")
	}
	return Ack{UserID: f["USER_ID"], MessageID: id, Status: f["STATUS"]}, nil
}

type Revoke struct {
	From  string
	Token string
}

func (m Revoke) Encode() string {
	return format([]kv{
		{"TYPE", TypeRevoke},
		{"FROM", m.From},
		{"TOKEN", m.Token},
	})
}

func decodeRevoke(f Fields) (Revoke, error) {
	if err := requireFields(f, "TOKEN"); err != nil {
		return Revoke{}, err
	}
	return Revoke{From: f["FROM"], Token: f["TOKEN"]}, nil
}

// Decode validates fields for the message TYPE and returns the typed message.
// Handlers downstream never re-check required fields.
func Decode(f Fields) (any, error) {
	switch f.Type() {
	case TypeProfile:
		return decodeProfile(f)
	case TypePing:
		return decodePing(f)
	case TypePost:
		return decodePost(f)
	case TypeDM:
		return decodeDM(f)
	case TypeLike:
		return decodeLike(f)
	case TypeFollow:
		from, to, token, err := decodeFollowFields(f)
		if err != nil {
			return nil, err
		}
		return Follow{From: from, To: to, Token: token}, nil
	case TypeUnfollow:
		from, to, token, err := decodeFollowFields(f)
		if err != nil {
			return nil, err
		}
		return Unfollow{From: from, To: to, Token: token}, nil
	case TypeGroupCreate:
		return decodeGroupCreate(f)
	case TypeGroupUpdate:
		return decodeGroupUpdate(f)
	case TypeGroupMessage:
		return decodeGroupMessage(f)
	case TypeFileOffer:
		return decodeFileOffer(f)
	case TypeFileChunk:
		return decodeFileChunk(f)
	case TypeFileReceived:
		return decodeFileReceived(f)
	case TypeGameInvite:
		return decodeGameInvite(f)
	case TypeGameMove:
		return decodeGameMove(f)
	case TypeGameResult:
		return decodeGameResult(f)
	case TypeAck:
		return decodeAck(f)
	case TypeRevoke:
		return decodeRevoke(f)
	default:
		return nil, ErrUnknownType
	}
}
