package redislog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dmitrymomot/quicksilver/pkg/broadcast"
)

// Stream entry field names.
const (
	fieldID       = "id"
	fieldTS       = "ts"
	fieldChannels = "channels"
	fieldPayload  = "payload"
)

var errMalformedEntry = errors.New("redislog: malformed stream entry")

func encodeEntry(msg broadcast.Message) (map[string]any, error) {
	payload, err := msgpack.Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("redislog: encode payload: %w", err)
	}
	channels, err := msgpack.Marshal(msg.Channels)
	if err != nil {
		return nil, fmt.Errorf("redislog: encode channels: %w", err)
	}
	return map[string]any{
		fieldID:       msg.ID.String(),
		fieldTS:       strconv.FormatInt(msg.Timestamp.UnixNano(), 10),
		fieldChannels: channels,
		fieldPayload:  payload,
	}, nil
}

func decodeEntry(values map[string]any) (broadcast.Message, error) {
	var msg broadcast.Message

	ts, err := strconv.ParseInt(stringField(values, fieldTS), 10, 64)
	if err != nil {
		return msg, errors.Join(errMalformedEntry, err)
	}
	msg.Timestamp = time.Unix(0, ts)

	if err := msgpack.Unmarshal([]byte(stringField(values, fieldChannels)), &msg.Channels); err != nil {
		return msg, errors.Join(errMalformedEntry, err)
	}
	if raw := stringField(values, fieldPayload); raw != "" {
		if err := msgpack.Unmarshal([]byte(raw), &msg.Payload); err != nil {
			return msg, errors.Join(errMalformedEntry, err)
		}
	}
	if id, err := uuid.Parse(stringField(values, fieldID)); err == nil {
		msg.ID = id
	}
	return msg, nil
}

func stringField(values map[string]any, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// streamID is a parsed "<ms>-<seq>" entry ID.
type streamID struct {
	ms, seq uint64
}

func parseStreamID(s string) (streamID, error) {
	msPart, seqPart, ok := strings.Cut(s, "-")
	if !ok {
		seqPart = "0"
	}
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return streamID{}, fmt.Errorf("redislog: invalid stream id %q", s)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return streamID{}, fmt.Errorf("redislog: invalid stream id %q", s)
	}
	return streamID{ms: ms, seq: seq}, nil
}

func (id streamID) String() string {
	return strconv.FormatUint(id.ms, 10) + "-" + strconv.FormatUint(id.seq, 10)
}

func (id streamID) after(other streamID) bool {
	if id.ms != other.ms {
		return id.ms > other.ms
	}
	return id.seq > other.seq
}

// originID returns the exclusive lower bound for reading entries newer than
// origin, widened by skew.
func originID(origin time.Time, skew time.Duration) streamID {
	if origin.IsZero() {
		return streamID{}
	}
	ms := origin.Add(-skew).UnixMilli()
	if ms <= 1 {
		return streamID{}
	}
	return streamID{ms: uint64(ms - 1)}
}
