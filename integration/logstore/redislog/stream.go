package redislog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamState is the part of XINFO STREAM the cursor relies on.
// EntriesAdded needs Redis 7.0 or newer.
type streamState struct {
	length       int64
	entriesAdded int64
	lastID       streamID
}

// trimmed is the number of entries removed from the head of the stream.
// Entries removed with XDEL are counted too.
func (s streamState) trimmed() int64 {
	return s.entriesAdded - s.length
}

type streamReader interface {
	state(ctx context.Context) (streamState, error)
	// snapshot returns the stream state and up to count entries after the
	// given ID, observed atomically.
	snapshot(ctx context.Context, after streamID, count int64) (streamState, []redis.XMessage, error)
	// wait blocks up to block for an entry after the given ID.
	wait(ctx context.Context, after streamID, block time.Duration) (bool, error)
}

type redisStream struct {
	client redis.UniversalClient
	name   string
}

func (r redisStream) state(ctx context.Context) (streamState, error) {
	info, err := r.client.XInfoStream(ctx, r.name).Result()
	return infoState(info, err)
}

func (r redisStream) snapshot(ctx context.Context, after streamID, count int64) (streamState, []redis.XMessage, error) {
	var (
		infoCmd *redis.XInfoStreamCmd
		readCmd *redis.XStreamSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		infoCmd = pipe.XInfoStream(ctx, r.name)
		readCmd = pipe.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.name, after.String()},
			Count:   count,
			Block:   -1,
		})
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) && !isNoSuchKey(err) {
		return streamState{}, nil, err
	}

	st, err := infoState(infoCmd.Val(), infoCmd.Err())
	if err != nil {
		return streamState{}, nil, err
	}
	streams, err := readCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return st, nil, nil
		}
		return streamState{}, nil, err
	}

	var entries []redis.XMessage
	for _, s := range streams {
		entries = append(entries, s.Messages...)
	}
	return st, entries, nil
}

func (r redisStream) wait(ctx context.Context, after streamID, block time.Duration) (bool, error) {
	err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{r.name, after.String()},
		Count:   1,
		Block:   block,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

func infoState(info *redis.XInfoStream, err error) (streamState, error) {
	if err != nil {
		if isNoSuchKey(err) {
			return streamState{}, nil
		}
		return streamState{}, err
	}
	st := streamState{length: info.Length, entriesAdded: info.EntriesAdded}
	if info.LastGeneratedID != "" {
		if st.lastID, err = parseStreamID(info.LastGeneratedID); err != nil {
			return streamState{}, err
		}
	}
	return st, nil
}

func isNoSuchKey(err error) bool {
	return errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "no such key")
}
