package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quicksilver/core/logger"
)

// CursorState is the lifecycle state of the cursor held by a CursorManager.
type CursorState uint8

const (
	CursorUncreated CursorState = iota
	CursorAlive
	CursorDead
)

func (s CursorState) String() string {
	switch s {
	case CursorUncreated:
		return "uncreated"
	case CursorAlive:
		return "alive"
	case CursorDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CursorManager lazily opens a filtered cursor and tracks its liveness.
//
//	uncreated --GetOrCreate--> alive --(store reports dead)--> dead
//	alive/dead --Clear--> uncreated
//
// A dead cursor stays dead until Clear is called, so callers can tell
// "dead" apart from "absent".
type CursorManager struct {
	store  Store
	subs   *Subscriptions
	logger *slog.Logger

	state  CursorState
	cursor Cursor
	origin time.Time
}

// NewCursorManager returns a manager that opens cursors on store filtered by
// the channels in subs at creation time.
func NewCursorManager(store Store, subs *Subscriptions, log *slog.Logger) *CursorManager {
	if subs == nil {
		subs = NewSubscriptions()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CursorManager{store: store, subs: subs, logger: log}
}

// GetOrCreate returns the held cursor, opening one from origin if none exists.
// The origin is ignored while a cursor is held, dead or alive.
func (m *CursorManager) GetOrCreate(ctx context.Context, origin time.Time) (Cursor, error) {
	if m.cursor != nil {
		if !origin.Equal(m.origin) {
			m.logger.DebugContext(ctx, "Origin ignored for existing cursor",
				logger.Origin(origin),
				logger.Key("cursor_origin", m.origin),
			)
		}
		return m.cursor, nil
	}
	if m.store == nil {
		return nil, ErrConfigInvalid
	}

	channels := m.subs.List()
	cur, err := m.store.OpenCursor(ctx, origin, channels)
	if err != nil {
		if errors.Is(err, ErrConfigInvalid) || errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if cur == nil {
		return nil, ErrStoreUnavailable
	}

	m.cursor = cur
	m.origin = origin
	m.state = CursorAlive

	m.logger.DebugContext(ctx, "Cursor opened",
		logger.Origin(origin),
		logger.Channels(channels),
	)
	return cur, nil
}

// IsDead asks the held cursor for its liveness. It is false when no cursor is held.
func (m *CursorManager) IsDead() bool {
	switch m.state {
	case CursorDead:
		return true
	case CursorAlive:
		if m.cursor.Dead() {
			m.state = CursorDead
			return true
		}
	}
	return false
}

// Clear closes and drops the held cursor. It never fails; close errors are logged.
func (m *CursorManager) Clear(ctx context.Context) {
	if m.cursor == nil {
		m.state = CursorUncreated
		return
	}
	if err := m.cursor.Close(ctx); err != nil {
		m.logger.WarnContext(ctx, "Failed to close cursor", logger.Error(err))
	}
	m.cursor = nil
	m.origin = time.Time{}
	m.state = CursorUncreated
}

// State returns the last known state without querying the store.
func (m *CursorManager) State() CursorState {
	return m.state
}
