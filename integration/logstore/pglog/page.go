package pglog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type pageQuery struct {
	after    int64
	origin   time.Time
	channels []string
	limit    int
}

// page is one cursor read: matching rows plus the table state they were
// read under.
type page struct {
	trimmed int64
	head    int64
	rows    []row
}

type pageReader interface {
	read(ctx context.Context, q querier, pq pageQuery) (page, error)
}

type sqlPages struct{}

// pageRow is the raw shape returned by pageSQL.
type pageRow struct {
	TrimmedSeq int64      `db:"trimmed_seq"`
	HeadSeq    int64      `db:"head_seq"`
	Seq        *int64     `db:"seq"`
	ID         *string    `db:"id"`
	TS         *time.Time `db:"ts"`
	Channels   []string   `db:"channels"`
	Message    any        `db:"message"`
}

func (sqlPages) read(ctx context.Context, q querier, pq pageQuery) (page, error) {
	rows, err := q.Query(ctx, pageSQL, pq.after, pq.origin, pq.channels, pq.limit)
	if err != nil {
		return page{}, err
	}
	raw, err := pgx.CollectRows(rows, pgx.RowToStructByName[pageRow])
	if err != nil {
		return page{}, err
	}
	return collectPage(raw), nil
}

func collectPage(raw []pageRow) page {
	var p page
	for _, r := range raw {
		p.trimmed = r.TrimmedSeq
		p.head = r.HeadSeq
		if r.Seq == nil {
			continue
		}
		out := row{Seq: *r.Seq, Channels: r.Channels, Message: r.Message}
		if r.ID != nil {
			out.ID = *r.ID
		}
		if r.TS != nil {
			out.TS = *r.TS
		}
		p.rows = append(p.rows, out)
	}
	return p
}
