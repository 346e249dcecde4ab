package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ChannelStore is the persistence adapter for one channel.
type ChannelStore interface {
	Channel() Channel
	ListConversations(ctx context.Context, filter Filter) ([]Conversation, error)
	Summaries(ctx context.Context, scope Scope) ([]Summary, error)
	GetConversation(ctx context.Context, scope Scope, id string) (Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	MarkRead(ctx context.Context, id string) (Conversation, error)
	SetArchived(ctx context.Context, id string, archived bool) (Conversation, error)
	SetStarred(ctx context.Context, id string, starred bool) (Conversation, error)
	RecordInbound(ctx context.Context, rec Record) (Conversation, Message, error)
	RecordOutbound(ctx context.Context, rec Record) (Conversation, Message, error)
}

// DB is what the Postgres stores need: plain queries plus transactions.
// *pgxpool.Pool satisfies it.
type DB interface {
	sqlc.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Stores groups the per-channel stores.
type Stores struct {
	SMS   ChannelStore
	Email ChannelStore
}

func (s Stores) For(ch Channel) (ChannelStore, error) {
	switch ch {
	case ChannelSMS:
		if s.SMS != nil {
			return s.SMS, nil
		}
	case ChannelEmail:
		if s.Email != nil {
			return s.Email, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

func clampLimit(limit int) int32 {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return int32(limit)
}

func parseID(id string) (pgtype.UUID, error) {
	v, err := db.ParseUUID(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return v, nil
}

func optionalBool(v *bool) pgtype.Bool {
	if v == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *v, Valid: true}
}

// clientIDs keeps nil as SQL NULL (no restriction) and never widens a
// restriction: malformed ids are dropped, leaving an empty array.
func clientIDs(ids []string) []pgtype.UUID {
	if ids == nil {
		return nil
	}
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if v, err := db.ParseUUID(id); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func searchText(q string) pgtype.Text {
	q = strings.TrimSpace(q)
	if q == "" {
		return pgtype.Text{}
	}
	// ILIKE wildcards in user input are matched literally.
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return pgtype.Text{String: q, Valid: true}
}

func timestamp(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		t = time.Now()
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func decodeMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func float8Ptr(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func notFound(err error) error {
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// clientNames resolves display names for the linked clients of rows.
func clientNames(ctx context.Context, q *sqlc.Queries, ids []pgtype.UUID) (map[string]string, error) {
	seen := make(map[[16]byte]struct{}, len(ids))
	uniq := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		if !id.Valid {
			continue
		}
		if _, ok := seen[id.Bytes]; ok {
			continue
		}
		seen[id.Bytes] = struct{}{}
		uniq = append(uniq, id)
	}
	names := make(map[string]string, len(uniq))
	if len(uniq) == 0 {
		return names, nil
	}
	rows, err := q.ListClientNames(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("list client names: %w", err)
	}
	for _, row := range rows {
		names[db.UUIDToString(row.ID)] = row.Name
	}
	return names, nil
}

func withTx(ctx context.Context, conn DB, fn func(q *sqlc.Queries) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(sqlc.New(conn).WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
