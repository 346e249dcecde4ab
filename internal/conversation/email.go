package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

// EmailStore reads and writes email_conversations and email_messages.
type EmailStore struct {
	conn    DB
	queries *sqlc.Queries
	logger  *slog.Logger
}

func NewEmailStore(log *slog.Logger, conn DB) *EmailStore {
	if log == nil {
		log = slog.Default()
	}
	return &EmailStore{
		conn:    conn,
		queries: sqlc.New(conn),
		logger:  log.With(slog.String("store", "email")),
	}
}

func (s *EmailStore) Channel() Channel { return ChannelEmail }

func (s *EmailStore) ListConversations(ctx context.Context, filter Filter) ([]Conversation, error) {
	rows, err := s.queries.ListEmailConversations(ctx, sqlc.ListEmailConversationsParams{
		OrganizationID: db.UUIDOrNull(filter.OrganizationID),
		UserID:         db.UUIDOrNull(filter.UserID),
		Archived:       optionalBool(filter.Archived),
		UnreadOnly:     filter.UnreadOnly,
		StarredOnly:    filter.StarredOnly,
		ClientIds:      clientIDs(filter.ClientIDs),
		Search:         searchText(filter.Search),
		LimitCount:     clampLimit(filter.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list email conversations: %w", err)
	}
	ids := make([]pgtype.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ClientID)
	}
	names, err := clientNames(ctx, s.queries, ids)
	if err != nil {
		return nil, err
	}
	items := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromEmailRow(row, names[db.UUIDToString(row.ClientID)]))
	}
	return items, nil
}

func (s *EmailStore) Summaries(ctx context.Context, scope Scope) ([]Summary, error) {
	rows, err := s.queries.ListEmailConversationSummaries(ctx, sqlc.ListEmailConversationSummariesParams{
		OrganizationID: db.UUIDOrNull(scope.OrganizationID),
		UserID:         db.UUIDOrNull(scope.UserID),
	})
	if err != nil {
		return nil, fmt.Errorf("list email summaries: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, Summary{
			ID:          db.UUIDToString(row.ID),
			ClientID:    db.UUIDToString(row.ClientID),
			UnreadCount: int(row.UnreadCount),
		})
	}
	return out, nil
}

func (s *EmailStore) GetConversation(ctx context.Context, scope Scope, id string) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	row, err := s.queries.GetEmailConversation(ctx, sqlc.GetEmailConversationParams{
		ID:             pgID,
		OrganizationID: db.UUIDOrNull(scope.OrganizationID),
	})
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return s.withName(ctx, row)
}

func (s *EmailStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	pgID, err := parseID(conversationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListEmailMessages(ctx, pgID)
	if err != nil {
		return nil, fmt.Errorf("list email messages: %w", err)
	}
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromEmailMessageRow(row))
	}
	return out, nil
}

// MarkRead zeros the unread counter and flags every message in the thread as read.
func (s *EmailStore) MarkRead(ctx context.Context, id string) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	var row sqlc.EmailConversation
	err = withTx(ctx, s.conn, func(q *sqlc.Queries) error {
		var err error
		if row, err = q.MarkEmailConversationRead(ctx, pgID); err != nil {
			return notFound(err)
		}
		return q.MarkEmailMessagesRead(ctx, pgID)
	})
	if err != nil {
		return Conversation{}, err
	}
	return s.withName(ctx, row)
}

func (s *EmailStore) SetArchived(ctx context.Context, id string, archived bool) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	row, err := s.queries.SetEmailConversationArchived(ctx, sqlc.SetEmailConversationArchivedParams{ID: pgID, IsArchived: archived})
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return s.withName(ctx, row)
}

func (s *EmailStore) SetStarred(ctx context.Context, id string, starred bool) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	row, err := s.queries.SetEmailConversationStarred(ctx, sqlc.SetEmailConversationStarredParams{ID: pgID, IsStarred: starred})
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return s.withName(ctx, row)
}

func (s *EmailStore) RecordInbound(ctx context.Context, rec Record) (Conversation, Message, error) {
	if rec.Status == "" {
		rec.Status = "received"
	}
	return s.record(ctx, DirectionInbound, rec)
}

func (s *EmailStore) RecordOutbound(ctx context.Context, rec Record) (Conversation, Message, error) {
	if rec.Status == "" {
		rec.Status = "sent"
	}
	return s.record(ctx, DirectionOutbound, rec)
}

func (s *EmailStore) record(ctx context.Context, dir Direction, rec Record) (Conversation, Message, error) {
	orgID, err := db.ParseUUID(rec.OrganizationID)
	if err != nil {
		return Conversation{}, Message{}, fmt.Errorf("record email: organization: %w", err)
	}
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return Conversation{}, Message{}, fmt.Errorf("record email: metadata: %w", err)
	}
	var unread int32
	from, to := rec.BusinessIdentity, rec.Contact
	if dir == DirectionInbound {
		unread = 1
		from, to = rec.Contact, rec.BusinessIdentity
	}
	at := timestamp(rec.At)

	var convRow sqlc.EmailConversation
	var msgRow sqlc.EmailMessage
	err = withTx(ctx, s.conn, func(q *sqlc.Queries) error {
		var err error
		convRow, err = q.UpsertEmailConversation(ctx, sqlc.UpsertEmailConversationParams{
			OrganizationID:     orgID,
			UserID:             db.UUIDOrNull(rec.UserID),
			ClientEmail:        rec.Contact,
			EmailAddress:       rec.BusinessIdentity,
			Subject:            rec.Subject,
			LastMessageAt:      at,
			LastMessagePreview: db.Text(Preview(rec.Body, rec.HTMLBody)),
			UnreadIncrement:    unread,
		})
		if err != nil {
			return fmt.Errorf("upsert email conversation: %w", err)
		}
		msgRow, err = q.CreateEmailMessage(ctx, sqlc.CreateEmailMessageParams{
			ConversationID: convRow.ID,
			OrganizationID: orgID,
			Direction:      string(dir),
			FromEmail:      from,
			ToEmail:        to,
			Subject:        rec.Subject,
			Body:           rec.Body,
			HtmlBody:       db.Text(rec.HTMLBody),
			Status:         rec.Status,
			IsRead:         dir == DirectionOutbound,
			ExternalID:     db.Text(rec.ExternalID),
			Metadata:       meta,
			CreatedAt:      at,
		})
		if err != nil {
			return fmt.Errorf("create email message: %w", err)
		}
		return nil
	})
	if err != nil {
		return Conversation{}, Message{}, err
	}
	conv, err := s.withName(ctx, convRow)
	if err != nil {
		s.logger.Warn("resolve client name failed", slog.Any("error", err))
		conv = FromEmailRow(convRow, "")
	}
	return conv, FromEmailMessageRow(msgRow), nil
}

func (s *EmailStore) withName(ctx context.Context, row sqlc.EmailConversation) (Conversation, error) {
	names, err := clientNames(ctx, s.queries, []pgtype.UUID{row.ClientID})
	if err != nil {
		return Conversation{}, err
	}
	return FromEmailRow(row, names[db.UUIDToString(row.ClientID)]), nil
}

// FromEmailRow maps an email_conversations row into the unified shape.
func FromEmailRow(row sqlc.EmailConversation, contactName string) Conversation {
	return Conversation{
		ID:                 db.UUIDToString(row.ID),
		Channel:            ChannelEmail,
		ContactIdentifier:  row.ClientEmail,
		ContactName:        contactName,
		ClientID:           db.UUIDToString(row.ClientID),
		OrganizationID:     db.UUIDToString(row.OrganizationID),
		UserID:             db.UUIDToString(row.UserID),
		LastMessageAt:      db.TimeFromPg(row.LastMessageAt),
		LastMessagePreview: db.TextToString(row.LastMessagePreview),
		UnreadCount:        max(int(row.UnreadCount), 0),
		IsArchived:         row.IsArchived,
		IsStarred:          row.IsStarred,
		Email: &EmailDetails{
			Subject:         row.Subject,
			BusinessAddress: row.EmailAddress,
			AssignedTo:      db.UUIDToString(row.AssignedTo),
		},
	}
}

// FromEmailMessageRow maps an email_messages row, sanitizing the HTML part.
func FromEmailMessageRow(row sqlc.EmailMessage) Message {
	htmlBody := SanitizeHTML(db.TextToString(row.HtmlBody))
	body := row.Body
	if body == "" && htmlBody != "" {
		body = PlainText(htmlBody)
	}
	return Message{
		ID:             db.UUIDToString(row.ID),
		ConversationID: db.UUIDToString(row.ConversationID),
		OrganizationID: db.UUIDToString(row.OrganizationID),
		Channel:        ChannelEmail,
		Direction:      Direction(row.Direction),
		From:           row.FromEmail,
		To:             row.ToEmail,
		Body:           body,
		Subject:        row.Subject,
		HTMLBody:       htmlBody,
		Status:         row.Status,
		IsRead:         row.IsRead,
		Metadata:       decodeMetadata(row.Metadata),
		CreatedAt:      db.TimeFromPg(row.CreatedAt),
	}
}
