package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

const (
	smsStatusActive   = "active"
	smsStatusArchived = "archived"
)

// SMSStore reads and writes sms_conversations and sms_messages.
type SMSStore struct {
	conn    DB
	queries *sqlc.Queries
	logger  *slog.Logger
}

func NewSMSStore(log *slog.Logger, conn DB) *SMSStore {
	if log == nil {
		log = slog.Default()
	}
	return &SMSStore{
		conn:    conn,
		queries: sqlc.New(conn),
		logger:  log.With(slog.String("store", "sms")),
	}
}

func (s *SMSStore) Channel() Channel { return ChannelSMS }

func (s *SMSStore) ListConversations(ctx context.Context, filter Filter) ([]Conversation, error) {
	rows, err := s.queries.ListSMSConversations(ctx, sqlc.ListSMSConversationsParams{
		OrganizationID: db.UUIDOrNull(filter.OrganizationID),
		UserID:         db.UUIDOrNull(filter.UserID),
		Archived:       optionalBool(filter.Archived),
		UnreadOnly:     filter.UnreadOnly,
		ClientIds:      clientIDs(filter.ClientIDs),
		Search:         searchText(filter.Search),
		LimitCount:     clampLimit(filter.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list sms conversations: %w", err)
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
		items = append(items, FromSMSRow(row, names[db.UUIDToString(row.ClientID)]))
	}
	return items, nil
}

func (s *SMSStore) Summaries(ctx context.Context, scope Scope) ([]Summary, error) {
	rows, err := s.queries.ListSMSConversationSummaries(ctx, sqlc.ListSMSConversationSummariesParams{
		OrganizationID: db.UUIDOrNull(scope.OrganizationID),
		UserID:         db.UUIDOrNull(scope.UserID),
	})
	if err != nil {
		return nil, fmt.Errorf("list sms summaries: %w", err)
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

func (s *SMSStore) GetConversation(ctx context.Context, scope Scope, id string) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	row, err := s.queries.GetSMSConversation(ctx, sqlc.GetSMSConversationParams{
		ID:             pgID,
		OrganizationID: db.UUIDOrNull(scope.OrganizationID),
	})
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return s.withName(ctx, row)
}

func (s *SMSStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	pgID, err := parseID(conversationID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListSMSMessages(ctx, pgID)
	if err != nil {
		return nil, fmt.Errorf("list sms messages: %w", err)
	}
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromSMSMessageRow(row))
	}
	return out, nil
}

func (s *SMSStore) MarkRead(ctx context.Context, id string) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	row, err := s.queries.MarkSMSConversationRead(ctx, pgID)
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return s.withName(ctx, row)
}

func (s *SMSStore) SetArchived(ctx context.Context, id string, archived bool) (Conversation, error) {
	pgID, err := parseID(id)
	if err != nil {
		return Conversation{}, err
	}
	status := smsStatusActive
	if archived {
		status = smsStatusArchived
	}
	row, err := s.queries.SetSMSConversationStatus(ctx, sqlc.SetSMSConversationStatusParams{ID: pgID, Status: status})
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return s.withName(ctx, row)
}

// SetStarred is not available for SMS and performs no I/O.
func (s *SMSStore) SetStarred(context.Context, string, bool) (Conversation, error) {
	return Conversation{}, fmt.Errorf("%w: star on sms", ErrUnsupported)
}

func (s *SMSStore) RecordInbound(ctx context.Context, rec Record) (Conversation, Message, error) {
	if rec.Status == "" {
		rec.Status = "received"
	}
	return s.record(ctx, DirectionInbound, rec)
}

func (s *SMSStore) RecordOutbound(ctx context.Context, rec Record) (Conversation, Message, error) {
	if rec.Status == "" {
		rec.Status = "sent"
	}
	return s.record(ctx, DirectionOutbound, rec)
}

func (s *SMSStore) record(ctx context.Context, dir Direction, rec Record) (Conversation, Message, error) {
	orgID, err := db.ParseUUID(rec.OrganizationID)
	if err != nil {
		return Conversation{}, Message{}, fmt.Errorf("record sms: organization: %w", err)
	}
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return Conversation{}, Message{}, fmt.Errorf("record sms: metadata: %w", err)
	}
	var unread int32
	from, to := rec.BusinessIdentity, rec.Contact
	if dir == DirectionInbound {
		unread = 1
		from, to = rec.Contact, rec.BusinessIdentity
	}
	at := timestamp(rec.At)

	var convRow sqlc.SmsConversation
	var msgRow sqlc.SmsMessage
	err = withTx(ctx, s.conn, func(q *sqlc.Queries) error {
		var err error
		convRow, err = q.UpsertSMSConversation(ctx, sqlc.UpsertSMSConversationParams{
			OrganizationID:     orgID,
			UserID:             db.UUIDOrNull(rec.UserID),
			ClientPhone:        rec.Contact,
			PhoneNumber:        rec.BusinessIdentity,
			LastMessageAt:      at,
			LastMessagePreview: db.Text(Preview(rec.Body, "")),
			UnreadIncrement:    unread,
		})
		if err != nil {
			return fmt.Errorf("upsert sms conversation: %w", err)
		}
		msgRow, err = q.CreateSMSMessage(ctx, sqlc.CreateSMSMessageParams{
			ConversationID: convRow.ID,
			OrganizationID: orgID,
			Direction:      string(dir),
			FromNumber:     from,
			ToNumber:       to,
			Content:        rec.Body,
			Status:         rec.Status,
			ExternalID:     db.Text(rec.ExternalID),
			Metadata:       meta,
			CreatedAt:      at,
		})
		if err != nil {
			return fmt.Errorf("create sms message: %w", err)
		}
		return nil
	})
	if err != nil {
		return Conversation{}, Message{}, err
	}
	conv, err := s.withName(ctx, convRow)
	if err != nil {
		s.logger.Warn("resolve client name failed", slog.Any("error", err))
		conv = FromSMSRow(convRow, "")
	}
	return conv, FromSMSMessageRow(msgRow), nil
}

// SetIntent stores an AI intent classification on an SMS message.
func (s *SMSStore) SetIntent(ctx context.Context, messageID, intent string, confidence float64) error {
	pgID, err := parseID(messageID)
	if err != nil {
		return err
	}
	return s.queries.SetSMSMessageIntent(ctx, sqlc.SetSMSMessageIntentParams{
		ID:           pgID,
		AiIntent:     db.Text(intent),
		AiConfidence: pgtype.Float8{Float64: confidence, Valid: true},
	})
}

func (s *SMSStore) withName(ctx context.Context, row sqlc.SmsConversation) (Conversation, error) {
	names, err := clientNames(ctx, s.queries, []pgtype.UUID{row.ClientID})
	if err != nil {
		return Conversation{}, err
	}
	return FromSMSRow(row, names[db.UUIDToString(row.ClientID)]), nil
}

// FromSMSRow maps an sms_conversations row into the unified shape.
func FromSMSRow(row sqlc.SmsConversation, contactName string) Conversation {
	return Conversation{
		ID:                 db.UUIDToString(row.ID),
		Channel:            ChannelSMS,
		ContactIdentifier:  row.ClientPhone,
		ContactName:        contactName,
		ClientID:           db.UUIDToString(row.ClientID),
		OrganizationID:     db.UUIDToString(row.OrganizationID),
		UserID:             db.UUIDToString(row.UserID),
		LastMessageAt:      db.TimeFromPg(row.LastMessageAt),
		LastMessagePreview: db.TextToString(row.LastMessagePreview),
		UnreadCount:        max(int(row.UnreadCount), 0),
		IsArchived:         row.Status == smsStatusArchived,
		SMS: &SMSDetails{
			BusinessNumber: row.PhoneNumber,
			Status:         row.Status,
		},
	}
}

// FromSMSMessageRow maps an sms_messages row into the unified shape.
func FromSMSMessageRow(row sqlc.SmsMessage) Message {
	return Message{
		ID:             db.UUIDToString(row.ID),
		ConversationID: db.UUIDToString(row.ConversationID),
		OrganizationID: db.UUIDToString(row.OrganizationID),
		Channel:        ChannelSMS,
		Direction:      Direction(row.Direction),
		From:           row.FromNumber,
		To:             row.ToNumber,
		Body:           row.Content,
		Status:         row.Status,
		Intent:         db.TextToString(row.AiIntent),
		Confidence:     float8Ptr(row.AiConfidence),
		Metadata:       decodeMetadata(row.Metadata),
		CreatedAt:      db.TimeFromPg(row.CreatedAt),
	}
}
