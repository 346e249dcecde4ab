//go:build integration

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	schema "github.com/fieldline/fieldline/db"
	"github.com/fieldline/fieldline/internal/config"
	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("fieldline"),
		postgres.WithUsername("fieldline"),
		postgres.WithPassword("fieldline"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	cfg := config.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "fieldline",
		Password: "fieldline",
		Database: "fieldline",
		SSLMode:  "disable",
	}
	require.NoError(t, db.RunMigrate(nil, cfg, schema.MigrationsFS(), "up", nil))

	pool, err := db.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestStoresAgainstPostgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	q := sqlc.New(pool)

	org, err := q.CreateOrganization(ctx, sqlc.CreateOrganizationParams{Name: "Acme"})
	require.NoError(t, err)
	orgID := db.UUIDToString(org.ID)
	_, err = q.CreateClient(ctx, sqlc.CreateClientParams{
		OrganizationID: org.ID,
		Name:           "John Smith",
		Phone:          pgtype.Text{String: "+15550001111", Valid: true},
	})
	require.NoError(t, err)

	sms := NewSMSStore(nil, pool)
	email := NewEmailStore(nil, pool)
	scope := Scope{OrganizationID: orgID}

	older := time.Now().Add(-time.Hour)
	smsConv, smsMsg, err := sms.RecordInbound(ctx, Record{
		OrganizationID:   orgID,
		Contact:          "+15550001111",
		BusinessIdentity: "+15559990000",
		Body:             "Can you come Tuesday?",
		At:               older,
	})
	require.NoError(t, err)
	assert.Equal(t, "John Smith", smsConv.ContactName)
	assert.Equal(t, 1, smsConv.UnreadCount)
	assert.Equal(t, DirectionInbound, smsMsg.Direction)

	emailConv, _, err := email.RecordInbound(ctx, Record{
		OrganizationID:   orgID,
		Contact:          "jane@example.com",
		BusinessIdentity: "office@acme.test",
		Subject:          "Deck quote",
		HTMLBody:         "<p>Any update?</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Any update?", emailConv.LastMessagePreview)

	t.Run("list with search covers client name", func(t *testing.T) {
		items, err := sms.ListConversations(ctx, Filter{Scope: scope, Search: "john"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, smsConv.ID, items[0].ID)

		items, err = email.ListConversations(ctx, Filter{Scope: scope, Search: "john"})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("mark read zeros unread", func(t *testing.T) {
		conv, err := email.MarkRead(ctx, emailConv.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, conv.UnreadCount)
		msgs, err := email.ListMessages(ctx, emailConv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].IsRead)
	})

	t.Run("archive hides from summaries", func(t *testing.T) {
		conv, err := sms.SetArchived(ctx, smsConv.ID, true)
		require.NoError(t, err)
		assert.True(t, conv.IsArchived)
		summaries, err := sms.Summaries(ctx, scope)
		require.NoError(t, err)
		assert.Empty(t, summaries)

		archived := true
		items, err := sms.ListConversations(ctx, Filter{Scope: scope, Archived: &archived})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("outbound threads into the existing conversation", func(t *testing.T) {
		conv, msg, err := sms.RecordOutbound(ctx, Record{
			OrganizationID:   orgID,
			Contact:          "+15550001111",
			BusinessIdentity: "+15559990000",
			Body:             "Tuesday works",
		})
		require.NoError(t, err)
		assert.Equal(t, smsConv.ID, conv.ID)
		assert.Equal(t, "+15559990000", msg.From)
		msgs, err := sms.ListMessages(ctx, smsConv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, smsMsg.ID, msgs[0].ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := email.GetConversation(ctx, scope, "00000000-0000-0000-0000-000000000001")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
