// Package organizations resolves business identities: sending numbers,
// inbound mailboxes and display names.
package organizations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

var ErrNotFound = errors.New("organization not found")

// Organization is a tenant.
type Organization struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
	InboundEmail string `json:"inbound_email,omitempty"`
}

// DisplayName prefers the customer-facing business name.
func (o Organization) DisplayName() string {
	if o.BusinessName != "" {
		return o.BusinessName
	}
	return o.Name
}

type Service struct {
	queries *sqlc.Queries
	logger  *slog.Logger
}

func NewService(log *slog.Logger, queries *sqlc.Queries) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "organizations")),
	}
}

func (s *Service) Get(ctx context.Context, id string) (Organization, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Organization{}, err
	}
	row, err := s.queries.GetOrganization(ctx, pgID)
	if err != nil {
		if db.IsNotFound(err) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return toOrganization(row), nil
}

// Create adds an organization. inboundEmail may be empty.
func (s *Service) Create(ctx context.Context, name, businessName, inboundEmail string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, errors.New("organization name is required")
	}
	row, err := s.queries.CreateOrganization(ctx, sqlc.CreateOrganizationParams{
		Name:         name,
		BusinessName: db.Text(strings.TrimSpace(businessName)),
		InboundEmail: db.Text(strings.ToLower(strings.TrimSpace(inboundEmail))),
	})
	if err != nil {
		return Organization{}, err
	}
	return toOrganization(row), nil
}

// BusinessName returns the name replies are written for.
func (s *Service) BusinessName(ctx context.Context, organizationID string) (string, error) {
	org, err := s.Get(ctx, organizationID)
	if err != nil {
		return "", err
	}
	return org.DisplayName(), nil
}

// PrimaryNumber returns the organization's primary sending number, or ""
// when none is configured.
func (s *Service) PrimaryNumber(ctx context.Context, organizationID string) (string, error) {
	pgID, err := db.ParseUUID(organizationID)
	if err != nil {
		return "", err
	}
	row, err := s.queries.GetPrimaryPhoneNumber(ctx, pgID)
	if err != nil {
		if db.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return row.PhoneNumber, nil
}

// SetPhoneNumber registers number for the organization.
func (s *Service) SetPhoneNumber(ctx context.Context, organizationID, number string, primary bool) error {
	pgID, err := db.ParseUUID(organizationID)
	if err != nil {
		return err
	}
	normalized := conversation.NormalizePhone(number)
	if normalized == "" {
		return fmt.Errorf("invalid phone number %q", number)
	}
	_, err = s.queries.UpsertPhoneNumber(ctx, sqlc.UpsertPhoneNumberParams{
		OrganizationID: pgID,
		PhoneNumber:    normalized,
		IsPrimary:      primary,
	})
	return err
}

// ByPhoneNumber returns the organization owning a business number.
func (s *Service) ByPhoneNumber(ctx context.Context, number string) (string, error) {
	row, err := s.queries.GetPhoneNumber(ctx, conversation.NormalizePhone(number))
	if err != nil {
		if db.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return db.UUIDToString(row.OrganizationID), nil
}

// ByInboundEmail returns the organization receiving mail at address.
func (s *Service) ByInboundEmail(ctx context.Context, address string) (string, error) {
	row, err := s.queries.GetOrganizationByInboundEmail(ctx, strings.TrimSpace(address))
	if err != nil {
		if db.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return db.UUIDToString(row.ID), nil
}

func toOrganization(row sqlc.Organization) Organization {
	return Organization{
		ID:           db.UUIDToString(row.ID),
		Name:         row.Name,
		BusinessName: db.TextToString(row.BusinessName),
		InboundEmail: db.TextToString(row.InboundEmail),
	}
}
