// Package visibility decides which conversations a user may see.
package visibility

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fieldline/fieldline/internal/conversation"
	"github.com/fieldline/fieldline/internal/db"
	"github.com/fieldline/fieldline/internal/db/sqlc"
)

// Viewer is the identity a list is filtered for.
type Viewer struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
}

func (v Viewer) HasPermission(p string) bool {
	return slices.Contains(v.Permissions, p)
}

// Scope is the store scope for this viewer's organization.
func (v Viewer) Scope() conversation.Scope {
	return conversation.Scope{OrganizationID: v.OrganizationID}
}

// Policy names the roles limited to their assigned clients and the
// permission that lifts the limit.
type Policy struct {
	RestrictedRoles   []string
	ViewAllPermission string
}

// Restricted reports whether v only sees conversations of assigned clients.
func (p Policy) Restricted(v Viewer) bool {
	role := strings.ToLower(strings.TrimSpace(v.Role))
	restricted := false
	for _, r := range p.RestrictedRoles {
		if strings.EqualFold(r, role) {
			restricted = true
			break
		}
	}
	if !restricted {
		return false
	}
	return p.ViewAllPermission == "" || !v.HasPermission(p.ViewAllPermission)
}

// Assignment is the set of client ids a restricted viewer may see.
type Assignment map[string]struct{}

func NewAssignment(ids ...string) Assignment {
	a := make(Assignment, len(ids))
	for _, id := range ids {
		if id != "" {
			a[id] = struct{}{}
		}
	}
	return a
}

func (a Assignment) Contains(clientID string) bool {
	if clientID == "" {
		return false
	}
	_, ok := a[clientID]
	return ok
}

// Same reports whether o grants exactly what v grants.
func (v Viewer) Same(o Viewer) bool {
	if v.UserID != o.UserID || v.OrganizationID != o.OrganizationID || !strings.EqualFold(v.Role, o.Role) {
		return false
	}
	a, b := slices.Clone(v.Permissions), slices.Clone(o.Permissions)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

// IDs returns the assigned client ids in sorted order.
func (a Assignment) IDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Allows reports whether a single conversation is visible. An empty
// assignment hides everything from restricted viewers.
func (p Policy) Allows(v Viewer, assigned Assignment, clientID string) bool {
	if !p.Restricted(v) {
		return true
	}
	return assigned.Contains(clientID)
}

// Filter returns the conversations v may see. Unrestricted viewers get convs unchanged.
func (p Policy) Filter(convs []conversation.Conversation, v Viewer, assigned Assignment) []conversation.Conversation {
	if !p.Restricted(v) {
		return convs
	}
	out := make([]conversation.Conversation, 0, len(convs))
	for _, c := range convs {
		if assigned.Contains(c.ClientID) {
			out = append(out, c)
		}
	}
	return out
}

// FilterSummaries is Filter for count rows.
func (p Policy) FilterSummaries(rows []conversation.Summary, v Viewer, assigned Assignment) []conversation.Summary {
	if !p.Restricted(v) {
		return rows
	}
	out := make([]conversation.Summary, 0, len(rows))
	for _, r := range rows {
		if assigned.Contains(r.ClientID) {
			out = append(out, r)
		}
	}
	return out
}

// AssignmentSource loads the clients a user is assigned to through jobs.
type AssignmentSource interface {
	AssignedClients(ctx context.Context, userID string) (Assignment, error)
}

// JobAssignments reads jobs.technician_id.
type JobAssignments struct {
	queries *sqlc.Queries
}

func NewJobAssignments(queries *sqlc.Queries) *JobAssignments {
	return &JobAssignments{queries: queries}
}

func (j *JobAssignments) AssignedClients(ctx context.Context, userID string) (Assignment, error) {
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := j.queries.ListAssignedClientIDs(ctx, pgID)
	if err != nil {
		return nil, fmt.Errorf("list assigned clients: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, id := range rows {
		ids = append(ids, db.UUIDToString(id))
	}
	return NewAssignment(ids...), nil
}
