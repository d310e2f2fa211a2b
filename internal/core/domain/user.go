package domain

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is the evaluation subject. It is supplied by the caller (the engine
// never loads users itself) and carries only the fields evaluation and
// onboarding requirements read.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organization_id,omitempty"`
	EmailVerified  bool      `json:"email_verified"`
	JoinedAt       time.Time `json:"joined_at"`
}

// Organization is the optional tenant context for an evaluation.
type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	MemberCount int    `json:"member_count"`
}
