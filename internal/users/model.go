package users

import "time"

// Auth providers a user can sign in with.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"fullName"`
	PasswordHash       string     `json:"-"`
	AuthProvider       string     `json:"authProvider"`
	AuthSubject        string     `json:"-"`
	IsActive           bool       `json:"isActive"`
	Company            string     `json:"company,omitempty"`
	Role               string     `json:"role,omitempty"`
	PreferredLanguage  string     `json:"preferredLanguage"`
	DocumentsProcessed int        `json:"documentsProcessed"`
	APICallsCount      int        `json:"apiCallsCount"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ExternalIdentity is a profile asserted by an identity provider.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FullName      string
}

// Key scopes the subject to its provider; it is what User.AuthSubject stores.
func (id ExternalIdentity) Key() string {
	return id.Provider + ":" + id.Subject
}

// ProfileUpdate carries the editable profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	FullName          *string `json:"fullName"`
	Company           *string `json:"company"`
	Role              *string `json:"role"`
	PreferredLanguage *string `json:"preferredLanguage"`
}

type Stats struct {
	DocumentsProcessed int        `json:"documentsProcessed"`
	APICallsCount      int        `json:"apiCallsCount"`
	Documents          int        `json:"documents"`
	Analyses           int        `json:"analyses"`
	MemberSince        time.Time  `json:"memberSince"`
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
}
