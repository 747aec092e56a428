package constants

const (
	// ContextKeyUserID is the session and gin context key holding the authenticated user id.
	ContextKeyUserID = "user_id"
	// SessionCookieName names the session cookie.
	SessionCookieName = "unica_session"

	MinPasswordLength = 8

	// Pagination
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPinnedTasks is the default per-user pin limit.
	MaxPinnedTasks = 5

	// MaxTransactionAttempts bounds how often a conflicting transaction is retried.
	MaxTransactionAttempts = 3

	// Context keys set by access middleware
	ContextKeyOrganization       = "organization"
	ContextKeyOrganizationMember = "organization_member"
	ContextKeyProject            = "project"
	ContextKeyDiscussion         = "discussion"
)
