package pagination

const (
	// MessagePageSize is the fixed page size used by the session pager
	// when loading earlier history.
	MessagePageSize = 25

	// DefaultLimit is the default number of items returned per page
	DefaultLimit = 50

	// MaxLimit is the maximum number of items allowed per page
	MaxLimit = 1000

	// AdminDefaultLimit is the default limit for admin operations
	AdminDefaultLimit = 100

	// ConversationDefaultLimit is the default limit for conversation listings
	ConversationDefaultLimit = 50
)
