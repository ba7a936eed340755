package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Post is the read-side view the engagement engine needs. Post authoring
// lives in the surrounding CMS; this store only consults published state.
type Post struct {
	ID               string
	Title            string
	AuthorID         string
	IsPublished      bool
	IsDeleted        bool
	CommentsEnabled  bool
	ReactionsEnabled bool
	PublishedAt      *time.Time
	CreatedAt        time.Time
}

// Comment is the member-facing unit of conversation. Questions carry a
// thread_key shared with their moderation-facing Interaction mirror.
type Comment struct {
	ID             string
	PostID         string
	UserID         string
	ParentID       *string
	ThreadKey      string
	Content        string
	IsQuestion     bool
	QuestionStatus string
	AnsweredBy     *string
	AnsweredAt     *time.Time
	IsDeleted      bool
	DeletedAt      *time.Time
	DeletedBy      *string
	IsFlagged      bool
	FlaggedReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// Joined for API responses
	AuthorName string
}

// Interaction is the moderation-facing mirror of questions and flagged
// content. It shares the thread_key with the correlated Comment; there is
// deliberately no foreign key between the two tables. Status tracks the
// question lifecycle only; flag review state lives in FlagStatus so the
// two never race each other.
type Interaction struct {
	ID          string
	PostID      string
	UserID      string
	ParentID    *string
	ThreadKey   string
	Content     string
	Type        string
	Status      string
	IsQuestion  bool
	IsHidden    bool
	IsDeleted   bool
	IsFlagged   bool
	FlaggedBy   *string
	FlaggedAt   *time.Time
	FlagReason  string
	FlagStatus  string
	RespondedBy *string
	RespondedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// Joined for API responses
	AuthorName string
	PostTitle  string
}

// InteractionFilter narrows the moderation list view.
type InteractionFilter struct {
	Type       string
	Status     string
	IsQuestion *bool
	IsFlagged  *bool
	PostID     string
	UserID     string
	Limit      int
}

type InteractionStats struct {
	UnansweredQuestions int
	AnsweredQuestions   int
	FlaggedPending      int
}

// Reaction is one row per (post, user); uniqueness is enforced by the
// schema, not the application.
type Reaction struct {
	ID           string
	PostID       string
	UserID       string
	ReactionType string
	Emoji        string
	CreatedAt    time.Time
}

type ReactionCount struct {
	ReactionType string
	Emoji        string
	Count        int
}

type AuditEvent struct {
	ID          int64
	ActorID     *string
	ActorName   string
	ActionType  string
	Description string
	EntityType  string
	EntityID    string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}
