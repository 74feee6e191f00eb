package models

import "time"

// ThreadType classifies a conversation by membership size.
type ThreadType string

const (
	ThreadTypeDirect ThreadType = "direct"
	ThreadTypeGroup  ThreadType = "group"
)

// ParticipantRole is the role a user holds within a thread.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Thread is a conversation container. ThreadType is a cached classification;
// the participant count is authoritative.
type Thread struct {
	ID              string     `db:"thread_id" json:"thread_id"`
	ThreadType      ThreadType `db:"thread_type" json:"thread_type"`
	CreatedByUserID string     `db:"created_by_user_id" json:"created_by_user_id"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	GroupName       *string    `db:"group_name" json:"group_name,omitempty"`
	GroupImage      *string    `db:"group_image" json:"group_image,omitempty"`
}

// Participant is a (thread, user) membership record.
type Participant struct {
	ThreadID string          `db:"thread_id" json:"thread_id"`
	UserID   string          `db:"user_id" json:"user_id"`
	Role     ParticipantRole `db:"role" json:"role"`
	JoinedAt time.Time       `db:"joined_at" json:"joined_at"`
}

// NewParticipant is the input for inserting a membership row.
type NewParticipant struct {
	UserID string
	Role   ParticipantRole
}

// NewThread holds the fields supplied when creating a thread.
type NewThread struct {
	ThreadType      ThreadType
	CreatedByUserID string
	GroupName       *string
	GroupImage      *string
	// DirectKey is the canonical pair key, set only for direct threads.
	DirectKey *string
}

// ThreadUpdate is a partial update; nil fields are left untouched.
type ThreadUpdate struct {
	ThreadType *ThreadType
	GroupName  *string
	GroupImage *string
	// ClearDirectKey drops the pair uniqueness key once a thread becomes a group.
	ClearDirectKey bool
}

// ThreadSummary is the per-viewer view of a thread used by listings.
type ThreadSummary struct {
	Thread
	Title        string        `json:"title"`
	Kind         ThreadType    `json:"kind"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
}

// DirectKey returns the canonical key identifying the direct thread of a pair.
func DirectKey(a, b string) string {
	first, second := CanonicalPair(a, b)
	return first + ":" + second
}
