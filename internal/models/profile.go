package models

// Profile is the subset of a user profile needed to render conversations.
type Profile struct {
	UserID      string  `db:"user_id" json:"user_id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	ImageURL    *string `db:"image_url" json:"image_url,omitempty"`
}
