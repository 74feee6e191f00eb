package models

import "time"

// ConnectionStatus is the state of a contact relationship.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
)

// Connection is a contact relationship stored once per unordered pair,
// with UserID1 < UserID2.
type Connection struct {
	ID          string           `db:"connection_id" json:"connection_id"`
	UserID1     string           `db:"user_id_1" json:"user_id_1"`
	UserID2     string           `db:"user_id_2" json:"user_id_2"`
	RequestedBy string           `db:"requested_by" json:"requested_by"`
	Status      ConnectionStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// CanonicalPair normalizes two user ids and orders them so the smaller comes
// first. Canonical UUID strings sort the same way Postgres orders uuid values.
func CanonicalPair(a, b string) (string, string) {
	a, b = NormalizeUserID(a), NormalizeUserID(b)
	if b < a {
		return b, a
	}
	return a, b
}

// Other returns the member of the pair that is not userID.
func (c Connection) Other(userID string) string {
	if c.UserID1 == userID {
		return c.UserID2
	}
	return c.UserID1
}

// Involves reports whether userID is one side of the connection.
func (c Connection) Involves(userID string) bool {
	return c.UserID1 == userID || c.UserID2 == userID
}
