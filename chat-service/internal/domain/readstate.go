package domain

import "time"

// ReadState maps conversation id to the instant through which the owner has
// read it. Direct conversations are keyed by the peer identity, groups by
// group id. Keys are not checked against existing conversations.
type ReadState map[string]time.Time

// NeverRead is the last-read value of a conversation with no entry.
var NeverRead = time.Unix(0, 0).UTC()

// LastRead returns the recorded instant for conversationID or NeverRead.
func (rs ReadState) LastRead(conversationID string) time.Time {
	if t, ok := rs[conversationID]; ok {
		return t
	}
	return NeverRead
}

// ReadStateModel is the GORM model for read_states table.
type ReadStateModel struct {
	UserID         string    `gorm:"type:varchar(36);primaryKey"`
	ConversationID string    `gorm:"type:varchar(80);primaryKey"`
	LastReadAt     time.Time `gorm:"not null"`
}

// TableName specifies the table name for ReadStateModel.
func (ReadStateModel) TableName() string {
	return "read_states"
}

// UnreadCounts maps conversation id to the number of unread messages. Only
// non-zero entries are present.
type UnreadCounts map[string]int
