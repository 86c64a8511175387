package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionAdd    = "add"
	ActionDelete = "delete"
)

// EntrySyncMessage asks the worker to push one entry operation to the remote
// ledger. It carries only the entry id; the worker reads the full entry from
// the local store for adds.
type EntrySyncMessage struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(id, action string) *EntrySyncMessage {
	return &EntrySyncMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
