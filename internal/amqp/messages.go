package amqp

import (
	"encoding/json"
	"time"

	"conti/internal/core"
)

// Mutation operation names carried in messages.
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpIncrement = "increment"
)

// MutationMessage announces a committed write so out-of-process consumers
// (notification scheduling, multi-device refresh) can react. It carries ids
// only; consumers fetch current state themselves.
type MutationMessage struct {
	Owner     string    `json:"owner"`
	Domain    string    `json:"domain"`
	Op        string    `json:"op"`
	IDs       []string  `json:"ids,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationMessage creates a message for one committed operation.
func NewMutationMessage(owner string, domain core.Domain, op string, ids []string) *MutationMessage {
	return &MutationMessage{
		Owner:     owner,
		Domain:    domain.String(),
		Op:        op,
		IDs:       ids,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MutationMessageFromJSON creates a message from JSON bytes
func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
