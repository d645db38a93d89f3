package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncRepairMessage asks the worker to re-apply a change to a source's ledger
// entries. It carries identifiers only: the worker reads the source as it is
// stored when the message is handled.
type SyncRepairMessage struct {
	SourceID  string    `json:"source_id"`
	OwnerID   string    `json:"owner_id"`
	Change    string    `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncRepairMessage(ownerID, sourceID, change string) *SyncRepairMessage {
	return &SyncRepairMessage{
		SourceID:  sourceID,
		OwnerID:   ownerID,
		Change:    change,
		Timestamp: time.Now(),
	}
}

// Key identifies the repair for de-duplication.
func (m *SyncRepairMessage) Key() string {
	return m.SourceID + "/" + m.Change
}

func (m *SyncRepairMessage) Validate() error {
	switch {
	case m.SourceID == "":
		return fmt.Errorf("source_id is required")
	case m.OwnerID == "":
		return fmt.Errorf("owner_id is required")
	case m.Change == "":
		return fmt.Errorf("change is required")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *SyncRepairMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRepairMessageFromJSON decodes and validates a message.
func SyncRepairMessageFromJSON(data []byte) (*SyncRepairMessage, error) {
	var msg SyncRepairMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
