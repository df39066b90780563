package events

import (
	"encoding/json"
	"time"

	"Gin_postgres_redis_marketplace/models"
)

const (
	EventTransactionTransitioned = "TransactionTransitioned"
	EventVersion                 = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // transaction id
	Payload       json.RawMessage `json:"payload"`
}

type TransitionedPayload struct {
	TransactionID   string                 `json:"transaction_id"`
	ItemID          string                 `json:"item_id"`
	BuyerID         string                 `json:"buyer_id"`
	SellerID        string                 `json:"seller_id"`
	TransactionType models.TransactionType `json:"transaction_type"`
	Action          models.Action          `json:"action"`
	FromStatus      models.Status          `json:"from_status,omitempty"`
	ToStatus        models.Status          `json:"to_status"`
	ActorID         string                 `json:"actor_id"`
	DisputeReason   string                 `json:"dispute_reason,omitempty"`
}

// 分区键 = transaction id，同一交易的事件保持顺序
func PartitionKey(transactionID string) []byte { return []byte(transactionID) }

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
