// Package saga defines the outcome records saga steps emit and the
// monitoring aggregator consumes. Marks never feed back into business state.
package saga

import (
	"context"
	"time"

	"marketflow/internal/bus"
)

// Type tags the multi-step transaction a mark belongs to.
type Type string

const (
	CustomerSession Type = "CUSTOMER_SESSION"
	PriceUpdate     Type = "PRICE_UPDATE"
	UpdateProduct   Type = "UPDATE_PRODUCT"
	UpdateDelivery  Type = "UPDATE_DELIVERY"
)

// Types lists every saga type the aggregator subscribes to.
func Types() []Type {
	return []Type{CustomerSession, PriceUpdate, UpdateProduct, UpdateDelivery}
}

// Status is the outcome a step reports for a saga instance.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
	StatusAbort   Status = "ABORT"
)

// TransactionMark is the immutable outcome record: one per event per service.
type TransactionMark struct {
	TID       string `json:"tid"`
	Type      Type   `json:"type"`
	SubjectID string `json:"subject_id"`
	Status    Status `json:"status"`
	Source    string `json:"source"`
}

// TransactionOutput pairs a completed saga instance with its observation time.
type TransactionOutput struct {
	TID        string    `json:"tid"`
	ObservedAt time.Time `json:"observed_at"`
}

// MarkTopic names the outcome channel for a saga type.
func MarkTopic(t Type) string {
	return "TransactionMark_" + string(t)
}

// Emit publishes a mark on its type's outcome channel through the same
// publish primitive the business events use, so a mark emitted inside a
// transaction is suppressed when the transaction rolls back.
func Emit(ctx context.Context, pub bus.Publisher, mark TransactionMark) error {
	return pub.Publish(ctx, MarkTopic(mark.Type), mark)
}
