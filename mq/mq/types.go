package mq

import (
	"github.com/google/uuid"

	"travelbook/libs/diff"
	"travelbook/order"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	for candidate := ActionCreate; candidate < ActionCnt; candidate++ {
		if candidate.String() == string(text) {
			*a = candidate
			return nil
		}
	}
	return QueueError("unknown action " + string(text))
}

// OrderMessage announces a committed change to the order collection.
type OrderMessage struct {
	ID      uuid.UUID `json:"id"`
	Action  Action    `json:"action"`
	OrderID int       `json:"order_id"`
	// Order is the record after the change; nil for deletes.
	Order *order.Order `json:"order,omitempty"`
	// Changes is filled for updates only.
	Changes []diff.Change `json:"changes,omitempty"`
	At      string        `json:"at"`
}

// NewOrderMessage stamps a message with a fresh id.
func NewOrderMessage(action Action, orderID int, o *order.Order, at string) OrderMessage {
	return OrderMessage{ID: uuid.New(), Action: action, OrderID: orderID, Order: o, At: at}
}

// --- Error Definitions ---
type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull    QueueError = "message queue is full"
	ErrQueueStopped QueueError = "message queue is stopped"
)
