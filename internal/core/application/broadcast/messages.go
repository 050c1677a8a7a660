package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/errs"
)

// Wire message types.
const (
	TypeSubscribe       = "order.subscribe"
	TypeUnsubscribe     = "order.unsubscribe"
	TypeProgressUpdate  = "order.progress.update"
	TypeConnectionState = "connection.state"
	TypeError           = "error"
)

// ErrUnknownEventType is returned for client messages with an unsupported type.
var ErrUnknownEventType = errors.New("unknown event type")

// ClientEvent is a decoded client message. The concrete types are
// SubscribeEvent and UnsubscribeEvent.
type ClientEvent interface {
	EventType() string
	MasterOrderID() kernel.UUID
}

// SubscribeEvent asks for progress updates of one order.
type SubscribeEvent struct {
	OrderID  kernel.UUID
	UserID   string
	UserRole string
}

func (SubscribeEvent) EventType() string            { return TypeSubscribe }
func (e SubscribeEvent) MasterOrderID() kernel.UUID { return e.OrderID }

// UnsubscribeEvent stops progress updates of one order.
type UnsubscribeEvent struct {
	OrderID kernel.UUID
	UserID  string
}

func (UnsubscribeEvent) EventType() string            { return TypeUnsubscribe }
func (e UnsubscribeEvent) MasterOrderID() kernel.UUID { return e.OrderID }

type clientEnvelope struct {
	Type string `json:"type"`
	Data struct {
		OrderID  string `json:"orderId"`
		UserID   string `json:"userId"`
		UserRole string `json:"userRole"`
	} `json:"data"`
}

// DecodeClientEvent parses one client frame.
func DecodeClientEvent(frame []byte) (ClientEvent, error) {
	var env clientEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("message", err)
	}

	orderID, err := kernel.UUIDFromString(env.Data.OrderID)
	if err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("data.orderId", err)
	}

	switch env.Type {
	case TypeSubscribe:
		return SubscribeEvent{OrderID: orderID, UserID: env.Data.UserID, UserRole: env.Data.UserRole}, nil
	case TypeUnsubscribe:
		return UnsubscribeEvent{OrderID: orderID, UserID: env.Data.UserID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}

// ServerMessage is anything the broadcaster sends to a client.
type ServerMessage interface {
	MessageType() string
}

// ProgressUpdateMessage carries a snapshot of one order.
type ProgressUpdateMessage struct {
	Type      string                 `json:"type"`
	OrderID   kernel.UUID            `json:"orderId"`
	Data      order.ProgressSnapshot `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

func (m ProgressUpdateMessage) MessageType() string { return m.Type }

// ConnectionState summarizes live connections.
type ConnectionState struct {
	ConnectedClients int       `json:"connectedClients"`
	ConnectedUsers   int       `json:"connectedUsers"`
	LastUpdate       time.Time `json:"lastUpdate"`
}

type ConnectionStateMessage struct {
	Type string          `json:"type"`
	Data ConnectionState `json:"data"`
}

func (m ConnectionStateMessage) MessageType() string { return m.Type }

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m ErrorMessage) MessageType() string { return m.Type }

func progressUpdate(snap order.ProgressSnapshot, at time.Time) ProgressUpdateMessage {
	return ProgressUpdateMessage{Type: TypeProgressUpdate, OrderID: snap.OrderID, Data: snap, Timestamp: at}
}

func errorMessage(format string, args ...any) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: fmt.Sprintf(format, args...)}
}
