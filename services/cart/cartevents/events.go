package cartevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/myevents"
)

const (
	TopicName       = "cart"
	itemAddedName   = TopicName + ".itemAdded"
	itemUpdatedName = TopicName + ".itemUpdated"
	itemRemovedName = TopicName + ".itemRemoved"
	cartClearedName = TopicName + ".cleared"
	cartExpiredName = TopicName + ".expired"
	contextName     = TopicName + ".contextChanged"
)

type CartEventService interface {
	Subscribe(c context.Context) error
	OnCartItemAdded(c context.Context, topic string, event CartItemAdded) error
	OnCartItemUpdated(c context.Context, topic string, event CartItemUpdated) error
	OnCartItemRemoved(c context.Context, topic string, event CartItemRemoved) error
	OnCartCleared(c context.Context, topic string, event CartCleared) error
	OnCartContextChanged(c context.Context, topic string, event CartContextChanged) error
}

func DispatchEvent(c context.Context, reader io.Reader, service CartEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case itemAddedName:
		{
			event := CartItemAdded{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnCartItemAdded(c, envelope.Topic, event)
		}
	case itemUpdatedName:
		{
			event := CartItemUpdated{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnCartItemUpdated(c, envelope.Topic, event)
		}
	case itemRemovedName:
		{
			event := CartItemRemoved{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnCartItemRemoved(c, envelope.Topic, event)
		}
	case cartClearedName:
		{
			event := CartCleared{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnCartCleared(c, envelope.Topic, event)
		}
	case contextName:
		{
			event := CartContextChanged{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnCartContextChanged(c, envelope.Topic, event)
		}
	case cartExpiredName:
		// an expired cart is already gone, nothing to reconcile
		return nil
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("%s", envelope.EventTypeName))
	}
}

type CartItemAdded struct {
	CartUID    string
	StoreUID   string
	TableUID   string
	ItemUID    int64
	ProductUID int64
	Quantity   int
}

func (e CartItemAdded) GetEventTypeName() string {
	return itemAddedName
}

func (e CartItemAdded) GetAggregateName() string {
	return e.CartUID
}

type CartItemUpdated struct {
	CartUID  string
	StoreUID string
	TableUID string
	ItemUID  int64
	Quantity int
}

func (e CartItemUpdated) GetEventTypeName() string {
	return itemUpdatedName
}

func (e CartItemUpdated) GetAggregateName() string {
	return e.CartUID
}

type CartItemRemoved struct {
	CartUID  string
	StoreUID string
	TableUID string
	ItemUID  int64
}

func (e CartItemRemoved) GetEventTypeName() string {
	return itemRemovedName
}

func (e CartItemRemoved) GetAggregateName() string {
	return e.CartUID
}

type CartCleared struct {
	CartUID  string
	StoreUID string
	TableUID string
}

func (e CartCleared) GetEventTypeName() string {
	return cartClearedName
}

func (e CartCleared) GetAggregateName() string {
	return e.CartUID
}

type CartContextChanged struct {
	CartUID      string
	StoreUID     string
	TableUID     string
	DeliveryMode string
}

func (e CartContextChanged) GetEventTypeName() string {
	return contextName
}

func (e CartContextChanged) GetAggregateName() string {
	return e.CartUID
}

type CartExpired struct {
	CartUID  string
	StoreUID string
	TableUID string
}

func (e CartExpired) GetEventTypeName() string {
	return cartExpiredName
}

func (e CartExpired) GetAggregateName() string {
	return e.CartUID
}
