package sessionevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/myevents"
)

const (
	TopicName            = "checkoutsession"
	sessionCreatedName   = TopicName + ".created"
	sessionStepName      = TopicName + ".stepChanged"
	sessionAuthName      = TopicName + ".authenticated"
	sessionExpiredName   = TopicName + ".expired"
	sessionCompletedName = TopicName + ".completed"
	sessionClearedName   = TopicName + ".cleared"
)

type SessionEventService interface {
	Subscribe(c context.Context) error
	OnSessionCompleted(c context.Context, topic string, event SessionCompleted) error
	OnSessionExpired(c context.Context, topic string, event SessionExpired) error
}

func DispatchEvent(c context.Context, reader io.Reader, service SessionEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	switch envelope.EventTypeName {
	case sessionCompletedName:
		{
			event := SessionCompleted{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnSessionCompleted(c, envelope.Topic, event)
		}
	case sessionExpiredName:
		{
			event := SessionExpired{}
			err := json.Unmarshal([]byte(envelope.EventPayload), &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnSessionExpired(c, envelope.Topic, event)
		}
	case sessionCreatedName, sessionStepName, sessionAuthName, sessionClearedName:
		// nobody subscribes to these yet
		return nil
	default:
		return myerrors.NewNotImplementedError(fmt.Errorf("%s", envelope.EventTypeName))
	}
}

type SessionCreated struct {
	SessionUID string
	StoreUID   string
}

func (e SessionCreated) GetEventTypeName() string {
	return sessionCreatedName
}

func (e SessionCreated) GetAggregateName() string {
	return e.SessionUID
}

type SessionStepChanged struct {
	SessionUID   string
	StoreUID     string
	PreviousStep string
	CurrentStep  string
}

func (e SessionStepChanged) GetEventTypeName() string {
	return sessionStepName
}

func (e SessionStepChanged) GetAggregateName() string {
	return e.SessionUID
}

type SessionAuthenticated struct {
	SessionUID string
	StoreUID   string
	Method     string
	IsGuest    bool
}

func (e SessionAuthenticated) GetEventTypeName() string {
	return sessionAuthName
}

func (e SessionAuthenticated) GetAggregateName() string {
	return e.SessionUID
}

type SessionExpired struct {
	SessionUID string
	StoreUID   string
}

func (e SessionExpired) GetEventTypeName() string {
	return sessionExpiredName
}

func (e SessionExpired) GetAggregateName() string {
	return e.SessionUID
}

type SessionCompleted struct {
	SessionUID string
	StoreUID   string
}

func (e SessionCompleted) GetEventTypeName() string {
	return sessionCompletedName
}

func (e SessionCompleted) GetAggregateName() string {
	return e.SessionUID
}

type SessionCleared struct {
	SessionUID string
	StoreUID   string
}

func (e SessionCleared) GetEventTypeName() string {
	return sessionClearedName
}

func (e SessionCleared) GetAggregateName() string {
	return e.SessionUID
}
