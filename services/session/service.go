package session

import (
	"context"
	"fmt"
	"time"

	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/lib/mypublisher"
	"github.com/valter-tonon/digimenu-core/lib/mystore"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
	"github.com/valter-tonon/digimenu-core/lib/myuuid"
	"github.com/valter-tonon/digimenu-core/services/session/sessionevents"
)

const (
	// sessionDuration bounds a checkout: activity slides the expiry forward,
	// an abandoned session silently dies.
	sessionDuration = 30 * time.Minute
)

type service struct {
	sessionStore mystore.Store[CheckoutSession]
	publisher    mypublisher.Publisher
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(store mystore.Store[CheckoutSession], nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger, pub mypublisher.Publisher) *service {
	return &service{
		sessionStore: store,
		publisher:    pub,
		nower:        nower,
		uuider:       uuider,
		logger:       logger,
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, sessionevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", sessionevents.TopicName, err)
	}

	return nil
}
