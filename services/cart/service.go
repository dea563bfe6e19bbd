package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valter-tonon/digimenu-core/lib/myhttp"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/lib/mypublisher"
	"github.com/valter-tonon/digimenu-core/lib/mypubsub"
	"github.com/valter-tonon/digimenu-core/lib/mystore"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
	"github.com/valter-tonon/digimenu-core/services/cart/cartevents"
	"github.com/valter-tonon/digimenu-core/services/session/sessionevents"
)

const (
	// cartDuration bounds how long an untouched cart survives. Expiry is
	// enforced lazily on read.
	cartDuration = 24 * time.Hour
)

type service struct {
	cartStore  mystore.Store[Cart]
	publisher  mypublisher.Publisher
	subscriber mypubsub.PubSub
	nower      mytime.Nower
	logger     mylog.Logger

	// cacheMutex guards cache, the last cart read or written per cart uid.
	// When the backing store is unreachable, reads are served from here
	// instead of failing the caller.
	cacheMutex sync.Mutex
	cache      map[string]Cart
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(store mystore.Store[Cart], nower mytime.Nower, logger mylog.Logger, subscriber mypubsub.PubSub, pub mypublisher.Publisher) *service {
	return &service{
		cartStore:  store,
		publisher:  pub,
		subscriber: subscriber,
		nower:      nower,
		logger:     logger,
		cache:      map[string]Cart{},
	}
}

func (s *service) CreateTopics(c context.Context) error {
	err := s.publisher.CreateTopic(c, cartevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", cartevents.TopicName, err)
	}

	return nil
}

// Subscribe listens to cart changes made by other instances and to checkout
// completions, so every instance converges on the persisted cart state.
func (s *service) Subscribe(c context.Context) error {
	for _, topic := range []string{cartevents.TopicName, sessionevents.TopicName} {
		err := s.subscriber.CreateTopic(c, topic)
		if err != nil {
			return fmt.Errorf("error creating topic %s: %s", topic, err)
		}
	}

	hostname := myhttp.GuessHostnameWithScheme()

	err := s.subscriber.Subscribe(c, cartevents.TopicName, hostname+"/api/cart/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", cartevents.TopicName, err)
	}

	err = s.subscriber.Subscribe(c, sessionevents.TopicName, hostname+"/api/cart/session/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", sessionevents.TopicName, err)
	}

	return nil
}

func (s *service) cachePut(cart Cart) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.cache[cart.UID] = cart
}

func (s *service) cacheGet(cartUID string) (Cart, bool) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	cart, found := s.cache[cartUID]
	return cart, found
}

func (s *service) cacheDelete(cartUID string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	delete(s.cache, cartUID)
}
