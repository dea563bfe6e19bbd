package cart

import (
	"context"

	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/services/cart/cartevents"
	"github.com/valter-tonon/digimenu-core/services/session/sessionevents"
)

// Cart events announce that another instance changed the persisted cart.
// Reconciliation is the same for all of them: re-read the persisted state
// and adopt it, mirroring how each instance's own writes refresh the cache.

func (s *service) OnCartItemAdded(c context.Context, topic string, event cartevents.CartItemAdded) error {
	return s.refreshCart(c, event.CartUID)
}

func (s *service) OnCartItemUpdated(c context.Context, topic string, event cartevents.CartItemUpdated) error {
	return s.refreshCart(c, event.CartUID)
}

func (s *service) OnCartItemRemoved(c context.Context, topic string, event cartevents.CartItemRemoved) error {
	return s.refreshCart(c, event.CartUID)
}

func (s *service) OnCartCleared(c context.Context, topic string, event cartevents.CartCleared) error {
	return s.refreshCart(c, event.CartUID)
}

func (s *service) OnCartContextChanged(c context.Context, topic string, event cartevents.CartContextChanged) error {
	return s.refreshCart(c, event.CartUID)
}

func (s *service) refreshCart(c context.Context, cartUID string) error {
	cart, found, err := s.cartStore.Get(c, cartUID)
	if err != nil {
		// keep the stale copy, the next refresh will catch up
		s.logger.Log(c, cartUID, mylog.SeverityWarn, "Error refreshing cart %s: %s", cartUID, err)
		return nil
	}
	if !found {
		s.cacheDelete(cartUID)
		return nil
	}

	s.cachePut(cart)

	return nil
}

// OnSessionCompleted empties the store's carts once its checkout has been
// turned into an order.
func (s *service) OnSessionCompleted(c context.Context, topic string, event sessionevents.SessionCompleted) error {
	cleared, err := s.clearCartsForStore(c, event.StoreUID)
	if err != nil {
		return err
	}

	s.logger.Log(c, event.StoreUID, mylog.SeverityInfo, "Checkout %s completed, cleared %d carts for store %s", event.SessionUID, cleared, event.StoreUID)

	return nil
}

// OnSessionExpired keeps the cart: an abandoned checkout can be resumed, the
// cart has its own expiry.
func (s *service) OnSessionExpired(c context.Context, topic string, event sessionevents.SessionExpired) error {
	s.logger.Log(c, event.StoreUID, mylog.SeverityDebug, "Checkout %s for store %s expired, keeping carts", event.SessionUID, event.StoreUID)

	return nil
}
