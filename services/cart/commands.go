package cart

import (
	"context"
	"fmt"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/services/cart/cartevents"
)

func emptyCart(storeUID string, tableUID string) Cart {
	return Cart{
		UID:          createCartUID(storeUID, tableUID),
		StoreUID:     storeUID,
		TableUID:     tableUID,
		DeliveryMode: DeliveryModeTable,
		Items:        []CartItem{},
	}
}

// setContext binds the cart to its store and table and records how the order
// will be fulfilled. Calling it again with the same mode is a no-op, so the
// UI can fire it on every page load. Items already in the cart survive a
// context change.
func (s *service) setContext(c context.Context, storeUID string, tableUID string, mode DeliveryMode) (Cart, error) {
	cartUID := createCartUID(storeUID, tableUID)

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var existed bool
		var err error
		cart, existed, err = s.getActiveCart(c, storeUID, tableUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		if existed && cart.DeliveryMode == mode {
			return nil
		}

		cart.DeliveryMode = mode
		cart.LastUpdated = s.nower.Now()

		err = s.cartStore.Put(c, cartUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartContextChanged{
			CartUID:      cartUID,
			StoreUID:     storeUID,
			TableUID:     tableUID,
			DeliveryMode: string(mode),
		})
	})
	if err != nil {
		return Cart{}, err
	}

	s.cachePut(cart)

	return cart, nil
}

// addItem puts an item in the cart. An item with the same merge key as an
// existing line accumulates quantity on that line instead of creating a
// duplicate, because the UI calls addItem once per "+1" tap.
func (s *service) addItem(c context.Context, storeUID string, tableUID string, item CartItem) (Cart, error) {
	cartUID := createCartUID(storeUID, tableUID)

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var err error
		cart, _, err = s.getActiveCart(c, storeUID, tableUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		key := item.mergeKey()
		merged := false
		for i := range cart.Items {
			if cart.Items[i].mergeKey() == key {
				cart.Items[i].Quantity += item.Quantity
				item = cart.Items[i]
				merged = true
				break
			}
		}
		if !merged {
			item.UID = cart.nextItemUID()
			cart.Items = append(cart.Items, item)
		}
		cart.LastUpdated = s.nower.Now()

		err = s.cartStore.Put(c, cartUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartItemAdded{
			CartUID:    cartUID,
			StoreUID:   storeUID,
			TableUID:   tableUID,
			ItemUID:    item.UID,
			ProductUID: item.ProductUID,
			Quantity:   item.Quantity,
		})
	})
	if err != nil {
		return Cart{}, err
	}

	s.cachePut(cart)

	return cart, nil
}

// updateItem applies a partial update to one line item. A quantity of zero
// or less removes the line.
func (s *service) updateItem(c context.Context, storeUID string, tableUID string, itemRef string, updates UpdateForm) (Cart, error) {
	cartUID := createCartUID(storeUID, tableUID)

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var existed bool
		var err error
		cart, existed, err = s.getActiveCart(c, storeUID, tableUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !existed {
			return myerrors.NewNotFoundError(fmt.Errorf("no cart for store %s table %s", storeUID, tableUID))
		}

		idx := cart.findItemIndex(itemRef)
		if idx < 0 {
			return myerrors.NewNotFoundError(fmt.Errorf("no item %s in cart %s", itemRef, cartUID))
		}

		removed := false
		if updates.Quantity != nil {
			if *updates.Quantity <= 0 {
				removed = true
			} else {
				cart.Items[idx].Quantity = *updates.Quantity
			}
		}
		if updates.Notes != nil {
			cart.Items[idx].Notes = *updates.Notes
		}

		item := cart.Items[idx]
		if removed {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		}
		cart.LastUpdated = s.nower.Now()

		err = s.cartStore.Put(c, cartUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		if removed {
			return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartItemRemoved{
				CartUID:  cartUID,
				StoreUID: storeUID,
				TableUID: tableUID,
				ItemUID:  item.UID,
			})
		}

		return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartItemUpdated{
			CartUID:  cartUID,
			StoreUID: storeUID,
			TableUID: tableUID,
			ItemUID:  item.UID,
			Quantity: item.Quantity,
		})
	})
	if err != nil {
		return Cart{}, err
	}

	s.cachePut(cart)

	return cart, nil
}

// removeItem drops one line item. Removing an item that is not there is a
// no-op: the caller may act on a stale view of the cart.
func (s *service) removeItem(c context.Context, storeUID string, tableUID string, itemRef string) (Cart, error) {
	cartUID := createCartUID(storeUID, tableUID)

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var existed bool
		var err error
		cart, existed, err = s.getActiveCart(c, storeUID, tableUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !existed {
			return nil
		}

		idx := cart.findItemIndex(itemRef)
		if idx < 0 {
			return nil
		}

		item := cart.Items[idx]
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		cart.LastUpdated = s.nower.Now()

		err = s.cartStore.Put(c, cartUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartItemRemoved{
			CartUID:  cartUID,
			StoreUID: storeUID,
			TableUID: tableUID,
			ItemUID:  item.UID,
		})
	})
	if err != nil {
		return Cart{}, err
	}

	s.cachePut(cart)

	return cart, nil
}

// clearCart empties the cart but keeps its context, so the next item lands
// on the same table again.
func (s *service) clearCart(c context.Context, storeUID string, tableUID string) (Cart, error) {
	cartUID := createCartUID(storeUID, tableUID)

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var existed bool
		var err error
		cart, existed, err = s.getActiveCart(c, storeUID, tableUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !existed || len(cart.Items) == 0 {
			cart.Items = []CartItem{}
			return nil
		}

		cart.Items = []CartItem{}
		cart.LastUpdated = s.nower.Now()

		err = s.cartStore.Put(c, cartUID, cart)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartCleared{
			CartUID:  cartUID,
			StoreUID: storeUID,
			TableUID: tableUID,
		})
	})
	if err != nil {
		return Cart{}, err
	}

	s.cachePut(cart)

	return cart, nil
}

// getCart reads the cart. This path never fails the caller: a broken store
// falls back to the last cart this instance saw, or an empty cart.
func (s *service) getCart(c context.Context, storeUID string, tableUID string) Cart {
	cartUID := createCartUID(storeUID, tableUID)

	cart, found, err := s.cartStore.Get(c, cartUID)
	if err != nil {
		s.logger.Log(c, cartUID, mylog.SeverityWarn, "Cart store unreadable for %s, serving last known state: %s", cartUID, err)

		if cached, ok := s.cacheGet(cartUID); ok {
			return cached
		}
		return emptyCart(storeUID, tableUID)
	}
	if !found {
		s.cacheDelete(cartUID)
		return emptyCart(storeUID, tableUID)
	}

	if cart.IsExpired(s.nower.Now()) {
		s.expireCart(c, cart)
		return emptyCart(storeUID, tableUID)
	}

	s.cachePut(cart)

	return cart
}

// getActiveCart is the transactional read used by mutations. An absent or
// expired cart comes back as a fresh empty one with existed=false.
func (s *service) getActiveCart(c context.Context, storeUID string, tableUID string) (Cart, bool, error) {
	cartUID := createCartUID(storeUID, tableUID)

	cart, found, err := s.cartStore.Get(c, cartUID)
	if err != nil {
		return Cart{}, false, err
	}
	if !found {
		return emptyCart(storeUID, tableUID), false, nil
	}

	if cart.IsExpired(s.nower.Now()) {
		err = s.cartStore.Delete(c, cartUID)
		if err != nil {
			return Cart{}, false, err
		}

		err = s.publisher.Publish(c, cartevents.TopicName, cartevents.CartExpired{
			CartUID:  cartUID,
			StoreUID: storeUID,
			TableUID: tableUID,
		})
		if err != nil {
			return Cart{}, false, err
		}

		s.cacheDelete(cartUID)

		return emptyCart(storeUID, tableUID), false, nil
	}

	return cart, true, nil
}

// expireCart discards a cart that outlived its TTL. Failures here are logged
// only: the caller already treats the cart as gone.
func (s *service) expireCart(c context.Context, cart Cart) {
	s.logger.Log(c, cart.UID, mylog.SeverityInfo, "Cart %s expired, discarding", cart.UID)

	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		err := s.cartStore.Delete(c, cart.UID)
		if err != nil {
			return err
		}

		return s.publisher.Publish(c, cartevents.TopicName, cartevents.CartExpired{
			CartUID:  cart.UID,
			StoreUID: cart.StoreUID,
			TableUID: cart.TableUID,
		})
	})
	if err != nil {
		s.logger.Log(c, cart.UID, mylog.SeverityWarn, "Error discarding expired cart %s: %s", cart.UID, err)
	}

	s.cacheDelete(cart.UID)
}

// clearCartsForStore empties every cart of the store. Used when a checkout
// for the store completes.
func (s *service) clearCartsForStore(c context.Context, storeUID string) (int, error) {
	carts, err := s.cartStore.List(c)
	if err != nil {
		return 0, myerrors.NewInternalError(err)
	}

	cleared := 0
	for _, cart := range carts {
		if cart.StoreUID != storeUID || len(cart.Items) == 0 {
			continue
		}

		_, err := s.clearCart(c, cart.StoreUID, cart.TableUID)
		if err != nil {
			return cleared, err
		}
		cleared++
	}

	return cleared, nil
}
