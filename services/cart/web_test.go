package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/valter-tonon/digimenu-core/lib/myevents"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/lib/mypublisher"
	"github.com/valter-tonon/digimenu-core/lib/mypubsub"
	"github.com/valter-tonon/digimenu-core/lib/mystore"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
	"github.com/valter-tonon/digimenu-core/services/cart/cartevents"
	"github.com/valter-tonon/digimenu-core/services/session/sessionevents"
)

func cartWithBurger() Cart {
	return Cart{
		UID:          "store-1_t1",
		StoreUID:     "store-1",
		TableUID:     "t1",
		DeliveryMode: DeliveryModeTable,
		Items: []CartItem{
			{UID: 1, ProductUID: 7, Identify: "itm-abc", Name: "Burger", Price: 2500, Quantity: 1},
		},
		LastUpdated: mytime.ExampleTime,
	}
}

func TestCartService(t *testing.T) {

	t.Run("Add item to empty cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemAdded{
			CartUID:    "store-1_t1",
			StoreUID:   "store-1",
			TableUID:   "t1",
			ItemUID:    1,
			ProductUID: 7,
			Quantity:   2,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/cart/store-1/t1/items",
			strings.NewReader("productUid=7&name=Burger&price=2500&quantity=2"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := decodeCartResponse(t, response)
		assert.Equal(t, 2, resp.ItemCount)
		assert.Equal(t, int64(5000), resp.TotalPrice)

		stored, exists, _ := storer.Get(ctx, "store-1_t1")
		assert.True(t, exists)
		assert.Len(t, stored.Items, 1)
		assert.Equal(t, int64(1), stored.Items[0].UID)
	})

	t.Run("Add same item again accumulates quantity on one line", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemAdded{
			CartUID:    "store-1_t1",
			StoreUID:   "store-1",
			TableUID:   "t1",
			ItemUID:    1,
			ProductUID: 7,
			Quantity:   3,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/cart/store-1/t1/items",
			strings.NewReader("productUid=7&identify=itm-abc&name=Burger&price=2500&quantity=2"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Len(t, stored.Items, 1)
		assert.Equal(t, 3, stored.Items[0].Quantity)
	})

	t.Run("Add same product with notes creates a second line", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemAdded{
			CartUID:    "store-1_t1",
			StoreUID:   "store-1",
			TableUID:   "t1",
			ItemUID:    2,
			ProductUID: 7,
			Quantity:   1,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/cart/store-1/t1/items",
			strings.NewReader("productUid=7&identify=itm-abc&name=Burger&price=2500&quantity=1&notes=no+onions"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Len(t, stored.Items, 2)
		assert.Equal(t, int64(2), stored.Items[1].UID)
		assert.Equal(t, "no onions", stored.Items[1].Notes)
	})

	t.Run("Add item with additionals", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/cart/store-1/t1/items",
			strings.NewReader("productUid=7&name=Burger&price=2500&quantity=1"+
				"&additionals[0].id=12&additionals[0].name=Cheese&additionals[0].price=300"+
				"&additionals[1].id=bacon-extra&additionals[1].name=Bacon&additionals[1].price=400"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Len(t, stored.Items, 1)
		assert.Len(t, stored.Items[0].Additionals, 2)
		assert.Equal(t, int64(12), stored.Items[0].Additionals[0].UID)
		// the non-numeric id maps to the same synthetic uid every time
		assert.Equal(t, ParseAdditionalUID("bacon-extra", "Bacon"), stored.Items[0].Additionals[1].UID)
		resp := decodeCartResponse(t, response)
		assert.Equal(t, int64(3200), resp.TotalPrice)
	})

	t.Run("Get cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Hour))

		// when
		request, err := http.NewRequest(http.MethodGet, "/cart/store-1/t1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := decodeCartResponse(t, response)
		assert.Equal(t, 1, resp.ItemCount)
		assert.Equal(t, int64(2500), resp.TotalPrice)
	})

	t.Run("Get cart that never existed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodGet, "/cart/store-1/t1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := decodeCartResponse(t, response)
		assert.Equal(t, 0, resp.ItemCount)
		assert.Empty(t, resp.Cart.Items)
	})

	t.Run("Get expired cart discards it", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(25 * time.Hour))
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartExpired{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodGet, "/cart/store-1/t1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		resp := decodeCartResponse(t, response)
		assert.Equal(t, 0, resp.ItemCount)
		_, exists, _ := storer.Get(ctx, "store-1_t1")
		assert.False(t, exists)
	})

	t.Run("Update item quantity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemUpdated{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
			ItemUID:  1,
			Quantity: 5,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/items/1",
			strings.NewReader("quantity=5"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Equal(t, 5, stored.Items[0].Quantity)
	})

	t.Run("Update item quantity to zero removes the line", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemRemoved{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
			ItemUID:  1,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/items/1",
			strings.NewReader("quantity=0"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Empty(t, stored.Items)
	})

	t.Run("Update item addressed by identify", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemUpdated{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
			ItemUID:  1,
			Quantity: 4,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/items/itm-abc",
			strings.NewReader("quantity=4"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Equal(t, 4, stored.Items[0].Quantity)
	})

	t.Run("Update unknown item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute))

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/items/99",
			strings.NewReader("quantity=4"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Remove item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemRemoved{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
			ItemUID:  1,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodDelete, "/cart/store-1/t1/items/1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Empty(t, stored.Items)
	})

	t.Run("Remove item that is not there is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute))

		// when
		request, err := http.NewRequest(http.MethodDelete, "/cart/store-1/t1/items/99", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Len(t, stored.Items, 1)
	})

	t.Run("Remove then add the same item keeps a single line", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(4)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemRemoved{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
			ItemUID:  1,
		}).Return(nil)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartItemAdded{
			CartUID:    "store-1_t1",
			StoreUID:   "store-1",
			TableUID:   "t1",
			ItemUID:    1,
			ProductUID: 7,
			Quantity:   5,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodDelete, "/cart/store-1/t1/items/1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		assert.Equal(t, 200, response.Code)

		request, err = http.NewRequest(http.MethodPost, "/cart/store-1/t1/items",
			strings.NewReader("productUid=7&identify=itm-abc&name=Burger&price=2500&quantity=5"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then: one line with the fresh quantity, not an accumulated leftover
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Len(t, stored.Items, 1)
		assert.Equal(t, int64(1), stored.Items[0].UID)
		assert.Equal(t, 5, stored.Items[0].Quantity)
	})

	t.Run("Clear cart keeps its context", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		existing := cartWithBurger()
		existing.DeliveryMode = DeliveryModePickup
		storer.Put(ctx, "store-1_t1", existing)
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartCleared{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodDelete, "/cart/store-1/t1", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, exists, _ := storer.Get(ctx, "store-1_t1")
		assert.True(t, exists)
		assert.Empty(t, stored.Items)
		assert.Equal(t, DeliveryModePickup, stored.DeliveryMode)
	})

	t.Run("Set context on a fresh cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartContextChanged{
			CartUID:      "store-1_t1",
			StoreUID:     "store-1",
			TableUID:     "t1",
			DeliveryMode: "pickup",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/context",
			strings.NewReader("deliveryMode=pickup"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, exists, _ := storer.Get(ctx, "store-1_t1")
		assert.True(t, exists)
		assert.Equal(t, DeliveryModePickup, stored.DeliveryMode)
	})

	t.Run("Set context again with the same mode is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _ := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute))

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/context",
			strings.NewReader("deliveryMode=table"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Equal(t, mytime.ExampleTime, stored.LastUpdated)
		assert.Len(t, stored.Items, 1)
	})

	t.Run("Context change keeps existing items", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		storer.Put(ctx, "store-1_t1", cartWithBurger())
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute)).Times(2)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartContextChanged{
			CartUID:      "store-1_t1",
			StoreUID:     "store-1",
			TableUID:     "t1",
			DeliveryMode: "delivery",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPut, "/cart/store-1/t1/context",
			strings.NewReader("deliveryMode=delivery"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Equal(t, DeliveryModeDelivery, stored.DeliveryMode)
		assert.Len(t, stored.Items, 1)
	})

	t.Run("Checkout completion empties the store's carts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		table1 := cartWithBurger()
		table2 := cartWithBurger()
		table2.UID = "store-1_t2"
		table2.TableUID = "t2"
		otherStore := cartWithBurger()
		otherStore.UID = "store-2_t1"
		otherStore.StoreUID = "store-2"
		storer.Put(ctx, table1.UID, table1)
		storer.Put(ctx, table2.UID, table2)
		storer.Put(ctx, otherStore.UID, otherStore)

		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Hour)).Times(4)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartCleared{
			CartUID:  "store-1_t1",
			StoreUID: "store-1",
			TableUID: "t1",
		}).Return(nil)
		publisher.EXPECT().Publish(gomock.Any(), cartevents.TopicName, cartevents.CartCleared{
			CartUID:  "store-1_t2",
			StoreUID: "store-1",
			TableUID: "t2",
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/cart/session/event",
			strings.NewReader(createPubsubMessage(t, sessionevents.SessionCompleted{
				SessionUID: "sess-123",
				StoreUID:   "store-1",
			})))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		cleared1, _, _ := storer.Get(ctx, "store-1_t1")
		assert.Empty(t, cleared1.Items)
		cleared2, _, _ := storer.Get(ctx, "store-1_t2")
		assert.Empty(t, cleared2.Items)
		untouched, _, _ := storer.Get(ctx, "store-2_t1")
		assert.Len(t, untouched.Items, 1)
	})

	t.Run("Cart event from a peer instance is accepted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/cart/event",
			strings.NewReader(createPubsubMessage(t, cartevents.CartItemAdded{
				CartUID:  "store-1_t1",
				StoreUID: "store-1",
				TableUID: "t1",
				ItemUID:  1,
				Quantity: 2,
			})))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
	})

	t.Run("Get cart survives a store outage", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		c := context.TODO()
		storer := mystore.NewMockStore[Cart](ctrl)
		nower := mytime.NewMockNower(ctrl)
		subscriber := mypubsub.NewMockPubSub(ctrl)
		publisher := mypublisher.NewMockPublisher(ctrl)
		sut := newService(storer, nower, mylog.New("cart"), subscriber, publisher)

		// given
		loaded := cartWithBurger()
		storer.EXPECT().Get(gomock.Any(), "store-1_t1").Return(loaded, true, nil)
		nower.EXPECT().Now().Return(mytime.ExampleTime.Add(time.Minute))

		// when: a healthy read populates the local copy
		first := sut.getCart(c, "store-1", "t1")
		assert.Len(t, first.Items, 1)

		// given: the store goes away
		storer.EXPECT().Get(gomock.Any(), "store-1_t1").Return(Cart{}, false, errors.New("datastore unavailable"))

		// when
		second := sut.getCart(c, "store-1", "t1")

		// then: the last known state is served instead of an error
		assert.Equal(t, first.Items, second.Items)
	})
}

func createPubsubMessage(t *testing.T, event myevents.Event) string {
	t.Helper()

	eventBytes, err := json.Marshal(event)
	assert.NoError(t, err)
	envelope := myevents.EventEnvelope{
		UID:           "event-123",
		CreatedAt:     mytime.ExampleTime,
		Topic:         strings.Split(event.GetEventTypeName(), ".")[0],
		AggregateUID:  event.GetAggregateName(),
		EventTypeName: event.GetEventTypeName(),
		EventPayload:  string(eventBytes),
	}
	envelopeBytes, err := json.Marshal(envelope)
	assert.NoError(t, err)

	req := myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelopeBytes,
		},
		Subscription: envelope.Topic,
	}

	reqBytes, err := json.Marshal(req)
	assert.NoError(t, err)

	return string(reqBytes)
}

func decodeCartResponse(t *testing.T, response *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	resp := cartResponse{}
	err := json.Unmarshal(response.Body.Bytes(), &resp)
	assert.NoError(t, err)
	return resp
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Cart], *mytime.MockNower, *mypubsub.MockPubSub, *mypublisher.MockPublisher) {
	c := context.TODO()
	storer, _, _ := mystore.NewInMemoryStore[Cart](c)
	nower := mytime.NewMockNower(ctrl)
	subscriber := mypubsub.NewMockPubSub(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)

	sut := NewService(storer, nower, subscriber, publisher)
	router := mux.NewRouter()

	// These are called by the following call to RegisterEndpoints()
	publisher.EXPECT().CreateTopic(c, cartevents.TopicName).Return(nil)
	subscriber.EXPECT().CreateTopic(c, cartevents.TopicName).Return(nil)
	subscriber.EXPECT().CreateTopic(c, sessionevents.TopicName).Return(nil)
	subscriber.EXPECT().Subscribe(c, cartevents.TopicName, "http://localhost:8080/api/cart/event").Return(nil)
	subscriber.EXPECT().Subscribe(c, sessionevents.TopicName, "http://localhost:8080/api/cart/session/event").Return(nil)

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, nower, subscriber, publisher
}
