package cart

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/valter-tonon/digimenu-core/lib/mycontext"
	"github.com/valter-tonon/digimenu-core/lib/myhttp"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/lib/mypublisher"
	"github.com/valter-tonon/digimenu-core/lib/mypubsub"
	"github.com/valter-tonon/digimenu-core/lib/mystore"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
	"github.com/valter-tonon/digimenu-core/services/cart/cartevents"
	"github.com/valter-tonon/digimenu-core/services/session/sessionevents"
)

type webService struct {
	service *service
	logger  mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(store mystore.Store[Cart], nower mytime.Nower, subscriber mypubsub.PubSub, publisher mypublisher.Publisher) *webService {
	logger := mylog.New("cart")
	return &webService{
		service: newService(store, nower, logger, subscriber, publisher),
		logger:  logger,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.CreateTopics(c)
	if err != nil {
		return err
	}

	err = s.service.Subscribe(c)
	if err != nil {
		return err
	}

	router.HandleFunc("/cart/{storeUID}/{tableUID}", s.getCartPage()).Methods("GET")
	router.HandleFunc("/cart/{storeUID}/{tableUID}", s.clearCartPage()).Methods("DELETE")
	router.HandleFunc("/cart/{storeUID}/{tableUID}/context", s.setContextPage()).Methods("PUT")
	router.HandleFunc("/cart/{storeUID}/{tableUID}/items", s.addItemPage()).Methods("POST")
	router.HandleFunc("/cart/{storeUID}/{tableUID}/items/{itemRef}", s.updateItemPage()).Methods("PUT")
	router.HandleFunc("/cart/{storeUID}/{tableUID}/items/{itemRef}", s.removeItemPage()).Methods("DELETE")

	// pubsub pushes end up here
	router.HandleFunc("/api/cart/event", s.cartEventPage()).Methods("POST")
	router.HandleFunc("/api/cart/session/event", s.sessionEventPage()).Methods("POST")

	return nil
}

type cartResponse struct {
	Cart       Cart
	TotalPrice int64
	ItemCount  int
}

func newCartResponse(cart Cart) cartResponse {
	return cartResponse{
		Cart:       cart,
		TotalPrice: cart.TotalPrice(),
		ItemCount:  cart.ItemCount(),
	}
}

func (s *webService) getCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		tableUID := mux.Vars(r)["tableUID"]

		cart := s.service.getCart(c, storeUID, tableUID)

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(cart))
	}
}

func (s *webService) setContextPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		tableUID := mux.Vars(r)["tableUID"]

		form, err := NewContextFormFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		cart, err := s.service.setContext(c, storeUID, tableUID, form.DeliveryMode)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(cart))
	}
}

func (s *webService) addItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		tableUID := mux.Vars(r)["tableUID"]

		form, err := NewItemFormFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		cart, err := s.service.addItem(c, storeUID, tableUID, form.toItem())
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(cart))
	}
}

func (s *webService) updateItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		tableUID := mux.Vars(r)["tableUID"]
		itemRef := mux.Vars(r)["itemRef"]

		form, err := NewUpdateFormFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 5, err)
			return
		}

		cart, err := s.service.updateItem(c, storeUID, tableUID, itemRef, form)
		if err != nil {
			errorWriter.WriteError(c, w, 6, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(cart))
	}
}

func (s *webService) removeItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		tableUID := mux.Vars(r)["tableUID"]
		itemRef := mux.Vars(r)["itemRef"]

		cart, err := s.service.removeItem(c, storeUID, tableUID, itemRef)
		if err != nil {
			errorWriter.WriteError(c, w, 7, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(cart))
	}
}

func (s *webService) clearCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		tableUID := mux.Vars(r)["tableUID"]

		cart, err := s.service.clearCart(c, storeUID, tableUID)
		if err != nil {
			errorWriter.WriteError(c, w, 8, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newCartResponse(cart))
	}
}

func (s *webService) cartEventPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := cartevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 9, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed cart event",
		})
	}
}

func (s *webService) sessionEventPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		err := sessionevents.DispatchEvent(c, r.Body, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 10, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed session event",
		})
	}
}
