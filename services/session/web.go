package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/valter-tonon/digimenu-core/lib/mycontext"
	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/myhttp"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/lib/mypublisher"
	"github.com/valter-tonon/digimenu-core/lib/mystore"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
	"github.com/valter-tonon/digimenu-core/lib/myuuid"
)

type webService struct {
	service *service
	logger  mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(store mystore.Store[CheckoutSession], nower mytime.Nower, uuider myuuid.UUIDer, publisher mypublisher.Publisher) *webService {
	logger := mylog.New("session")
	return &webService{
		service: newService(store, nower, uuider, logger, publisher),
		logger:  logger,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.CreateTopics(c)
	if err != nil {
		return err
	}

	router.HandleFunc("/session/{storeUID}", s.createSessionPage()).Methods("POST")
	router.HandleFunc("/session/{storeUID}", s.getSessionPage()).Methods("GET")
	router.HandleFunc("/session/{storeUID}", s.clearSessionPage()).Methods("DELETE")
	router.HandleFunc("/session/{storeUID}/step/{step}", s.setStepPage()).Methods("PUT")
	router.HandleFunc("/session/{storeUID}/authentication", s.authenticatePage()).Methods("PUT")
	router.HandleFunc("/session/{storeUID}/extend", s.extendSessionPage()).Methods("PUT")
	router.HandleFunc("/session/{storeUID}/complete", s.completeCheckoutPage()).Methods("POST")

	return nil
}

type sessionResponse struct {
	Session  CheckoutSession
	Progress int
}

func newSessionResponse(session CheckoutSession) sessionResponse {
	return sessionResponse{
		Session:  session,
		Progress: session.ProgressPercentage(),
	}
}

func (s *webService) createSessionPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]

		session, err := s.service.createSession(c, storeUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newSessionResponse(session))
	}
}

func (s *webService) getSessionPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]

		session, found, err := s.service.getCurrentSession(c, storeUID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		if !found {
			errorWriter.WriteError(c, w, 3, myerrors.NewNotFoundError(fmt.Errorf("no active checkout session for store %s", storeUID)))
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newSessionResponse(session))
	}
}

func (s *webService) setStepPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]
		step := Step(mux.Vars(r)["step"])

		session, err := s.service.setCurrentStep(c, storeUID, step)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newSessionResponse(session))
	}
}

func (s *webService) authenticatePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]

		form, err := NewAuthenticationFormFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 5, err)
			return
		}

		session, err := s.service.setCustomerAuthentication(c, storeUID, form)
		if err != nil {
			errorWriter.WriteError(c, w, 6, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newSessionResponse(session))
	}
}

func (s *webService) extendSessionPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]

		session, err := s.service.extendSession(c, storeUID)
		if err != nil {
			errorWriter.WriteError(c, w, 7, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, newSessionResponse(session))
	}
}

func (s *webService) completeCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]

		err := s.service.completeCheckout(c, storeUID)
		if err != nil {
			errorWriter.WriteError(c, w, 8, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Checkout completed",
		})
	}
}

func (s *webService) clearSessionPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		storeUID := mux.Vars(r)["storeUID"]

		err := s.service.clearSession(c, storeUID)
		if err != nil {
			errorWriter.WriteError(c, w, 9, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Session cleared",
		})
	}
}
