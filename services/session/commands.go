package session

import (
	"context"
	"fmt"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/services/session/sessionevents"
)

// createSession starts a fresh checkout for the store. An earlier session for
// the same store is overwritten.
func (s *service) createSession(c context.Context, storeUID string) (CheckoutSession, error) {
	sessionUID := s.uuider.Create()
	now := s.nower.Now()

	session := CheckoutSession{
		UID:          sessionUID,
		StoreUID:     storeUID,
		CurrentStep:  StepAuthentication,
		StartedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(sessionDuration),
	}

	s.logger.Log(c, sessionUID, mylog.SeverityInfo, "Creating checkout session %s for store %s", sessionUID, storeUID)

	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		err := s.sessionStore.Put(c, storeUID, session)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, sessionevents.TopicName, sessionevents.SessionCreated{
			SessionUID: sessionUID,
			StoreUID:   storeUID,
		})
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

// getCurrentSession reads the store's session. Expiry is enforced here, on
// read: an expired record is discarded and reported as absent. A failing or
// corrupt substrate also reads as absent; checkout restarts, it never crashes.
func (s *service) getCurrentSession(c context.Context, storeUID string) (CheckoutSession, bool, error) {
	session, found, err := s.sessionStore.Get(c, storeUID)
	if err != nil {
		s.logger.Log(c, storeUID, mylog.SeverityWarn, "Session store unreadable for store %s, clearing and treating as absent: %s", storeUID, err)

		// clear the record so the next checkout starts from scratch
		err = s.sessionStore.Delete(c, storeUID)
		if err != nil {
			s.logger.Log(c, storeUID, mylog.SeverityWarn, "Error clearing unreadable session for store %s: %s", storeUID, err)
		}

		return CheckoutSession{}, false, nil
	}
	if !found {
		return CheckoutSession{}, false, nil
	}

	if session.IsExpired(s.nower.Now()) {
		s.logger.Log(c, session.UID, mylog.SeverityInfo, "Session %s for store %s expired, discarding", session.UID, storeUID)

		err = s.sessionStore.RunInTransaction(c, func(c context.Context) error {
			err := s.sessionStore.Delete(c, storeUID)
			if err != nil {
				return myerrors.NewInternalError(err)
			}

			return s.publisher.Publish(c, sessionevents.TopicName, sessionevents.SessionExpired{
				SessionUID: session.UID,
				StoreUID:   storeUID,
			})
		})
		if err != nil {
			return CheckoutSession{}, false, err
		}

		return CheckoutSession{}, false, nil
	}

	return session, true, nil
}

// setCurrentStep moves the checkout to the given step. Setting the step it is
// already on returns the session unchanged without touching the store.
func (s *service) setCurrentStep(c context.Context, storeUID string, step Step) (CheckoutSession, error) {
	if !step.IsValid() {
		return CheckoutSession{}, myerrors.NewInvalidInputErrorf("unknown checkout step %s", step)
	}

	var session CheckoutSession
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var err error
		session, err = s.getValidSession(c, storeUID)
		if err != nil {
			return err
		}

		if session.CurrentStep == step {
			return nil
		}

		previous := session.CurrentStep
		session.CurrentStep = step
		session.LastActivity = s.nower.Now()

		err = s.sessionStore.Put(c, storeUID, session)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, sessionevents.TopicName, sessionevents.SessionStepChanged{
			SessionUID:   session.UID,
			StoreUID:     storeUID,
			PreviousStep: string(previous),
			CurrentStep:  string(step),
		})
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

// setCustomerAuthentication records who is checking out and advances the
// flow: guests still owe their customer data, authenticated customers jump to
// the address step.
func (s *service) setCustomerAuthentication(c context.Context, storeUID string, form AuthenticationForm) (CheckoutSession, error) {
	var session CheckoutSession
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var err error
		session, err = s.getValidSession(c, storeUID)
		if err != nil {
			return err
		}

		now := s.nower.Now()
		customer := form.Customer

		session.IsGuest = form.IsGuest
		session.IsAuthenticated = !form.IsGuest
		session.AuthenticationMethod = form.Method
		session.CustomerUID = form.CustomerUID
		session.Customer = &customer
		session.CurrentStep = NextStepAfterAuthentication(session.IsAuthenticated, session.IsGuest)
		session.LastActivity = now

		err = s.sessionStore.Put(c, storeUID, session)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, sessionevents.TopicName, sessionevents.SessionAuthenticated{
			SessionUID: session.UID,
			StoreUID:   storeUID,
			Method:     string(form.Method),
			IsGuest:    form.IsGuest,
		})
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

// extendSession slides the expiry forward on user activity so an active
// checkout does not die mid-flight.
func (s *service) extendSession(c context.Context, storeUID string) (CheckoutSession, error) {
	var session CheckoutSession
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var err error
		session, err = s.getValidSession(c, storeUID)
		if err != nil {
			return err
		}

		now := s.nower.Now()
		session.LastActivity = now
		session.ExpiresAt = now.Add(sessionDuration)

		err = s.sessionStore.Put(c, storeUID, session)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

// completeCheckout discards the session after the order has been placed and
// tells the rest of the system about it.
func (s *service) completeCheckout(c context.Context, storeUID string) error {
	return s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		session, err := s.getValidSession(c, storeUID)
		if err != nil {
			return err
		}

		err = s.sessionStore.Delete(c, storeUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		s.logger.Log(c, session.UID, mylog.SeverityInfo, "Checkout %s completed for store %s", session.UID, storeUID)

		return s.publisher.Publish(c, sessionevents.TopicName, sessionevents.SessionCompleted{
			SessionUID: session.UID,
			StoreUID:   storeUID,
		})
	})
}

// clearSession discards the session without completing it.
func (s *service) clearSession(c context.Context, storeUID string) error {
	return s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		session, found, err := s.sessionStore.Get(c, storeUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return nil
		}

		err = s.sessionStore.Delete(c, storeUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.publisher.Publish(c, sessionevents.TopicName, sessionevents.SessionCleared{
			SessionUID: session.UID,
			StoreUID:   storeUID,
		})
	})
}

func (s *service) getValidSession(c context.Context, storeUID string) (CheckoutSession, error) {
	session, found, err := s.sessionStore.Get(c, storeUID)
	if err != nil {
		// same contract as the read path: unreadable means absent
		s.logger.Log(c, storeUID, mylog.SeverityWarn, "Session store unreadable for store %s, treating as absent: %s", storeUID, err)
		found = false
	}
	if !found || session.IsExpired(s.nower.Now()) {
		return CheckoutSession{}, myerrors.NewNotFoundError(fmt.Errorf("no active checkout session for store %s", storeUID))
	}

	return session, nil
}
