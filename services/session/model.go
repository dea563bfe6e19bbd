package session

import (
	"fmt"
	"net/http"
	"time"

	formcodec "github.com/go-playground/form/v4"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
)

// Step is one stage of the checkout flow. The order below is the canonical
// one; Tracking sits outside the flow and is only reached after the order has
// been placed.
type Step string

const (
	StepAuthentication Step = "authentication"
	StepCustomerData   Step = "customer_data"
	StepAddress        Step = "address"
	StepPayment        Step = "payment"
	StepConfirmation   Step = "confirmation"
	StepTracking       Step = "tracking"
)

var checkoutSteps = []Step{
	StepAuthentication,
	StepCustomerData,
	StepAddress,
	StepPayment,
	StepConfirmation,
}

func (s Step) Index() int {
	for i, step := range checkoutSteps {
		if step == s {
			return i
		}
	}
	return -1
}

func (s Step) IsValid() bool {
	return s == StepTracking || s.Index() >= 0
}

type AuthenticationMethod string

const (
	AuthMethodPhone           AuthenticationMethod = "phone"
	AuthMethodGuest           AuthenticationMethod = "guest"
	AuthMethodExistingAccount AuthenticationMethod = "existing_account"
	AuthMethodNewAccount      AuthenticationMethod = "new_account"
)

type CustomerData struct {
	Name  string `form:"name"`
	Phone string `form:"phone"`
	Email string `form:"email"`
}

// CheckoutSession is the per-store checkout state. A session read after its
// expiry is treated as non-existent; expiry is enforced lazily on read.
type CheckoutSession struct {
	UID                  string
	StoreUID             string
	CustomerUID          string
	IsAuthenticated      bool
	IsGuest              bool
	AuthenticationMethod AuthenticationMethod
	Customer             *CustomerData
	CurrentStep          Step
	StartedAt            time.Time
	LastActivity         time.Time
	ExpiresAt            time.Time
}

func (s CheckoutSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ProgressPercentage positions the session within the five checkout steps.
// Tracking is past the flow and always reports 100.
func (s CheckoutSession) ProgressPercentage() int {
	if s.CurrentStep == StepTracking {
		return 100
	}

	index := s.CurrentStep.Index()
	if index < 0 {
		return 0
	}

	return (index + 1) * 100 / len(checkoutSteps)
}

// NextStepAfterAuthentication is the only place the flow may jump more than
// one step: a guest still owes customer data, an authenticated customer goes
// straight to the address.
func NextStepAfterAuthentication(isAuthenticated bool, isGuest bool) Step {
	if isGuest {
		return StepCustomerData
	}
	if isAuthenticated {
		return StepAddress
	}
	return StepAuthentication
}

// AuthenticationForm is what the checkout UI posts when the customer
// identifies themselves.
type AuthenticationForm struct {
	Customer    CustomerData         `form:"customer"`
	CustomerUID string               `form:"customerUid"`
	IsGuest     bool                 `form:"isGuest"`
	Method      AuthenticationMethod `form:"method"`
}

func NewAuthenticationFormFromRequest(r *http.Request) (AuthenticationForm, error) {
	err := r.ParseForm()
	if err != nil {
		return AuthenticationForm{}, myerrors.NewInvalidInputError(err)
	}

	form := AuthenticationForm{}
	err = formcodec.NewDecoder().Decode(&form, r.Form)
	if err != nil {
		return AuthenticationForm{}, myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}

	return form, nil
}
