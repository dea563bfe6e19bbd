package myratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/valter-tonon/digimenu-core/lib/mycontext"
	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/myhttp"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
)

// Middleware gates every route through the limiter. The budget is counted
// per method and route template, so all tables of /cart/{storeUID}/{tableUID}
// share one window.
//
// Paths under an exempt prefix bypass the limiter. Admission control is a
// deterrent for user traffic; task-queue triggers and pubsub pushes must
// never be throttled or event delivery stalls for the whole block period.
func Middleware(limiter *Limiter, limit int, exemptPrefixes ...string) mux.MiddlewareFunc {
	logger := mylog.New("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exemptPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			endpoint := endpointKey(r)

			decision := limiter.Decide(endpoint, limit)
			if !decision.Allowed {
				c := mycontext.ContextFromHTTPRequest(r)
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
				myhttp.NewWriter(logger).WriteError(c, w, 1, myerrors.NewRateLimitedError(endpoint, decision.RetryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func endpointKey(r *http.Request) string {
	path := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			path = tpl
		}
	}

	return fmt.Sprintf("%s %s", r.Method, path)
}
