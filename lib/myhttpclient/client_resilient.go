package myhttpclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/valter-tonon/digimenu-core/lib/myerrors"
	"github.com/valter-tonon/digimenu-core/lib/mylog"
	"github.com/valter-tonon/digimenu-core/lib/myratelimit"
	"github.com/valter-tonon/digimenu-core/lib/myretry"
	"github.com/valter-tonon/digimenu-core/lib/mytime"
)

const (
	defaultRetryAfter = 5 * time.Minute
)

// resilientSender wraps a plain sender with local admission control and
// transport-level retries:
//   - the limiter gates the call before it is attempted;
//   - only no-response failures are replayed (exponential backoff); responses
//     carrying an HTTP status are surfaced as-is, whatever the status;
//   - a 429 re-arms the local limiter until the server's Retry-After deadline
//     instead of trusting the local window arithmetic.
type resilientSender struct {
	sender  HTTPSender
	limiter *myratelimit.Limiter
	limit   int
	policy  myretry.Policy
	nower   mytime.Nower
	logger  mylog.Logger
}

// TransportPolicy is the retry rule for network calls: 3 replays, starting at
// one second, transport failures only.
func TransportPolicy() myretry.Policy {
	return myretry.NewPolicy(myretry.DefaultMaxRetries, myretry.DefaultBaseDelay, IsTransportError)
}

func NewResilientSender(sender HTTPSender, limiter *myratelimit.Limiter, limit int, policy myretry.Policy, nower mytime.Nower) HTTPSender {
	return &resilientSender{
		sender:  sender,
		limiter: limiter,
		limit:   limit,
		policy:  policy,
		nower:   nower,
		logger:  mylog.New("httpclient"),
	}
}

func (s *resilientSender) Send(c context.Context, method string, requestURL string, body []byte) (int, http.Header, []byte, error) {
	endpoint := endpointKey(method, requestURL)

	decision := s.limiter.Decide(endpoint, s.limit)
	if !decision.Allowed {
		s.logger.Log(c, endpoint, mylog.SeverityWarn, "Locally rate limited, retry after %s", decision.RetryAfter)
		return 0, nil, nil, myerrors.NewRateLimitedError(endpoint, decision.RetryAfter)
	}

	var status int
	var headers http.Header
	var respBody []byte

	err := s.policy.Do(c, func(c context.Context) error {
		var sendErr error
		status, headers, respBody, sendErr = s.sender.Send(c, method, requestURL, body)
		return sendErr
	})
	if err != nil {
		// retries exhausted or not retryable: propagate unchanged
		return 0, nil, nil, err
	}

	if status == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(headers)
		s.limiter.ExhaustUntil(endpoint, s.nower.Now().Add(retryAfter))
		s.logger.Log(c, endpoint, mylog.SeverityWarn, "Server rate limited, local window exhausted for %s", retryAfter)
	}

	return status, headers, respBody, nil
}

// endpointKey reduces a request to its logical endpoint: method plus path,
// without query parameters.
func endpointKey(method string, requestURL string) string {
	u, err := url.Parse(requestURL)
	if err != nil {
		return method + " " + requestURL
	}
	return method + " " + u.Path
}

func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return defaultRetryAfter
	}

	seconds, err := strconv.Atoi(value)
	if err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	when, err := http.ParseTime(value)
	if err == nil {
		d := time.Until(when)
		// a deadline in the past would disarm ExhaustUntil entirely
		if d <= 0 {
			return defaultRetryAfter
		}
		return d
	}

	return defaultRetryAfter
}
