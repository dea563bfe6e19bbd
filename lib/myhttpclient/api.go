package myhttpclient

import (
	"context"
	"net/http"
)

//go:generate mockgen -source=api.go -package myhttpclient -destination sender_mock.go HTTPSender
type HTTPSender interface {
	// Send performs the request. A non-nil error means the request never
	// produced a response (transport failure); HTTP-level failures are
	// reported through the status code instead.
	Send(c context.Context, method string, url string, body []byte) (int, http.Header, []byte, error)
}
