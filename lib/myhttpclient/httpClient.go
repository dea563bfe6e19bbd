package myhttpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	timeout = 5 * time.Second
)

type jsonHTTPClient struct {
	client *http.Client
}

func NewJSONHTTPClient() HTTPSender {
	return &jsonHTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c jsonHTTPClient) Send(ctx context.Context, method string, url string, body []byte) (int, http.Header, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("error creating http request for %s %s: %s", method, url, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("error sending %s %s: %w", method, url, err)
	}

	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("error reading response of %s %s: %w", method, url, err)
	}

	return httpResp.StatusCode, httpResp.Header, respBody, nil
}

// IsTransportError reports whether the request failed without ever getting a
// response (connection drop, timeout). Only those failures are worth a replay.
func IsTransportError(err error) bool {
	var urlError *url.Error
	if errors.As(err, &urlError) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
