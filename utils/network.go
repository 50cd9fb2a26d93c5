package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/hashicorp/go-retryablehttp"

	"gitlab.com/gfxd/gpu-mode-service/internal/config"
)

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	StatusCode     int
	Title          string
	Detail         string
	RequiredAction string
}

func (e *APIError) Error() string {
	msg := e.Title
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// InternalAPIURL builds a URL to the daemon's own REST API.
func InternalAPIURL(endpoint, query string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	url := fmt.Sprintf("http://127.0.0.1:%d%s", config.GetConfig().Rest.Port, endpoint)
	if query != "" {
		url += "?" + query
	}
	return url, nil
}

// retryOnConnectionError retries requests that never reached the daemon. Answers are never
// retried, mode changes are not idempotent from the caller's point of view.
func retryOnConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return false, nil
}

func newClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.CheckRetry = retryOnConnectionError
	client.Logger = nil
	return client
}

// ResponseBody calls the daemon and returns the response body. Non-2xx answers are returned
// as *APIError built from the problem detail in the body.
func ResponseBody(method, endpoint, query string, body []byte) ([]byte, error) {
	url, err := InternalAPIURL(endpoint, query)
	if err != nil {
		return nil, err
	}

	var reqBody interface{}
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := newClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zlog.Sugar().Debugf("%s %s answered %d", method, endpoint, resp.StatusCode)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		apiErr.Title, _ = jsonparser.GetString(respBody, "title")
		apiErr.Detail, _ = jsonparser.GetString(respBody, "detail")
		apiErr.RequiredAction, _ = jsonparser.GetString(respBody, "required_action")
		if apiErr.Title == "" {
			apiErr.Title, _ = jsonparser.GetString(respBody, "error")
		}
		return respBody, apiErr
	}

	return respBody, nil
}
