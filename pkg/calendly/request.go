package calendly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// request executes one logical API request with exponential-backoff
// retries. Timeouts, connection failures and 5xx responses are retried
// up to MaxRetries attempts, sleeping InitialBackoff * 2^(attempt-1)
// after each failed attempt. 4xx responses are surfaced immediately.
// After exhaustion the returned *APIError wraps ErrRetryExhausted and
// carries the last known status code.
func (c *Client) request(ctx context.Context, operation, method, path string, params map[string]string, body any) ([]byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		data, err := c.attempt(ctx, method, path, params, body)
		if err == nil {
			requestsTotal.WithLabelValues(operation, "success").Inc()
			if attempt > 1 {
				c.logger.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return data, nil
		}

		class := classOf(err)
		errorsTotal.WithLabelValues(string(class)).Inc()

		if !retryable(err) {
			requestsTotal.WithLabelValues(operation, strconv.Itoa(statusOf(err))).Inc()
			return nil, err
		}

		lastErr = err
		backoff := c.config.InitialBackoff * (1 << (attempt - 1))
		retriesTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", c.config.MaxRetries).
			Dur("backoff", backoff).
			Str("error_class", string(class)).
			Msg("Calendly API attempt failed, backing off")
		c.sleep(backoff)
	}

	class := classOf(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	status := statusOf(lastErr)
	if status > 0 {
		requestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	} else {
		requestsTotal.WithLabelValues(operation, "network_error").Inc()
	}

	return nil, &APIError{
		StatusCode: status,
		Class:      class,
		Message:    fmt.Sprintf("request failed after %d attempts", c.config.MaxRetries),
		Err:        fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr),
	}
}

// attempt performs a single HTTP call with the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, method, path string, params map[string]string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	endpoint := c.config.BaseURL + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{
				Class:   ErrorClassClient,
				Message: "encode request body",
				Err:     err,
			}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &APIError{
			Class:   ErrorClassClient,
			Message: "create request",
			Err:     err,
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Class:   ErrorClassNetwork,
			Message: "connection failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Class:   ErrorClassNetwork,
			Message: "read response body",
			Err:     err,
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassServer,
			Message:    truncate(string(data), 200),
		}
	case resp.StatusCode >= 400:
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassClient,
			Message:    truncate(string(data), 200),
		}
	}

	return data, nil
}

// truncate limits error bodies to a readable length.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
