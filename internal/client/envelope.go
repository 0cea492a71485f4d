package client

import (
	"encoding/json"
	"fmt"
)

// Envelope codes. Only CodeFailure signals a declared failure; any other code
// is success.
const (
	CodeFailure = 0
	CodeSuccess = 1
)

// Envelope is the {code, msg, data} wrapper around every API response
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`

	// Status is the HTTP status the envelope arrived with
	Status int `json:"-"`
}

// Failed reports whether the backend declared a failure
func (e *Envelope) Failed() bool {
	return e.Code == CodeFailure
}

// Decode unmarshals data into v. A missing or null payload leaves v untouched.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode response data failed: %w", err)
	}
	return nil
}

// APIError is a failure the backend declared through the envelope
type APIError struct {
	Code   int
	Msg    string
	Status int
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	return e.Msg
}

// HTTPError is a response whose body is not an envelope
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("unexpected response (status %d): %s", e.Status, body)
}
