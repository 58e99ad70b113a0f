package board

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// LeanKit reply codes. The API wraps every response in an envelope with a
// numeric ReplyCode; HTTP status alone does not signal success.
const (
	replyNoData           = 100
	replyRetrievalSuccess = 200
	replyInsertSuccess    = 201
	replyUpdateSuccess    = 202
	replyDeleteSuccess    = 203
	replySystemException  = 500
	replyThrottleWait     = 800
	replyUnauthorized     = 1000
)

func replySuccess(code int) bool {
	switch code {
	case replyRetrievalSuccess, replyInsertSuccess, replyUpdateSuccess, replyDeleteSuccess:
		return true
	}
	return false
}

// lkEnvelope is the wire envelope of every LeanKit API response.
type lkEnvelope struct {
	ReplyCode int               `json:"ReplyCode"`
	ReplyText string            `json:"ReplyText"`
	ReplyData []json.RawMessage `json:"ReplyData"`
}

// lkConnector issues LeanKit API calls and normalises the envelope's
// reply codes into the uniform error classification: throttle waits are
// retryable, everything else non-success is a rejection.
type lkConnector struct {
	transport *transport
}

func newLKConnector(account, email, password string, rps float64) *lkConnector {
	base := "https://" + account + ".leankitkanban.com/Kanban/Api"
	t := newTransport("leankit", base, rps)
	basic := base64.StdEncoding.EncodeToString([]byte(email + ":" + password))
	t.setHeader("Authorization", "Basic "+basic)
	return &lkConnector{transport: t}
}

// get performs a GET and unwraps the envelope.
func (c *lkConnector) get(ctx context.Context, url string) (*lkEnvelope, error) {
	data, status, err := c.transport.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.unwrap(data, status, url)
}

// post performs a POST and unwraps the envelope.
func (c *lkConnector) post(ctx context.Context, url string, body any) (*lkEnvelope, error) {
	data, status, err := c.transport.send(ctx, "POST", url, body)
	if err != nil {
		return nil, err
	}
	return c.unwrap(data, status, url)
}

func (c *lkConnector) unwrap(data []byte, status int, url string) (*lkEnvelope, error) {
	if err := c.transport.checkStatus(status, url); err != nil {
		return nil, err
	}

	var envelope lkEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding leankit envelope for %s: %w", url, err)
	}

	if !replySuccess(envelope.ReplyCode) {
		if envelope.ReplyCode == replyThrottleWait {
			return nil, &RemoteUnavailableError{
				Backend: "leankit",
				Err:     fmt.Errorf("throttled: %s", envelope.ReplyText),
			}
		}
		return nil, &RemoteRejectedError{
			Backend: "leankit",
			Status:  envelope.ReplyCode,
			Detail:  envelope.ReplyText,
		}
	}
	return &envelope, nil
}

// first decodes the first ReplyData element into dst.
func (e *lkEnvelope) first(dst any) error {
	if len(e.ReplyData) == 0 {
		return fmt.Errorf("leankit reply has no data (code %d)", e.ReplyCode)
	}
	return json.Unmarshal(e.ReplyData[0], dst)
}
