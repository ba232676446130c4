package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

const userAgent = "reminder-scheduler/1.0"

// HTTPSMSTransport posts form-encoded messages to an SMS gateway with basic
// auth. Any non-2xx response is a failure.
type HTTPSMSTransport struct {
	client *retryablehttp.Client

	endpoint string
	from     string
	username string
	password string
}

func NewHTTPSMSTransport(endpoint, from, username, password string, log logrus.FieldLogger) *HTTPSMSTransport {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.CheckRetry = retryUnreachable
	client.Logger = log

	return &HTTPSMSTransport{
		client:   client,
		endpoint: endpoint,
		from:     from,
		username: username,
		password: password,
	}
}

// retryUnreachable retries only when the gateway could not be dialed. Once a
// POST got through the gateway may have queued the message, so a 5xx or a
// timeout fails the delivery rather than risking a second SMS.
func retryUnreachable(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if err != nil && errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

func (t *HTTPSMSTransport) Send(ctx context.Context, msg model.SMSMessage) error {
	body := url.Values{
		"from":    {t.from},
		"to":      {msg.To},
		"message": {msg.Body},
	}.Encode()

	req, err := retryablehttp.NewRequest(http.MethodPost, t.endpoint, bytes.NewReader([]byte(body)))
	if err != nil {
		return err
	}

	req = req.WithContext(ctx)
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 || resp.StatusCode <= 199 {
		return errors.Errorf("unexpected response code %d from sms gateway", resp.StatusCode)
	}
	return nil
}
