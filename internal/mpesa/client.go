// Package mpesa is a small client for the Safaricom Daraja STK push and
// STK query APIs.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

const (
	tokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	maxErrorBody = 512
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string

	// Timeout bounds a whole gateway call, token exchange and retries included.
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Client talks to the gateway. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient fills unset retry and timeout knobs from the package defaults.
// httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultGatewayTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.GatewayMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = constants.GatewayInitialBackoff
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// Password is base64(shortcode + passkey + timestamp).
func (c *Client) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + timestamp))
}

// STKPush asks the gateway to prompt phone (2547XXXXXXXX) for amount whole
// shillings. A fresh access token is fetched for every call.
func (c *Client) STKPush(ctx context.Context, phone string, amount int64, accountRef, desc string) (*STKPushResponse, error) {
	ts := c.now().Format(constants.MpesaTimestampLayout)
	var resp STKPushResponse
	raw, err := c.post(ctx, "stk push", stkPushPath, STKPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.Password(ts),
		Timestamp:         ts,
		TransactionType:   constants.MpesaTransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   desc,
	}, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	return &resp, nil
}

// STKQuery asks the gateway for the final result of an STK push. While the
// customer has not answered the prompt the gateway replies with an error
// status, which surfaces here as a failed call.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	ts := c.now().Format(constants.MpesaTimestampLayout)
	var resp STKQueryResponse
	if _, err := c.post(ctx, "stk query", stkQueryPath, STKQueryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.Password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}, &resp); err != nil {
		return nil, err
	}
	if _, err := resp.Result(); err != nil {
		return nil, fmt.Errorf("%w: stk query: %v", utils.ErrGatewayFailure, err)
	}
	return &resp, nil
}

// post sends payload to path with a fresh access token and decodes the answer
// into out. It returns the raw body as well.
func (c *Client) post(ctx context.Context, op, path string, payload, out any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%w: %s: undecodable response: %v", utils.ErrGatewayFailure, op, err)
	}
	return raw, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, "token exchange", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil || tr.AccessToken == "" {
		return "", fmt.Errorf("%w: token exchange returned no access token", utils.ErrGatewayFailure)
	}
	return tr.AccessToken, nil
}

// do sends the request built by newReq, retrying with exponential backoff
// on transport errors, 5xx and 429. Any other non-2xx answer fails at once.
func (c *Client) do(ctx context.Context, op string, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	backoff := c.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}

		body, status, err := c.send(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", utils.ErrGatewayFailure, op, ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %s: %v", utils.ErrGatewayFailure, op, err)
		case status >= 200 && status < 300:
			return body, nil
		case status >= 500 || status == http.StatusTooManyRequests:
			lastErr = statusError(op, status, body)
		default:
			return nil, statusError(op, status, body)
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}
		utils.Logger.WithError(lastErr).Warnf("mpesa %s attempt %d/%d failed; retrying in %v", op, attempt, c.cfg.MaxAttempts, backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", utils.ErrGatewayFailure, op, ctx.Err())
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// StatusError carries a non-2xx gateway answer.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mpesa %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return utils.ErrGatewayFailure }

func statusError(op string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Op: op, Status: status, Body: string(body)}
}

// IsStatus reports whether err is a gateway answer with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
