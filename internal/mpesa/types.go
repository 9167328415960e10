package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// STKPushRequest is the request body of the Lipa na M-Pesa Online API.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the synchronous initiation answer. Raw keeps the body
// exactly as the gateway sent it.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	Raw json.RawMessage `json:"-"`
}

type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the gateway's record of an STK push. ResultCode comes
// back as a string on some deployments and a number on others.
type STKQueryResponse struct {
	ResponseCode        string          `json:"ResponseCode"`
	ResponseDescription string          `json:"ResponseDescription"`
	MerchantRequestID   string          `json:"MerchantRequestID"`
	CheckoutRequestID   string          `json:"CheckoutRequestID"`
	ResultCode          json.RawMessage `json:"ResultCode"`
	ResultDesc          string          `json:"ResultDesc"`
}

// Result decodes ResultCode.
func (r *STKQueryResponse) Result() (int, error) {
	if len(r.ResultCode) == 0 {
		return 0, fmt.Errorf("query response has no ResultCode")
	}
	var s string
	if err := json.Unmarshal(r.ResultCode, &s); err == nil {
		return strconv.Atoi(s)
	}
	var n int
	if err := json.Unmarshal(r.ResultCode, &n); err != nil {
		return 0, fmt.Errorf("query ResultCode %s: %w", r.ResultCode, err)
	}
	return n, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// ----------------------
// Callback payload
// ----------------------

type CallbackPayload struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values arrive as JSON numbers or strings depending on the
// item, so Value is kept raw.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Item returns the metadata value named name rendered as a string.
func (c *STKCallback) Item(name string) (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, it := range c.CallbackMetadata.Item {
		if it.Name != name || len(it.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(it.Value, &s); err == nil {
			return s, true
		}
		var n json.Number
		if err := json.Unmarshal(it.Value, &n); err == nil {
			return n.String(), true
		}
	}
	return "", false
}

// ReceiptNumber is the M-Pesa transaction id of a successful payment.
func (c *STKCallback) ReceiptNumber() (string, bool) { return c.Item("MpesaReceiptNumber") }

// AmountMinorUnits converts the paid amount (whole shillings) to minor units.
func (c *STKCallback) AmountMinorUnits() (int64, error) {
	v, ok := c.Item("Amount")
	if !ok {
		return 0, fmt.Errorf("callback has no Amount item")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return int64(f*100 + 0.5), nil
}

// CallbackAck is the body the gateway expects in reply to a callback.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
