package utils

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	lookupsv2 "github.com/twilio/twilio-go/rest/lookups/v2"
)

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`) // ITU-T E.164

// IsE164 reports basic E.164 compliance.
func IsE164(number string) bool { return e164Regex.MatchString(number) }

// ValidatePhoneNumber validates `number`.
//
//   - If validateWithTwilio is true and a Twilio client is supplied, a Lookups
//     V2 fetch is made (free basic tier).
//   - Otherwise only the E.164 shape is checked.
func ValidatePhoneNumber(
	ctx context.Context,
	number string,
	validateWithTwilio bool,
	tw *twilio.RestClient,
) (bool, error) {
	if !IsE164(number) {
		return false, nil
	}

	if validateWithTwilio && tw != nil {
		_, err := tw.LookupsV2.FetchPhoneNumber(number, &lookupsv2.FetchPhoneNumberParams{})
		if err == nil {
			return true, nil
		}
		if restErr, ok := err.(*twilioclient.TwilioRestError); ok {
			if restErr.Status == 404 {
				return false, nil
			}
			return false, fmt.Errorf("twilio lookup failed: %d %s", restErr.Status, restErr.Error())
		}
		return false, err
	}

	return true, nil
}

// IsValidEmailSyntax does RFC-5322-ish syntax only (no DNS).
func IsValidEmailSyntax(e string) bool {
	_, err := mail.ParseAddress(e)
	return err == nil
}

// MSISDN converts a Kenyan phone number in any of the common shapes
// (+2547..., 2547..., 07..., 7...) into the 2547XXXXXXXX form the
// mobile-money gateway expects.
func MSISDN(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.TrimPrefix(p, "+")
	switch {
	case strings.HasPrefix(p, "254") && len(p) == 12:
	case strings.HasPrefix(p, "0") && len(p) == 10:
		p = "254" + p[1:]
	case (strings.HasPrefix(p, "7") || strings.HasPrefix(p, "1")) && len(p) == 9:
		p = "254" + p
	default:
		return "", ErrInvalidPhone
	}
	for _, c := range p {
		if c < '0' || c > '9' {
			return "", ErrInvalidPhone
		}
	}
	return p, nil
}
