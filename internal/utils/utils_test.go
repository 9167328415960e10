package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestMSISDN(t *testing.T) {
	ok := map[string]string{
		"+254712345678":      "254712345678",
		"254712345678":       "254712345678",
		"0712345678":         "254712345678",
		"712345678":          "254712345678",
		"0110 123 456":       "254110123456",
		" +254 712 345 678 ": "254712345678",
	}
	for in, want := range ok {
		got, err := MSISDN(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "12345", "+1415555012", "07123456789", "0712abc678", "+2547123456789"} {
		_, err := MSISDN(bad)
		require.ErrorIs(t, err, ErrInvalidPhone, bad)
	}
}

func TestIsE164(t *testing.T) {
	require.True(t, IsE164("+254712345678"))
	require.True(t, IsE164("+14155550123"))
	require.False(t, IsE164("0712345678"))
	require.False(t, IsE164("+0712345678"))
	require.False(t, IsE164("+254-712-345"))
}

func TestFormatMinorUnits(t *testing.T) {
	require.Equal(t, "KES 0.00", FormatMinorUnits(0))
	require.Equal(t, "KES 0.05", FormatMinorUnits(5))
	require.Equal(t, "KES 1,234.50", FormatMinorUnits(123450))
	require.Equal(t, "KES 1,000,000.00", FormatMinorUnits(100000000))
	require.Equal(t, "KES -15.00", FormatMinorUnits(-1500))
}

func TestPasswordHashing(t *testing.T) {
	PasswordHashCost = 4
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	require.True(t, CheckPasswordHash("s3cret!", hash))
	require.False(t, CheckPasswordHash("wrong", hash))
}

func TestHashTokenIsStable(t *testing.T) {
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	require.Len(t, SecureToken(40), 40)
}

func TestHandleAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{NewValidationError("bad input", nil), http.StatusBadRequest, ErrCodeValidation},
		{NewUnauthorizedError("nope"), http.StatusUnauthorized, ErrCodeUnauthorized},
		{NewNotPermittedError("not yours"), http.StatusUnauthorized, ErrCodeNotPermitted},
		{NewNotFoundError("missing"), http.StatusNotFound, ErrCodeNotFound},
		{NewConflictError("taken", ErrPhoneExists), http.StatusConflict, ErrCodeConflict},
		{NewGatewayError("upstream", ErrGatewayFailure), http.StatusBadGateway, ErrCodeGateway},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		HandleAppError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.code, body.Code)
	}
}

func TestDevErrorsOnlyExposedWhenEnabled(t *testing.T) {
	defer func() { ExposeDevErrors = false }()

	rec := httptest.NewRecorder()
	RespondErrorWithCode(rec, http.StatusInternalServerError, ErrCodeInternal, "oops", nil, errors.New("db down"))
	require.NotContains(t, rec.Body.String(), "db down")

	ExposeDevErrors = true
	rec = httptest.NewRecorder()
	RespondErrorWithCode(rec, http.StatusInternalServerError, ErrCodeInternal, "oops", nil, errors.New("db down"))
	require.Contains(t, rec.Body.String(), "db down")
}

func TestConfigureLoggerStampsService(t *testing.T) {
	defer configureLogger(io.Discard, "kodipay", "info", "")

	var buf bytes.Buffer
	configureLogger(&buf, "kodipay", "debug", "JSON")
	require.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	Logger.WithField("billID", "b-1").Debug("bill settled")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kodipay", line["service"])
	require.Equal(t, "b-1", line["billID"])
	require.Equal(t, "bill settled", line["msg"])

	buf.Reset()
	Logger.WithField("service", "cron").Info("sweep")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "cron", line["service"])
}

func TestConfigureLoggerFallsBackToInfo(t *testing.T) {
	defer configureLogger(io.Discard, "kodipay", "info", "")

	var buf bytes.Buffer
	configureLogger(&buf, "kodipay", "loud", "")
	require.Equal(t, logrus.InfoLevel, Logger.GetLevel())
	require.Contains(t, buf.String(), "not recognised")
}
