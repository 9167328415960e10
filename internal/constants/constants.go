package constants

import "time"

const (
	AppName          = "kodipay"
	OrganizationName = "KodiPay"
	TokenIssuer      = "KodiPay"

	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"
)

// Token lifetimes
const (
	DefaultAccessTokenExpiry    = 1 * time.Hour
	DefaultRefreshTokenExpiry   = 7 * 24 * time.Hour
	TestShortAccessTokenExpiry  = 5 * time.Second
	TestShortRefreshTokenExpiry = 15 * time.Second
	PasswordResetExpiry         = 1 * time.Hour
	RefreshTokenLength          = 64
	PasswordResetTokenLength    = 48
	MinJWTSecretLength          = 32
)

// Mobile-money gateway
const (
	MpesaSandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionBaseURL = "https://api.safaricom.co.ke"
	MpesaTransactionType   = "CustomerPayBillOnline"
	MpesaTimestampLayout   = "20060102150405"
	MpesaResultSuccess     = 0
	MpesaResultRejected    = 1
	DefaultGatewayTimeout  = 15 * time.Second
	GatewayMaxAttempts     = 3
	GatewayInitialBackoff  = 500 * time.Millisecond
	MpesaAcceptedResultMsg = "Accepted"
	MpesaRejectedResultMsg = "Rejected"
)

// Outbound mail/SMS
const (
	NotificationTimeout        = 10 * time.Second
	EmailSubjectPasswordReset  = "Reset your KodiPay password"
	EmailSubjectBillReminder   = "Your bill is overdue"
	SMSPasswordResetTemplate   = "KodiPay: use this code to reset your password: %s (valid for 1 hour)"
	EmailPasswordResetTemplate = "Use the link below to reset your KodiPay password. It expires in one hour.\n\n%s"
	SMSBillOverdueTemplate     = "KodiPay: your bill is overdue. Outstanding balance %s, due %s."
	CurrencyCode               = "KES"
)

// Scheduled jobs
const (
	OverdueSweepCronSpec   = "0 * * * *" // hourly
	TokenCleanupCronSpec   = "30 3 * * *"
	OverdueSweepJobTimeout = 5 * time.Minute
	TokenCleanupJobTimeout = 2 * time.Minute
)

// Realtime
const (
	RealtimeChannelPrefix = "kodipay:property:"
	WSWriteWait           = 10 * time.Second
	WSPongWait            = 60 * time.Second
	WSPingPeriod          = (WSPongWait * 9) / 10
	WSMaxMessageSize      = 64 * 1024
	WSSendBuffer          = 64
)

// Event names on the realtime channel
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventNewMessage  = "newMessage"
	EventError       = "error"
)
