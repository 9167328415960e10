package routes

const (
	APIBase = "/api"

	// Health
	Health = "/api/health"

	// Auth
	AuthRegister             = "/api/auth/register"
	AuthLogin                = "/api/auth/login"
	AuthRefreshToken         = "/api/auth/refresh-token"
	AuthLogout               = "/api/auth/logout"
	AuthMe                   = "/api/auth/me"
	AuthRequestPasswordReset = "/api/auth/request-password-reset"
	AuthResetPassword        = "/api/auth/reset-password/{token}"
	UsersMe                  = "/api/users/me"

	// Properties
	Properties               = "/api/properties"
	Property                 = "/api/properties/{id}"
	PropertyFloors           = "/api/properties/{id}/floors"
	PropertyFloorRooms       = "/api/properties/{id}/floors/{floorId}/rooms"
	PropertyRoom             = "/api/properties/{id}/rooms/{roomId}"
	PropertyRoomRemoveTenant = "/api/properties/{id}/rooms/{roomId}/remove-tenant"
	PropertyAssignTenant     = "/api/properties/{id}/assign-tenant"

	// Tenants & leases
	Tenants      = "/api/tenants"
	TenantsAll   = "/api/tenants/all"
	Tenant       = "/api/tenants/{id}"
	TenantLeases = "/api/leases/tenant/{tenantId}"

	// Bills
	Bills        = "/api/bills"
	BillsStats   = "/api/bills/stats"
	Bill         = "/api/bills/{id}"
	BillPayments = "/api/bills/{id}/payments"

	// Payments
	Payments      = "/api/payments"
	PaymentsStats = "/api/payments/stats"
	Payment       = "/api/payments/{id}"
	PaymentStatus = "/api/payments/{id}/status"

	// Mobile-money gateway (public)
	MpesaSTKPush  = "/api/payments/mpesa/stkpush"
	MpesaCallback = "/api/payments/mpesa/callback"

	// Messages
	Messages        = "/api/messages"
	MessagesGroup   = "/api/messages/group"
	MessageGroup    = "/api/messages/group/{propertyId}"
	MessagesDirect  = "/api/messages/direct"
	MessageDirect   = "/api/messages/direct/{userId}"
	MessageMarkRead = "/api/messages/{id}/read"

	// Complaints
	Complaints       = "/api/complaints"
	Complaint        = "/api/complaints/{id}"
	TenantComplaints = "/api/complaints/tenant/{tenantId}"

	// SMS
	SMSSend = "/api/sms/send"

	// Realtime
	WebSocket = "/api/ws"
)
