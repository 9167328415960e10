package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ndunguuu01/kodipay/internal/controllers"
	"github.com/Ndunguuu01/kodipay/internal/middleware"
	"github.com/Ndunguuu01/kodipay/internal/models"
)

// Controllers bundles the handlers the router mounts. Message and Realtime
// may be nil when their backing stores are not configured.
type Controllers struct {
	Auth      *controllers.AuthController
	Property  *controllers.PropertyController
	Tenant    *controllers.TenantController
	Bill      *controllers.BillController
	Payment   *controllers.PaymentController
	Message   *controllers.MessageController
	Complaint *controllers.ComplaintController
	SMS       *controllers.SMSController
	Health    *controllers.HealthController
	Realtime  *controllers.RealtimeController
}

// NewRouter wires every endpoint. Literal paths are registered before the
// {id} patterns that would otherwise swallow them.
func NewRouter(c Controllers, jwtSecret []byte) *mux.Router {
	router := mux.NewRouter()

	//----------------------------------------------------------------------
	// Public
	//----------------------------------------------------------------------
	router.HandleFunc(Health, c.Health.HealthCheckHandler).Methods(http.MethodGet)

	router.HandleFunc(AuthRegister, c.Auth.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc(AuthLogin, c.Auth.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc(AuthRefreshToken, c.Auth.RefreshTokenHandler).Methods(http.MethodPost)
	router.HandleFunc(AuthLogout, c.Auth.LogoutHandler).Methods(http.MethodPost)
	router.HandleFunc(AuthRequestPasswordReset, c.Auth.RequestPasswordResetHandler).Methods(http.MethodPost)
	router.HandleFunc(AuthResetPassword, c.Auth.ResetPasswordHandler).Methods(http.MethodPut)

	router.HandleFunc(MpesaSTKPush, c.Payment.STKPushHandler).Methods(http.MethodPost)
	router.HandleFunc(MpesaCallback, c.Payment.MpesaCallbackHandler).Methods(http.MethodPost)

	if c.Realtime != nil {
		router.HandleFunc(WebSocket, c.Realtime.WebSocketHandler).Methods(http.MethodGet)
	}

	//----------------------------------------------------------------------
	// Authenticated
	//----------------------------------------------------------------------
	protected := router.PathPrefix(APIBase).Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))

	// Landlord (and admin) only
	managers := protected.NewRoute().Subrouter()
	managers.Use(middleware.RequireRoles(models.RoleLandlord, models.RoleAdmin))

	protected.HandleFunc(AuthMe, c.Auth.MeHandler).Methods(http.MethodGet)
	protected.HandleFunc(UsersMe, c.Auth.MeHandler).Methods(http.MethodGet)

	// Properties
	managers.HandleFunc(Properties, c.Property.CreatePropertyHandler).Methods(http.MethodPost)
	protected.HandleFunc(Properties, c.Property.ListPropertiesHandler).Methods(http.MethodGet)
	protected.HandleFunc(Property, c.Property.GetPropertyHandler).Methods(http.MethodGet)
	managers.HandleFunc(Property, c.Property.UpdatePropertyHandler).Methods(http.MethodPut)
	managers.HandleFunc(Property, c.Property.DeletePropertyHandler).Methods(http.MethodDelete)
	managers.HandleFunc(PropertyFloors, c.Property.AddFloorHandler).Methods(http.MethodPost)
	managers.HandleFunc(PropertyFloorRooms, c.Property.AddRoomHandler).Methods(http.MethodPost)
	protected.HandleFunc(PropertyRoomRemoveTenant, c.Property.RemoveTenantHandler).Methods(http.MethodPut)
	managers.HandleFunc(PropertyRoom, c.Property.UpdateRoomHandler).Methods(http.MethodPut)
	managers.HandleFunc(PropertyRoom, c.Property.DeleteRoomHandler).Methods(http.MethodDelete)
	managers.HandleFunc(PropertyAssignTenant, c.Property.AssignTenantHandler).Methods(http.MethodPut)

	// Tenants & leases
	managers.HandleFunc(Tenants, c.Tenant.CreateTenantHandler).Methods(http.MethodPost)
	managers.HandleFunc(Tenants, c.Tenant.ListTenantsHandler).Methods(http.MethodGet)
	managers.HandleFunc(TenantsAll, c.Tenant.DeleteAllTenantsHandler).Methods(http.MethodDelete)
	protected.HandleFunc(Tenant, c.Tenant.GetTenantHandler).Methods(http.MethodGet)
	managers.HandleFunc(Tenant, c.Tenant.UpdateTenantHandler).Methods(http.MethodPut)
	managers.HandleFunc(Tenant, c.Tenant.DeleteTenantHandler).Methods(http.MethodDelete)
	protected.HandleFunc(TenantLeases, c.Tenant.ListLeasesHandler).Methods(http.MethodGet)

	// Bills
	managers.HandleFunc(Bills, c.Bill.CreateBillHandler).Methods(http.MethodPost)
	protected.HandleFunc(Bills, c.Bill.ListBillsHandler).Methods(http.MethodGet)
	protected.HandleFunc(BillsStats, c.Bill.BillStatsHandler).Methods(http.MethodGet)
	protected.HandleFunc(Bill, c.Bill.GetBillHandler).Methods(http.MethodGet)
	protected.HandleFunc(Bill, c.Bill.UpdateBillHandler).Methods(http.MethodPut)
	protected.HandleFunc(Bill, c.Bill.DeleteBillHandler).Methods(http.MethodDelete)
	protected.HandleFunc(BillPayments, c.Bill.RecordPaymentHandler).Methods(http.MethodPost)

	// Payments
	protected.HandleFunc(Payments, c.Payment.CreatePaymentHandler).Methods(http.MethodPost)
	protected.HandleFunc(Payments, c.Payment.ListPaymentsHandler).Methods(http.MethodGet)
	protected.HandleFunc(PaymentsStats, c.Payment.PaymentStatsHandler).Methods(http.MethodGet)
	protected.HandleFunc(Payment, c.Payment.GetPaymentHandler).Methods(http.MethodGet)
	protected.HandleFunc(PaymentStatus, c.Payment.UpdatePaymentStatusHandler).Methods(http.MethodPut)

	// Messages
	if c.Message != nil {
		protected.HandleFunc(Messages, c.Message.ListMessagesHandler).Methods(http.MethodGet)
		protected.HandleFunc(MessagesGroup, c.Message.SendGroupHandler).Methods(http.MethodPost)
		protected.HandleFunc(MessageGroup, c.Message.ListGroupHandler).Methods(http.MethodGet)
		protected.HandleFunc(MessagesDirect, c.Message.SendDirectHandler).Methods(http.MethodPost)
		protected.HandleFunc(MessageDirect, c.Message.ListDirectHandler).Methods(http.MethodGet)
		protected.HandleFunc(MessageMarkRead, c.Message.MarkReadHandler).Methods(http.MethodPut)
	}

	// Complaints
	protected.HandleFunc(Complaints, c.Complaint.ListComplaintsHandler).Methods(http.MethodGet)
	protected.HandleFunc(Complaints, c.Complaint.CreateComplaintHandler).Methods(http.MethodPost)
	protected.HandleFunc(TenantComplaints, c.Complaint.ListTenantComplaintsHandler).Methods(http.MethodGet)
	managers.HandleFunc(Complaint, c.Complaint.UpdateComplaintHandler).Methods(http.MethodPut)
	protected.HandleFunc(Complaint, c.Complaint.DeleteComplaintHandler).Methods(http.MethodDelete)

	// SMS
	managers.HandleFunc(SMSSend, c.SMS.SendSMSHandler).Methods(http.MethodPost)

	return router
}
