package seeding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

const (
	DefaultLandlordID   = "11111111-1111-4111-8111-111111111111"
	DefaultTenantUserID = "22222222-2222-4222-8222-222222222222"

	DefaultLandlordPhone    = "+254700000001"
	DefaultTenantPhone      = "+254700000002"
	DefaultSeedPassword     = "kodipay123"
	DefaultTenantNationalID = "SEED-0001"
)

// Deps are the repositories and services the demo data is written through.
type Deps struct {
	Users      repositories.UserRepository
	Properties services.PropertyService
	Tenants    services.TenantService
	Ledger     services.LedgerService
}

// SeedDemoData creates a landlord, a tenant login, a two-floor property, a
// tenant record in the first room and one rent bill. It is a no-op once the
// default landlord exists.
func SeedDemoData(ctx context.Context, d Deps) error {
	landlordID := uuid.MustParse(DefaultLandlordID)

	if existing, err := d.Users.GetByID(ctx, landlordID); err != nil {
		return fmt.Errorf("check existing landlord: %w", err)
	} else if existing != nil {
		utils.Logger.Info("seeding: demo data already present; skipping")
		return nil
	}

	hash, err := utils.HashPassword(DefaultSeedPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	landlord := &models.User{
		ID:           landlordID,
		Name:         "Demo Landlord",
		Email:        utils.Ptr("landlord@kodipay.app"),
		Phone:        DefaultLandlordPhone,
		PasswordHash: hash,
		Role:         models.RoleLandlord,
	}
	tenantUser := &models.User{
		ID:           uuid.MustParse(DefaultTenantUserID),
		Name:         "Demo Tenant",
		Email:        utils.Ptr("tenant@kodipay.app"),
		Phone:        DefaultTenantPhone,
		PasswordHash: hash,
		Role:         models.RoleTenant,
	}
	for _, u := range []*models.User{landlord, tenantUser} {
		if err := d.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", u.Phone, err)
		}
	}

	actor := models.Actor{UserID: landlord.ID, Role: models.RoleLandlord}

	property, err := d.Properties.CreateProperty(ctx, actor, dtos.CreatePropertyRequest{
		Name:       "Kodi Heights",
		Address:    "Ngong Road, Nairobi",
		RentAmount: 1500000,
		Floors: []dtos.FloorInput{
			{Number: 0, Rooms: []dtos.RoomInput{{Label: "G1"}, {Label: "G2"}}},
			{Number: 1, Rooms: []dtos.RoomInput{{Label: "101"}, {Label: "102", RentAmount: utils.Ptr(int64(1800000))}}},
		},
	})
	if err != nil {
		return fmt.Errorf("create demo property: %w", err)
	}
	room := property.Floors[0].Rooms[0]

	now := time.Now().UTC()
	tenant, err := d.Tenants.CreateTenant(ctx, actor, dtos.CreateTenantRequest{
		PropertyID: property.ID,
		RoomID:     &room.ID,
		UserID:     &tenantUser.ID,
		Name:       tenantUser.Name,
		Email:      tenantUser.Email,
		Phone:      tenantUser.Phone,
		NationalID: DefaultTenantNationalID,
		LeaseStart: now,
		LeaseEnd:   now.AddDate(1, 0, 0),
	})
	if err != nil {
		return fmt.Errorf("create demo tenant: %w", err)
	}

	bill, err := d.Ledger.CreateBill(ctx, actor, dtos.CreateBillRequest{
		TenantID:    &tenant.ID,
		PropertyID:  property.ID,
		RoomID:      &room.ID,
		Type:        string(models.BillTypeRent),
		Description: "Rent for " + now.Format("January 2006"),
		Amount:      room.RentAmount,
		DueDate:     now.AddDate(0, 0, 7),
	})
	if err != nil {
		return fmt.Errorf("create demo bill: %w", err)
	}

	utils.Logger.Infof("seeding: created landlord=%s tenant=%s property=%s bill=%s",
		landlord.ID, tenant.ID, property.ID, bill.ID)
	return nil
}
