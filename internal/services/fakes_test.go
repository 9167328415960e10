package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/mpesa"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// memDB is an in-memory stand-in for Postgres and Mongo shared by the fake
// repositories below. One mutex serialises every write, which is enough to
// model the conditional updates the real queries perform.
type memDB struct {
	mu sync.Mutex

	users      map[uuid.UUID]*models.User
	properties map[uuid.UUID]*models.Property
	tenants    map[uuid.UUID]*models.Tenant
	leases     []*models.Lease
	bills      map[uuid.UUID]*models.Bill
	payments   map[uuid.UUID]*models.Payment
	complaints map[uuid.UUID]*models.Complaint
	messages   map[string]*models.Message
	refresh    map[uuid.UUID]*models.RefreshToken
	resets     map[uuid.UUID]*models.PasswordReset

	txMu sync.Mutex
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[uuid.UUID]*models.User{},
		properties: map[uuid.UUID]*models.Property{},
		tenants:    map[uuid.UUID]*models.Tenant{},
		bills:      map[uuid.UUID]*models.Bill{},
		payments:   map[uuid.UUID]*models.Payment{},
		complaints: map[uuid.UUID]*models.Complaint{},
		messages:   map[string]*models.Message{},
		refresh:    map[uuid.UUID]*models.RefreshToken{},
		resets:     map[uuid.UUID]*models.PasswordReset{},
	}
}

func copyBill(b *models.Bill) *models.Bill {
	c := *b
	c.PaymentHistory = append([]models.PaymentEntry(nil), b.PaymentHistory...)
	return &c
}

func copyPayment(p *models.Payment) *models.Payment {
	c := *p
	return &c
}

func copyProperty(p *models.Property) *models.Property {
	c := *p
	c.Floors = make([]*models.Floor, 0, len(p.Floors))
	for _, f := range p.Floors {
		fc := *f
		fc.Rooms = make([]*models.Room, 0, len(f.Rooms))
		for _, r := range f.Rooms {
			rc := *r
			fc.Rooms = append(fc.Rooms, &rc)
		}
		c.Floors = append(c.Floors, &fc)
	}
	return &c
}

func copyTenant(t *models.Tenant) *models.Tenant {
	c := *t
	return &c
}

// ---------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------

type fakeUserRepo struct{ db *memDB }

var _ repositories.UserRepository = (*fakeUserRepo)(nil)

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Phone == u.Phone {
			return utils.ErrPhoneExists
		}
		if u.Email != nil && existing.Email != nil && *existing.Email == *u.Email {
			return utils.ErrEmailExists
		}
	}
	c := *u
	r.db.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Phone == phone {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email != nil && *u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (r *fakeUserRepo) RenameRole(context.Context, string, string) (int64, error) { return 0, nil }
func (r *fakeUserRepo) DeleteUnlinkedNonLandlords(context.Context) (int64, error) { return 0, nil }
func (r *fakeUserRepo) CountUnlinkedNonLandlords(context.Context) (int64, error)  { return 0, nil }

// ---------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------

type fakeTokenRepo struct{ db *memDB }

var _ repositories.TokenRepository = (*fakeTokenRepo)(nil)

func (r *fakeTokenRepo) CreateRefreshToken(_ context.Context, t *models.RefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *t
	c.Token = utils.HashToken(t.Token)
	r.db.refresh[t.ID] = &c
	return nil
}

func (r *fakeTokenRepo) GetRefreshToken(_ context.Context, raw string) (*models.RefreshToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h := utils.HashToken(raw)
	for _, t := range r.db.refresh {
		if t.Token == h {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepo) MarkRefreshTokenRotated(_ context.Context, id uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.refresh[id]
	if !ok || t.RotatedAt != nil {
		return false, nil
	}
	now := time.Now()
	t.RotatedAt = &now
	return true, nil
}

func (r *fakeTokenRepo) RemoveLiveRefreshTokensByUserID(_ context.Context, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, t := range r.db.refresh {
		if t.UserID == userID && t.RotatedAt == nil {
			delete(r.db.refresh, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) RemoveRefreshToken(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.refresh, id)
	return nil
}

func (r *fakeTokenRepo) RemoveAllRefreshTokensByUserID(_ context.Context, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, t := range r.db.refresh {
		if t.UserID == userID {
			delete(r.db.refresh, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) CleanupExpiredRefreshTokens(context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, t := range r.db.refresh {
		if t.ExpiresAt.Before(time.Now()) {
			delete(r.db.refresh, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) CreatePasswordReset(_ context.Context, pr *models.PasswordReset) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := *pr
	r.db.resets[pr.ID] = &c
	return nil
}

func (r *fakeTokenRepo) ConsumePasswordReset(_ context.Context, raw string) (*models.PasswordReset, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h := utils.HashToken(raw)
	for id, pr := range r.db.resets {
		if pr.TokenHash == h && pr.ExpiresAt.After(time.Now()) {
			delete(r.db.resets, id)
			c := *pr
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepo) RemovePasswordResetsByUserID(_ context.Context, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, pr := range r.db.resets {
		if pr.UserID == userID {
			delete(r.db.resets, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) CleanupExpiredPasswordResets(context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, pr := range r.db.resets {
		if pr.ExpiresAt.Before(time.Now()) {
			delete(r.db.resets, id)
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Properties & rooms
// ---------------------------------------------------------------------

type fakePropertyRepo struct{ db *memDB }

var _ repositories.PropertyRepository = (*fakePropertyRepo)(nil)

func (r *fakePropertyRepo) Create(_ context.Context, p *models.Property) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.properties[p.ID] = copyProperty(p)
	return nil
}

func (r *fakePropertyRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.properties[id]; ok {
		return copyProperty(p), nil
	}
	return nil, nil
}

func (r *fakePropertyRepo) ListByLandlordID(_ context.Context, landlordID uuid.UUID) ([]*models.Property, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Property
	for _, p := range r.db.properties {
		if p.LandlordID == landlordID {
			out = append(out, copyProperty(p))
		}
	}
	return out, nil
}

func (r *fakePropertyRepo) ListAllProperties(context.Context) ([]*models.Property, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Property
	for _, p := range r.db.properties {
		out = append(out, copyProperty(p))
	}
	return out, nil
}

func (r *fakePropertyRepo) UpdateIfVersion(_ context.Context, p *models.Property, expected int64) (pgconn.CommandTag, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.properties[p.ID]
	if !ok || cur.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	c := copyProperty(p)
	c.RowVersion = expected + 1
	r.db.properties[p.ID] = c
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (r *fakePropertyRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Property) error) error {
	p, _ := r.GetByID(ctx, id)
	if p == nil {
		return pgx.ErrNoRows
	}
	if err := mutate(p); err != nil {
		return err
	}
	_, err := r.UpdateIfVersion(ctx, p, p.RowVersion)
	return err
}

func (r *fakePropertyRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.properties[id]
	if !ok || p.OccupiedRooms() > 0 {
		return false, nil
	}
	for _, t := range r.db.tenants {
		if t.PropertyID == id {
			return false, nil
		}
	}
	delete(r.db.properties, id)
	return true, nil
}

func (r *fakePropertyRepo) AddFloor(_ context.Context, f *models.Floor) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.properties[f.PropertyID]
	if !ok {
		return pgx.ErrNoRows
	}
	fc := *f
	p.Floors = append(p.Floors, &fc)
	return nil
}

func (r *fakePropertyRepo) AddRoom(_ context.Context, room *models.Room) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.properties[room.PropertyID]
	if !ok {
		return pgx.ErrNoRows
	}
	f := p.FindFloor(room.FloorID)
	if f == nil {
		return pgx.ErrNoRows
	}
	rc := *room
	f.Rooms = append(f.Rooms, &rc)
	return nil
}

func (r *fakePropertyRepo) UpdateRoom(_ context.Context, room *models.Room) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.properties[room.PropertyID]
	if !ok {
		return pgx.ErrNoRows
	}
	cur := p.FindRoom(room.ID)
	if cur == nil {
		return pgx.ErrNoRows
	}
	cur.Label = room.Label
	cur.RentAmount = room.RentAmount
	return nil
}

func (r *fakePropertyRepo) DeleteRoom(_ context.Context, propertyID, roomID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.properties[propertyID]
	if !ok {
		return false, nil
	}
	for _, f := range p.Floors {
		for i, room := range f.Rooms {
			if room.ID == roomID {
				if room.IsOccupied {
					return false, nil
				}
				f.Rooms = append(f.Rooms[:i], f.Rooms[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakePropertyRepo) BackfillDefaults(context.Context) (int64, error) { return 0, nil }

type fakeRoomRepo struct{ db *memDB }

var _ repositories.RoomRepository = (*fakeRoomRepo)(nil)

func (r *fakeRoomRepo) roomLocked(propertyID, roomID uuid.UUID) *models.Room {
	p, ok := r.db.properties[propertyID]
	if !ok {
		return nil
	}
	return p.FindRoom(roomID)
}

func (r *fakeRoomRepo) GetByID(_ context.Context, propertyID, roomID uuid.UUID) (*models.Room, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if room := r.roomLocked(propertyID, roomID); room != nil {
		c := *room
		return &c, nil
	}
	return nil, nil
}

// claimLocked is the conditional "UPDATE rooms ... WHERE tenant_id IS NULL".
func (r *fakeRoomRepo) claimLocked(propertyID, roomID, tenantID uuid.UUID) error {
	room := r.roomLocked(propertyID, roomID)
	if room == nil {
		return utils.ErrRoomNotFound
	}
	if room.TenantID != nil && *room.TenantID != tenantID {
		return utils.ErrRoomOccupied
	}
	room.TenantID = utils.Ptr(tenantID)
	room.IsOccupied = true
	return nil
}

func (r *fakeRoomRepo) Claim(_ context.Context, propertyID, roomID, tenantID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.claimLocked(propertyID, roomID, tenantID)
}

func (r *fakeRoomRepo) AssignTenant(_ context.Context, propertyID, roomID, tenantID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.moveLocked(propertyID, roomID, tenantID)
}

// moveLocked changes nothing unless the claim on roomID succeeds.
func (r *fakeRoomRepo) moveLocked(propertyID, roomID, tenantID uuid.UUID) error {
	t, ok := r.db.tenants[tenantID]
	if !ok {
		return pgx.ErrNoRows
	}
	if err := r.claimLocked(propertyID, roomID, tenantID); err != nil {
		return err
	}
	if t.RoomID != nil && *t.RoomID != roomID {
		if old := r.roomLocked(t.PropertyID, *t.RoomID); old != nil {
			old.TenantID = nil
			old.IsOccupied = false
		}
	}
	t.RoomID = utils.Ptr(roomID)
	t.PropertyID = propertyID
	r.db.leases = append(r.db.leases, &models.Lease{
		ID: uuid.New(), TenantID: tenantID, PropertyID: propertyID, RoomID: utils.Ptr(roomID),
		LeaseStart: t.LeaseStart, LeaseEnd: t.LeaseEnd, Status: models.TenantStatusActive,
	})
	return nil
}

func (r *fakeRoomRepo) Release(_ context.Context, propertyID, roomID uuid.UUID) (*uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	room := r.roomLocked(propertyID, roomID)
	if room == nil {
		return nil, utils.ErrRoomNotFound
	}
	released := room.TenantID
	room.TenantID = nil
	room.IsOccupied = false
	if released != nil {
		if t, ok := r.db.tenants[*released]; ok {
			t.RoomID = nil
		}
	}
	return released, nil
}

// ---------------------------------------------------------------------
// Tenants & leases
// ---------------------------------------------------------------------

type fakeTenantRepo struct {
	db    *memDB
	rooms *fakeRoomRepo
}

var _ repositories.TenantRepository = (*fakeTenantRepo)(nil)

func (r *fakeTenantRepo) CreateWithRoomClaim(_ context.Context, t *models.Tenant, lease *models.Lease) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.tenants {
		if existing.Phone == t.Phone {
			return utils.ErrPhoneExists
		}
		if existing.NationalID == t.NationalID {
			return utils.ErrNationalIDExists
		}
	}
	if t.RoomID != nil {
		if err := r.rooms.claimLocked(t.PropertyID, *t.RoomID, t.ID); err != nil {
			return err
		}
	}
	r.db.tenants[t.ID] = copyTenant(t)
	lc := *lease
	r.db.leases = append(r.db.leases, &lc)
	return nil
}

func (r *fakeTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tenants[id]; ok {
		return copyTenant(t), nil
	}
	return nil, nil
}

func (r *fakeTenantRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Tenant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tenants {
		if t.UserID != nil && *t.UserID == userID {
			return copyTenant(t), nil
		}
	}
	return nil, nil
}

func (r *fakeTenantRepo) list(keep func(*models.Tenant) bool) []*models.Tenant {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Tenant
	for _, t := range r.db.tenants {
		if keep(t) {
			out = append(out, copyTenant(t))
		}
	}
	return out
}

func (r *fakeTenantRepo) ListByLandlordID(_ context.Context, landlordID uuid.UUID) ([]*models.Tenant, error) {
	return r.list(func(t *models.Tenant) bool { return t.LandlordID == landlordID }), nil
}

func (r *fakeTenantRepo) ListByPropertyID(_ context.Context, propertyID uuid.UUID) ([]*models.Tenant, error) {
	return r.list(func(t *models.Tenant) bool { return t.PropertyID == propertyID }), nil
}

func (r *fakeTenantRepo) Update(_ context.Context, t *models.Tenant, moveTo *uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tenants[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, other := range r.db.tenants {
		if id != t.ID && other.Phone == t.Phone {
			return utils.ErrPhoneExists
		}
	}
	if moveTo != nil {
		if err := r.rooms.moveLocked(t.PropertyID, *moveTo, t.ID); err != nil {
			return err
		}
	}
	cur := r.db.tenants[t.ID]
	c := copyTenant(t)
	c.RoomID = cur.RoomID
	c.PropertyID = cur.PropertyID
	r.db.tenants[t.ID] = c
	return nil
}

func (r *fakeTenantRepo) deleteLocked(id uuid.UUID) {
	t := r.db.tenants[id]
	if t.RoomID != nil {
		if room := r.rooms.roomLocked(t.PropertyID, *t.RoomID); room != nil {
			room.TenantID = nil
			room.IsOccupied = false
		}
	}
	if t.UserID != nil {
		delete(r.db.users, *t.UserID)
	}
	delete(r.db.tenants, id)
}

func (r *fakeTenantRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tenants[id]; !ok {
		return pgx.ErrNoRows
	}
	r.deleteLocked(id)
	return nil
}

func (r *fakeTenantRepo) DeleteAllByLandlordID(_ context.Context, landlordID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, t := range r.db.tenants {
		if t.LandlordID == landlordID {
			r.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

type fakeLeaseRepo struct{ db *memDB }

func (r *fakeLeaseRepo) ListByTenantID(_ context.Context, tenantID uuid.UUID) ([]*models.Lease, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Lease
	for _, l := range r.db.leases {
		if l.TenantID == tenantID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------
// Bills, payments & the ledger transaction
// ---------------------------------------------------------------------

type fakeBillRepo struct {
	db *memDB

	// locked records LockForUpdate calls; lockErr makes them fail.
	locked  []uuid.UUID
	lockErr error
}

var _ repositories.BillRepository = (*fakeBillRepo)(nil)

func (r *fakeBillRepo) Create(_ context.Context, b *models.Bill) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := copyBill(b)
	c.RowVersion = 1
	r.db.bills[b.ID] = c
	return nil
}

func (r *fakeBillRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Bill, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if b, ok := r.db.bills[id]; ok {
		return copyBill(b), nil
	}
	return nil, nil
}

func (r *fakeBillRepo) ListVisibleTo(_ context.Context, userID uuid.UUID, status *models.BillStatus) ([]*models.Bill, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Bill
	for _, b := range r.db.bills {
		if b.IsVisibleTo(userID) && (status == nil || b.Status == *status) {
			out = append(out, copyBill(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	return out, nil
}

func (r *fakeBillRepo) StatsVisibleTo(_ context.Context, userID uuid.UUID) ([]models.BillStatusStat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	byStatus := map[models.BillStatus]*models.BillStatusStat{}
	for _, b := range r.db.bills {
		if !b.IsVisibleTo(userID) {
			continue
		}
		s, ok := byStatus[b.Status]
		if !ok {
			s = &models.BillStatusStat{Status: b.Status}
			byStatus[b.Status] = s
		}
		s.Count++
		s.TotalAmount += b.Amount
	}
	var out []models.BillStatusStat
	for _, s := range byStatus {
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeBillRepo) ListDueForOverdue(_ context.Context, now time.Time) ([]*models.Bill, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Bill
	for _, b := range r.db.bills {
		if b.Status == models.BillStatusPending && b.DueDate.Before(now) {
			out = append(out, copyBill(b))
		}
	}
	return out, nil
}

func (r *fakeBillRepo) UpdateIfVersion(_ context.Context, b *models.Bill, expected int64) (pgconn.CommandTag, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.bills[b.ID]
	if !ok || cur.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	c := copyBill(b)
	c.RowVersion = expected + 1
	r.db.bills[b.ID] = c
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (r *fakeBillRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Bill) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		b, _ := r.GetByID(ctx, id)
		if b == nil {
			return pgx.ErrNoRows
		}
		if err := mutate(b); err != nil {
			return err
		}
		tag, _ := r.UpdateIfVersion(ctx, b, b.RowVersion)
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return utils.ErrRowVersionConflict
}

func (r *fakeBillRepo) LockForUpdate(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.lockErr != nil {
		return r.lockErr
	}
	if _, ok := r.db.bills[id]; !ok {
		return pgx.ErrNoRows
	}
	r.locked = append(r.locked, id)
	return nil
}

func (r *fakeBillRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.bills[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.db.bills, id)
	return nil
}

type fakePaymentRepo struct{ db *memDB }

var _ repositories.PaymentRepository = (*fakePaymentRepo)(nil)

func (r *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.IdempotencyKey != nil {
		for _, existing := range r.db.payments {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *p.IdempotencyKey && existing.CreatedBy == p.CreatedBy {
				return utils.ErrIdempotencyKeyReused
			}
		}
	}
	c := copyPayment(p)
	c.RowVersion = 1
	r.db.payments[p.ID] = c
	return nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.payments[id]; ok {
		return copyPayment(p), nil
	}
	return nil, nil
}

func (r *fakePaymentRepo) find(keep func(*models.Payment) bool) *models.Payment {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if keep(p) {
			return copyPayment(p)
		}
	}
	return nil
}

func (r *fakePaymentRepo) GetByIdempotencyKey(_ context.Context, createdBy uuid.UUID, key string) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool {
		return p.CreatedBy == createdBy && p.IdempotencyKey != nil && *p.IdempotencyKey == key
	}), nil
}

func (r *fakePaymentRepo) GetByCheckoutRequestID(_ context.Context, checkoutID string) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool {
		return p.CheckoutRequestID != nil && *p.CheckoutRequestID == checkoutID
	}), nil
}

func (r *fakePaymentRepo) visibleLocked(userID uuid.UUID) []*models.Payment {
	var out []*models.Payment
	for _, p := range r.db.payments {
		if b, ok := r.db.bills[p.BillID]; ok && b.IsVisibleTo(userID) {
			out = append(out, copyPayment(p))
		}
	}
	return out
}

func (r *fakePaymentRepo) ListVisibleTo(_ context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.visibleLocked(userID), nil
}

func (r *fakePaymentRepo) StatsVisibleTo(_ context.Context, userID uuid.UUID) (*models.PaymentStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stats := &models.PaymentStats{}
	for _, p := range r.visibleLocked(userID) {
		stats.Add(p.Status, p.Amount)
	}
	return stats, nil
}

func (r *fakePaymentRepo) UpdateIfVersion(_ context.Context, p *models.Payment, expected int64) (pgconn.CommandTag, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.payments[p.ID]
	if !ok || cur.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	c := copyPayment(p)
	c.RowVersion = expected + 1
	r.db.payments[p.ID] = c
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (r *fakePaymentRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Payment) error) error {
	p, _ := r.GetByID(ctx, id)
	if p == nil {
		return pgx.ErrNoRows
	}
	if err := mutate(p); err != nil {
		return err
	}
	tag, _ := r.UpdateIfVersion(ctx, p, p.RowVersion)
	if tag.RowsAffected() != 1 {
		return utils.ErrRowVersionConflict
	}
	return nil
}

func (r *fakePaymentRepo) SettlePending(
	_ context.Context,
	checkoutID string,
	status models.PaymentStatus,
	transactionID *string,
	notes string,
) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if p.CheckoutRequestID == nil || *p.CheckoutRequestID != checkoutID || p.Status != models.PaymentStatusPending {
			continue
		}
		p.Status = status
		if transactionID != nil {
			p.TransactionID = transactionID
		}
		if notes != "" {
			p.Notes = notes
		}
		p.RowVersion++
		return copyPayment(p), nil
	}
	return nil, nil
}

// fakeLedgerTx serialises units of work and restores bills and payments
// when one fails, mirroring a rolled-back transaction.
type fakeLedgerTx struct {
	db       *memDB
	bills    *fakeBillRepo
	payments *fakePaymentRepo
}

var _ repositories.LedgerTxRunner = (*fakeLedgerTx)(nil)

func (r *fakeLedgerTx) InLedgerTx(_ context.Context, fn func(repos repositories.LedgerRepos) error) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()

	r.db.mu.Lock()
	bills := make(map[uuid.UUID]*models.Bill, len(r.db.bills))
	for k, v := range r.db.bills {
		bills[k] = copyBill(v)
	}
	payments := make(map[uuid.UUID]*models.Payment, len(r.db.payments))
	for k, v := range r.db.payments {
		payments[k] = copyPayment(v)
	}
	r.db.mu.Unlock()

	err := fn(repositories.LedgerRepos{Bills: r.bills, Payments: r.payments})
	if err != nil {
		r.db.mu.Lock()
		r.db.bills = bills
		r.db.payments = payments
		r.db.mu.Unlock()
	}
	return err
}

// ---------------------------------------------------------------------
// Complaints & messages
// ---------------------------------------------------------------------

type fakeComplaintRepo struct{ db *memDB }

var _ repositories.ComplaintRepository = (*fakeComplaintRepo)(nil)

func (r *fakeComplaintRepo) Create(_ context.Context, c *models.Complaint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cc := *c
	r.db.complaints[c.ID] = &cc
	return nil
}

func (r *fakeComplaintRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Complaint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.complaints[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, nil
}

func (r *fakeComplaintRepo) list(keep func(*models.Complaint) bool) []*models.Complaint {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Complaint
	for _, c := range r.db.complaints {
		if keep(c) {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out
}

func (r *fakeComplaintRepo) ListByLandlordID(_ context.Context, landlordID uuid.UUID) ([]*models.Complaint, error) {
	return r.list(func(c *models.Complaint) bool { return c.LandlordID == landlordID }), nil
}

func (r *fakeComplaintRepo) ListByAuthorID(_ context.Context, authorID uuid.UUID) ([]*models.Complaint, error) {
	return r.list(func(c *models.Complaint) bool { return c.AuthorID == authorID }), nil
}

func (r *fakeComplaintRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.ComplaintStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.complaints[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = status
	return nil
}

func (r *fakeComplaintRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.complaints, id)
	return nil
}

type fakeMessageRepo struct{ db *memDB }

var _ repositories.MessageRepository = (*fakeMessageRepo)(nil)

func (r *fakeMessageRepo) EnsureIndexes(context.Context) error { return nil }

func (r *fakeMessageRepo) Create(_ context.Context, m *models.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m.ID = primitive.NewObjectID()
	c := *m
	r.db.messages[m.ID.Hex()] = &c
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*models.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m, ok := r.db.messages[id]; ok {
		c := *m
		return &c, nil
	}
	return nil, nil
}

func (r *fakeMessageRepo) list(keep func(*models.Message) bool) []*models.Message {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Message
	for _, m := range r.db.messages {
		if keep(m) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *fakeMessageRepo) ListForUser(_ context.Context, userID string) ([]*models.Message, error) {
	return r.list(func(m *models.Message) bool { return m.SenderID == userID || m.RecipientID == userID }), nil
}

func (r *fakeMessageRepo) ListGroup(_ context.Context, propertyID string) ([]*models.Message, error) {
	return r.list(func(m *models.Message) bool { return m.IsGroup && m.PropertyID == propertyID }), nil
}

func (r *fakeMessageRepo) ListDirect(_ context.Context, a, b string) ([]*models.Message, error) {
	return r.list(func(m *models.Message) bool {
		return !m.IsGroup && ((m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a))
	}), nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.messages[id]
	if !ok {
		return errors.New("not found")
	}
	m.IsRead = true
	return nil
}

// ---------------------------------------------------------------------
// Outbound collaborators
// ---------------------------------------------------------------------

type published struct {
	room, event string
	data        any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, room, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room, event, data})
	return nil
}

type sentSMS struct{ to, body string }
type sentEmail struct{ to, subject, text string }

type fakeNotifier struct {
	mu     sync.Mutex
	sms    []sentSMS
	emails []sentEmail
	err    error
}

var _ Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) SendEmail(_ context.Context, _, toEmail, subject, text, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.emails = append(n.emails, sentEmail{toEmail, subject, text})
	return nil
}

func (n *fakeNotifier) SendSMS(_ context.Context, to, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sms = append(n.sms, sentSMS{to, body})
	return nil
}

type stkCall struct {
	phone      string
	amount     int64
	accountRef string
	desc       string
}

type fakeSTK struct {
	calls []stkCall
	resp  *mpesa.STKPushResponse
	err   error

	// results maps a CheckoutRequestID to the ResultCode STKQuery reports.
	// Unlisted ids report success; queryErr fails every query.
	queries  []string
	results  map[string]string
	queryErr error
}

func (f *fakeSTK) STKPush(_ context.Context, phone string, amount int64, accountRef, desc string) (*mpesa.STKPushResponse, error) {
	f.calls = append(f.calls, stkCall{phone, amount, accountRef, desc})
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeSTK) STKQuery(_ context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
	f.queries = append(f.queries, checkoutRequestID)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	code, ok := f.results[checkoutRequestID]
	if !ok {
		code = "0"
	}
	return &mpesa.STKQueryResponse{
		ResponseCode:      "0",
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        json.RawMessage(strconv.Quote(code)),
		ResultDesc:        "queried",
	}, nil
}

// ---------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------

type fixture struct {
	db         *memDB
	users      *fakeUserRepo
	tokens     *fakeTokenRepo
	properties *fakePropertyRepo
	rooms      *fakeRoomRepo
	tenants    *fakeTenantRepo
	leases     *fakeLeaseRepo
	bills      *fakeBillRepo
	payments   *fakePaymentRepo
	ledgerTx   *fakeLedgerTx
	complaints *fakeComplaintRepo
	messages   *fakeMessageRepo
	notifier   *fakeNotifier
	publisher  *fakePublisher
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:         db,
		users:      &fakeUserRepo{db},
		tokens:     &fakeTokenRepo{db},
		properties: &fakePropertyRepo{db},
		rooms:      &fakeRoomRepo{db},
		leases:     &fakeLeaseRepo{db},
		bills:      &fakeBillRepo{db: db},
		payments:   &fakePaymentRepo{db},
		complaints: &fakeComplaintRepo{db},
		messages:   &fakeMessageRepo{db},
		notifier:   &fakeNotifier{},
		publisher:  &fakePublisher{},
	}
	f.tenants = &fakeTenantRepo{db: db, rooms: f.rooms}
	f.ledgerTx = &fakeLedgerTx{db: db, bills: f.bills, payments: f.payments}
	return f
}

func (f *fixture) ledger() *ledgerService {
	return NewLedgerService(f.bills, f.payments, f.ledgerTx, f.properties, f.tenants, f.users, f.notifier).(*ledgerService)
}

func (f *fixture) tenantService() TenantService {
	return NewTenantService(f.tenants, f.properties, f.leases, f.users)
}

func (f *fixture) propertyService() PropertyService {
	return NewPropertyService(f.properties, f.rooms, f.tenants)
}

// addUser stores a user and returns the actor acting as them.
func (f *fixture) addUser(role models.Role, phone string) models.Actor {
	u := &models.User{ID: uuid.New(), Name: string(role) + " " + phone, Phone: phone, Role: role}
	_ = f.users.Create(context.Background(), u)
	return models.Actor{UserID: u.ID, Role: role}
}

// addProperty stores a property owned by landlord with one floor of the
// given room labels, each renting for rent.
func (f *fixture) addProperty(landlord models.Actor, rent int64, labels ...string) *models.Property {
	p := &models.Property{ID: uuid.New(), LandlordID: landlord.UserID, Name: "Block A", Address: "Nairobi", RentAmount: rent}
	floor := &models.Floor{ID: uuid.New(), PropertyID: p.ID}
	for _, l := range labels {
		floor.Rooms = append(floor.Rooms, &models.Room{ID: uuid.New(), PropertyID: p.ID, FloorID: floor.ID, Label: l, RentAmount: rent})
	}
	p.Floors = []*models.Floor{floor}
	_ = f.properties.Create(context.Background(), p)
	return p
}

// addTenant stores a tenant record on p, optionally linked to a user and a room.
func (f *fixture) addTenant(p *models.Property, user *models.Actor, room *models.Room, phone string) *models.Tenant {
	t := &models.Tenant{
		ID: uuid.New(), LandlordID: p.LandlordID, Name: "Tenant " + phone, Phone: phone,
		NationalID: "ID-" + phone, PropertyID: p.ID, Status: models.TenantStatusActive,
		LeaseStart: time.Now(), LeaseEnd: time.Now().AddDate(1, 0, 0),
	}
	if user != nil {
		t.UserID = utils.Ptr(user.UserID)
	}
	if room != nil {
		t.RoomID = utils.Ptr(room.ID)
	}
	if err := f.tenants.CreateWithRoomClaim(context.Background(), t, &models.Lease{ID: uuid.New(), TenantID: t.ID}); err != nil {
		panic(err)
	}
	return t
}
