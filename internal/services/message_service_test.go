package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
)

// community is one property with its landlord, a resident tenant user and
// an outsider who rents elsewhere.
type community struct {
	f        *fixture
	landlord models.Actor
	resident models.Actor
	outsider models.Actor
	property *models.Property
	tenant   *models.Tenant
}

func newCommunity() *community {
	f := newFixture()
	c := &community{
		f:        f,
		landlord: f.addUser(models.RoleLandlord, "+254700000001"),
		resident: f.addUser(models.RoleTenant, "+254700000002"),
		outsider: f.addUser(models.RoleTenant, "+254700000004"),
	}
	c.property = f.addProperty(c.landlord, 1000, "A1")
	c.tenant = f.addTenant(c.property, &c.resident, c.property.Floors[0].Rooms[0], "+254700000002")

	elsewhere := f.addProperty(f.addUser(models.RoleLandlord, "+254700000003"), 1000, "B1")
	f.addTenant(elsewhere, &c.outsider, nil, "+254700000004")
	return c
}

func (c *community) messages() MessageService {
	return NewMessageService(c.f.messages, c.f.properties, c.f.tenants, c.f.users, c.f.publisher)
}

func TestGroupMessagesBroadcastToParticipants(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := c.messages()

	m, err := svc.SendGroup(ctx, c.resident, dtos.SendGroupMessageRequest{PropertyID: c.property.ID, Content: "  Water is off on floor 2  "})
	require.NoError(t, err)
	require.True(t, m.IsGroup)
	require.Equal(t, "Water is off on floor 2", m.Content)
	require.Equal(t, "+254700000002", m.SenderPhone)

	require.Len(t, c.f.publisher.events, 1)
	require.Equal(t, c.property.ID.String(), c.f.publisher.events[0].room)
	require.Equal(t, constants.EventNewMessage, c.f.publisher.events[0].event)

	_, err = svc.SendGroup(ctx, c.outsider, dtos.SendGroupMessageRequest{PropertyID: c.property.ID, Content: "hello"})
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = svc.SendGroup(ctx, c.landlord, dtos.SendGroupMessageRequest{PropertyID: c.property.ID, Content: "   "})
	requireStatus(t, err, http.StatusBadRequest)

	msgs, err := svc.ListGroup(ctx, c.landlord, c.property.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, err = svc.ListGroup(ctx, c.outsider, c.property.ID)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestCanJoinRoom(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := c.messages()
	room := c.property.ID.String()

	require.NoError(t, svc.CanJoinRoom(ctx, c.landlord, room))
	require.NoError(t, svc.CanJoinRoom(ctx, c.resident, room))
	require.NoError(t, svc.CanJoinRoom(ctx, models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}, room))
	requireStatus(t, svc.CanJoinRoom(ctx, c.outsider, room), http.StatusUnauthorized)
	requireStatus(t, svc.CanJoinRoom(ctx, c.resident, "lobby"), http.StatusBadRequest)
	requireStatus(t, svc.CanJoinRoom(ctx, c.resident, uuid.NewString()), http.StatusNotFound)
}

func TestDirectMessages(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := c.messages()

	m, err := svc.SendDirect(ctx, c.resident, dtos.SendDirectMessageRequest{RecipientID: c.landlord.UserID, Content: "Rent sent"})
	require.NoError(t, err)
	require.False(t, m.IsGroup)
	require.Empty(t, c.f.publisher.events)

	_, err = svc.SendDirect(ctx, c.resident, dtos.SendDirectMessageRequest{RecipientID: c.resident.UserID, Content: "me"})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = svc.SendDirect(ctx, c.resident, dtos.SendDirectMessageRequest{RecipientID: uuid.New(), Content: "who"})
	requireStatus(t, err, http.StatusNotFound)

	thread, err := svc.ListDirect(ctx, c.landlord, c.resident.UserID)
	require.NoError(t, err)
	require.Len(t, thread, 1)

	mine, err := svc.ListMine(ctx, c.landlord)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	// Only the recipient marks a direct message read.
	requireStatus(t, svc.MarkRead(ctx, c.resident, m.ID.Hex()), http.StatusUnauthorized)
	require.NoError(t, svc.MarkRead(ctx, c.landlord, m.ID.Hex()))
	require.NoError(t, svc.MarkRead(ctx, c.landlord, m.ID.Hex()))

	stored, err := c.f.messages.GetByID(ctx, m.ID.Hex())
	require.NoError(t, err)
	require.True(t, stored.IsRead)

	requireStatus(t, svc.MarkRead(ctx, c.landlord, "000000000000000000000000"), http.StatusNotFound)
}

func TestMarkGroupMessageRead(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := c.messages()

	m, err := svc.SendGroup(ctx, c.landlord, dtos.SendGroupMessageRequest{PropertyID: c.property.ID, Content: "Meeting at 6"})
	require.NoError(t, err)

	requireStatus(t, svc.MarkRead(ctx, c.landlord, m.ID.Hex()), http.StatusUnauthorized)
	requireStatus(t, svc.MarkRead(ctx, c.outsider, m.ID.Hex()), http.StatusUnauthorized)
	require.NoError(t, svc.MarkRead(ctx, c.resident, m.ID.Hex()))
}

func TestMessagesWithoutPublisherAreStillStored(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := NewMessageService(c.f.messages, c.f.properties, c.f.tenants, c.f.users, nil)

	_, err := svc.SendGroup(ctx, c.resident, dtos.SendGroupMessageRequest{PropertyID: c.property.ID, Content: "hi"})
	require.NoError(t, err)

	msgs, err := svc.ListGroup(ctx, c.resident, c.property.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

// ---------------------------------------------------------------------
// Complaints
// ---------------------------------------------------------------------

func TestComplaintLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := NewComplaintService(c.f.complaints, c.f.properties, c.f.tenants)

	_, err := svc.Create(ctx, c.outsider, dtos.CreateComplaintRequest{PropertyID: c.property.ID, Title: "Noise", Description: "Loud music"})
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = svc.Create(ctx, c.resident, dtos.CreateComplaintRequest{PropertyID: c.property.ID, Title: " ", Description: "x"})
	requireStatus(t, err, http.StatusBadRequest)

	complaint, err := svc.Create(ctx, c.resident, dtos.CreateComplaintRequest{PropertyID: c.property.ID, Title: "Leak", Description: "Kitchen sink leaks"})
	require.NoError(t, err)
	require.Equal(t, models.ComplaintStatusOpen, complaint.Status)
	require.Equal(t, c.landlord.UserID, complaint.LandlordID)

	mine, err := svc.List(ctx, c.resident)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	inbox, err := svc.List(ctx, c.landlord)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	byTenant, err := svc.ListForTenant(ctx, c.landlord, c.tenant.ID)
	require.NoError(t, err)
	require.Len(t, byTenant, 1)

	_, err = svc.ListForTenant(ctx, c.outsider, c.tenant.ID)
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = svc.UpdateStatus(ctx, c.resident, complaint.ID, models.ComplaintStatusResolved)
	requireStatus(t, err, http.StatusUnauthorized)

	updated, err := svc.UpdateStatus(ctx, c.landlord, complaint.ID, models.ComplaintStatusInProgress)
	require.NoError(t, err)
	require.Equal(t, models.ComplaintStatusInProgress, updated.Status)

	requireStatus(t, svc.Delete(ctx, c.outsider, complaint.ID), http.StatusUnauthorized)
	require.NoError(t, svc.Delete(ctx, c.resident, complaint.ID))
	_, err = svc.UpdateStatus(ctx, c.landlord, complaint.ID, models.ComplaintStatusClosed)
	requireStatus(t, err, http.StatusNotFound)
}

// ---------------------------------------------------------------------
// SMS
// ---------------------------------------------------------------------

func TestSendSMS(t *testing.T) {
	ctx := context.Background()
	c := newCommunity()
	svc := NewSMSService(c.f.notifier)

	require.NoError(t, svc.Send(ctx, c.landlord, dtos.SendSMSRequest{Phone: "+254712345678", Message: "Rent due Friday"}))
	require.Len(t, c.f.notifier.sms, 1)
	require.Equal(t, "Rent due Friday", c.f.notifier.sms[0].body)

	requireStatus(t, svc.Send(ctx, c.resident, dtos.SendSMSRequest{Phone: "+254712345678", Message: "hi"}), http.StatusUnauthorized)
	requireStatus(t, svc.Send(ctx, c.landlord, dtos.SendSMSRequest{Phone: "0712345678", Message: "hi"}), http.StatusBadRequest)

	c.f.notifier.err = errors.New("twilio down")
	requireStatus(t, svc.Send(ctx, c.landlord, dtos.SendSMSRequest{Phone: "+254712345678", Message: "hi"}), http.StatusFailedDependency)
}
