package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// Publisher pushes an event to every realtime socket joined to room.
type Publisher interface {
	Publish(ctx context.Context, room, event string, data any) error
}

type MessageService interface {
	ListMine(ctx context.Context, actor models.Actor) ([]*models.Message, error)
	ListGroup(ctx context.Context, actor models.Actor, propertyID uuid.UUID) ([]*models.Message, error)
	ListDirect(ctx context.Context, actor models.Actor, otherUserID uuid.UUID) ([]*models.Message, error)
	SendGroup(ctx context.Context, actor models.Actor, req dtos.SendGroupMessageRequest) (*models.Message, error)
	SendDirect(ctx context.Context, actor models.Actor, req dtos.SendDirectMessageRequest) (*models.Message, error)
	MarkRead(ctx context.Context, actor models.Actor, messageID string) error

	// CanJoinRoom admits participants of the property a realtime room is named after.
	CanJoinRoom(ctx context.Context, actor models.Actor, room string) error
}

type messageService struct {
	messageRepo  repositories.MessageRepository
	propertyRepo repositories.PropertyRepository
	tenantRepo   repositories.TenantRepository
	userRepo     repositories.UserRepository
	publisher    Publisher
}

// NewMessageService accepts a nil publisher; group messages are then only stored.
func NewMessageService(
	messageRepo repositories.MessageRepository,
	propertyRepo repositories.PropertyRepository,
	tenantRepo repositories.TenantRepository,
	userRepo repositories.UserRepository,
	publisher Publisher,
) MessageService {
	return &messageService{
		messageRepo:  messageRepo,
		propertyRepo: propertyRepo,
		tenantRepo:   tenantRepo,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

// participantOf loads the property and checks the actor is its landlord, an
// admin, or a tenant user whose tenant record lives on it.
func participantOf(
	ctx context.Context,
	propertyRepo repositories.PropertyRepository,
	tenantRepo repositories.TenantRepository,
	actor models.Actor,
	propertyID uuid.UUID,
) (*models.Property, error) {
	p, err := propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load property", err)
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Property not found")
	}
	if actor.IsAdmin() || p.IsOwnedBy(actor.UserID) {
		return p, nil
	}
	if actor.Role == models.RoleTenant {
		t, err := tenantRepo.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, utils.NewInternalError("Failed to load tenant record", err)
		}
		if t != nil && t.PropertyID == p.ID {
			return p, nil
		}
	}
	return nil, utils.NewNotPermittedError("You are not a participant of this property")
}

func (s *messageService) CanJoinRoom(ctx context.Context, actor models.Actor, room string) error {
	propertyID, err := uuid.Parse(room)
	if err != nil {
		return utils.NewValidationError("room must be a property id", err)
	}
	_, err = participantOf(ctx, s.propertyRepo, s.tenantRepo, actor, propertyID)
	return err
}

func (s *messageService) ListMine(ctx context.Context, actor models.Actor) ([]*models.Message, error) {
	msgs, err := s.messageRepo.ListForUser(ctx, actor.UserID.String())
	if err != nil {
		return nil, utils.NewInternalError("Failed to list messages", err)
	}
	return msgs, nil
}

func (s *messageService) ListGroup(ctx context.Context, actor models.Actor, propertyID uuid.UUID) ([]*models.Message, error) {
	if _, err := participantOf(ctx, s.propertyRepo, s.tenantRepo, actor, propertyID); err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.ListGroup(ctx, propertyID.String())
	if err != nil {
		return nil, utils.NewInternalError("Failed to list group messages", err)
	}
	return msgs, nil
}

func (s *messageService) ListDirect(ctx context.Context, actor models.Actor, otherUserID uuid.UUID) ([]*models.Message, error) {
	msgs, err := s.messageRepo.ListDirect(ctx, actor.UserID.String(), otherUserID.String())
	if err != nil {
		return nil, utils.NewInternalError("Failed to list direct messages", err)
	}
	return msgs, nil
}

func (s *messageService) sender(ctx context.Context, actor models.Actor) (*models.User, error) {
	u, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load sender", err)
	}
	if u == nil {
		return nil, utils.NewUnauthorizedError("Sender no longer exists")
	}
	return u, nil
}

func (s *messageService) SendGroup(ctx context.Context, actor models.Actor, req dtos.SendGroupMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, utils.NewValidationError("content must not be empty", nil)
	}
	p, err := participantOf(ctx, s.propertyRepo, s.tenantRepo, actor, req.PropertyID)
	if err != nil {
		return nil, err
	}
	u, err := s.sender(ctx, actor)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		SenderID:    u.ID.String(),
		SenderName:  u.Name,
		SenderPhone: u.Phone,
		PropertyID:  p.ID.String(),
		IsGroup:     true,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, m); err != nil {
		return nil, utils.NewInternalError("Failed to store message", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, m.PropertyID, constants.EventNewMessage, m); err != nil {
			utils.Logger.WithError(err).WithField("propertyID", m.PropertyID).Warn("group message stored but not broadcast")
		}
	}
	return m, nil
}

func (s *messageService) SendDirect(ctx context.Context, actor models.Actor, req dtos.SendDirectMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, utils.NewValidationError("content must not be empty", nil)
	}
	if req.RecipientID == actor.UserID {
		return nil, utils.NewValidationError("cannot send a direct message to yourself", nil)
	}
	recipient, err := s.userRepo.GetByID(ctx, req.RecipientID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load recipient", err)
	}
	if recipient == nil {
		return nil, utils.NewNotFoundError("Recipient not found")
	}
	u, err := s.sender(ctx, actor)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		SenderID:    u.ID.String(),
		SenderName:  u.Name,
		SenderPhone: u.Phone,
		RecipientID: recipient.ID.String(),
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, m); err != nil {
		return nil, utils.NewInternalError("Failed to store message", err)
	}
	return m, nil
}

// MarkRead flips IsRead. A direct message can be marked by its recipient;
// a group message by any participant other than its sender.
func (s *messageService) MarkRead(ctx context.Context, actor models.Actor, messageID string) error {
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return utils.NewInternalError("Failed to load message", err)
	}
	if m == nil {
		return utils.NewNotFoundError("Message not found")
	}

	me := actor.UserID.String()
	if m.IsGroup {
		if m.SenderID == me {
			return utils.NewNotPermittedError("Only recipients can mark a message read")
		}
		propertyID, err := uuid.Parse(m.PropertyID)
		if err != nil {
			return utils.NewInternalError("Stored message has a malformed property id", err)
		}
		if _, err := participantOf(ctx, s.propertyRepo, s.tenantRepo, actor, propertyID); err != nil {
			return err
		}
	} else if m.RecipientID != me {
		return utils.NewNotPermittedError("Only the recipient can mark a message read")
	}

	if m.IsRead {
		return nil
	}
	if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
		return utils.NewInternalError("Failed to mark message read", err)
	}
	return nil
}
