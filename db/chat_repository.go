package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/campushq/educhat/models"
)

// ChatRepository is the persistence contract for conversations and messages.
// Conversation pairs are stored normalized so the composite unique index on
// (participant1_id, participant2_id) covers both argument orders.
type ChatRepository interface {
	FindConversationBetween(userA, userB uint) (*models.Conversation, error)
	FindConversationByID(conversationID uuid.UUID) (*models.Conversation, error)
	CreateConversation(userA, userB uint) (*models.Conversation, error)
	AppendMessage(conversationID uuid.UUID, senderID, receiverID uint, content string) (*models.ChatMessage, error)
	ListConversationsForUser(userID uint, previewCount int) ([]models.Conversation, error)
	ListMessages(conversationID uuid.UUID) ([]models.ChatMessage, error)
	ListRecentMessages(conversationID uuid.UUID, limit int) ([]models.ChatMessage, error)
	MarkMessagesRead(conversationID uuid.UUID, receiverID uint) (int64, error)
}

type chatRepo struct {
	DB *gorm.DB
}

func NewChatRepo(db *GormDB) ChatRepository {
	return &chatRepo{db.DB}
}

// normalizePair orders a user pair so the lower id always lands in slot 1.
func normalizePair(userA, userB uint) (uint, uint) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

func (r *chatRepo) FindConversationBetween(userA, userB uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.DB.
		Where("(participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?)",
			userA, userB, userB, userA).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error finding conversation")
	}
	return &conversation, nil
}

func (r *chatRepo) FindConversationByID(conversationID uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.DB.Where("id = ?", conversationID).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "error finding conversation by id")
	}
	return &conversation, nil
}

func (r *chatRepo) CreateConversation(userA, userB uint) (*models.Conversation, error) {
	if userA == userB {
		return nil, errors.New("conversation participants must differ")
	}

	p1, p2 := normalizePair(userA, userB)
	conversation := models.Conversation{
		ID:             uuid.New(),
		Participant1ID: p1,
		Participant2ID: p2,
	}
	// A concurrent create for the same pair trips the unique index; the
	// caller re-queries and returns the winner.
	if err := r.DB.Create(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *chatRepo) AppendMessage(conversationID uuid.UUID, senderID, receiverID uint, content string) (*models.ChatMessage, error) {
	message := models.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	tx := r.DB.Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "error starting transaction")
	}

	if err := tx.Create(&message).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "error creating message")
	}

	// The bump rides in the same transaction as the insert so readers never
	// see one without the other.
	if err := tx.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", message.CreatedAt).Error; err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "error updating conversation timestamp")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.Wrap(err, "error committing message")
	}
	return &message, nil
}

func (r *chatRepo) ListConversationsForUser(userID uint, previewCount int) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.DB.
		Preload("Participant1").
		Preload("Participant2").
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "error listing conversations")
	}

	if previewCount <= 0 {
		return conversations, nil
	}
	for i := range conversations {
		preview, err := r.ListRecentMessages(conversations[i].ID, previewCount)
		if err != nil {
			return nil, err
		}
		conversations[i].Messages = preview
	}
	return conversations, nil
}

func (r *chatRepo) ListMessages(conversationID uuid.UUID) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.DB.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "error listing messages")
	}
	return messages, nil
}

// ListRecentMessages returns the newest limit messages in ascending order.
func (r *chatRepo) ListRecentMessages(conversationID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.DB.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "error listing recent messages")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *chatRepo) MarkMessagesRead(conversationID uuid.UUID, receiverID uint) (int64, error) {
	result := r.DB.Model(&models.ChatMessage{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, receiverID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "error marking messages read")
	}
	return result.RowsAffected, nil
}
