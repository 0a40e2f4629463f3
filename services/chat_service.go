package services

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campushq/educhat/config"
	"github.com/campushq/educhat/db"
	apiError "github.com/campushq/educhat/errors"
	"github.com/campushq/educhat/models"
)

// ConversationHistoryLimit caps how many messages ride along with a
// get-or-create response. Older history stays reachable through the
// messages endpoint.
const ConversationHistoryLimit = 50

// ChatService owns the conversation lifecycle: lazy get-or-create with
// duplicate recovery, transactional message posting, and read-state tracking.
// Both the HTTP facade and the websocket gateway call through it.
type ChatService interface {
	GetOrCreateConversation(userA, userB uint) (*models.Conversation, *apiError.Error)
	ListConversationsForUser(userID uint) ([]models.Conversation, *apiError.Error)
	PostMessage(senderID, receiverID uint, conversationID uuid.UUID, content string) (*models.ChatMessage, *apiError.Error)
	MarkMessagesAsRead(conversationID uuid.UUID, userID uint) (int64, *apiError.Error)
	GetConversationMessages(conversationID uuid.UUID, userID uint) ([]models.ChatMessage, *apiError.Error)
	CanStartConversation(initiatorRole, targetRole string) *apiError.Error
}

type chatService struct {
	Config   *config.Config
	chatRepo db.ChatRepository
}

func NewChatService(chatRepo db.ChatRepository, conf *config.Config) ChatService {
	return &chatService{
		Config:   conf,
		chatRepo: chatRepo,
	}
}

// GetOrCreateConversation returns the single conversation between two users,
// creating it on first contact. Concurrent first contacts race on the unique
// pair index; the loser re-queries and both callers converge on one row.
func (s *chatService) GetOrCreateConversation(userA, userB uint) (*models.Conversation, *apiError.Error) {
	if userA == userB {
		return nil, apiError.New("cannot start a conversation with yourself", http.StatusBadRequest)
	}

	conversation, err := s.chatRepo.FindConversationBetween(userA, userB)
	if err != nil {
		log.Printf("GetOrCreateConversation find error: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	if conversation == nil {
		conversation, err = s.chatRepo.CreateConversation(userA, userB)
		if err != nil {
			if !apiError.IsDuplicateKeyError(err) {
				log.Printf("GetOrCreateConversation create error: %v", err)
				return nil, apiError.ErrInternalServerError
			}
			// Lost the creation race, the winner's row is the conversation.
			conversation, err = s.chatRepo.FindConversationBetween(userA, userB)
			if err != nil || conversation == nil {
				log.Printf("GetOrCreateConversation requery error: %v", err)
				return nil, apiError.ErrInternalServerError
			}
		}
	}

	messages, err := s.chatRepo.ListRecentMessages(conversation.ID, ConversationHistoryLimit)
	if err != nil {
		log.Printf("GetOrCreateConversation history error: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	conversation.Messages = messages

	return conversation, nil
}

func (s *chatService) ListConversationsForUser(userID uint) ([]models.Conversation, *apiError.Error) {
	previewCount := s.Config.ConversationPreviewLimit
	if previewCount <= 0 {
		previewCount = 1
	}
	conversations, err := s.chatRepo.ListConversationsForUser(userID, previewCount)
	if err != nil {
		log.Printf("ListConversationsForUser error: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	return conversations, nil
}

// PostMessage appends a message and bumps the conversation timestamp in one
// transaction. Sender and receiver must be exactly the conversation's two
// participants.
func (s *chatService) PostMessage(senderID, receiverID uint, conversationID uuid.UUID, content string) (*models.ChatMessage, *apiError.Error) {
	if strings.TrimSpace(content) == "" {
		return nil, apiError.New("message content cannot be empty", http.StatusBadRequest)
	}

	conversation, err := s.chatRepo.FindConversationByID(conversationID)
	if err != nil {
		log.Printf("PostMessage find conversation error: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	if conversation == nil {
		return nil, apiError.New("conversation not found", http.StatusNotFound)
	}

	if !conversation.HasParticipant(senderID) || conversation.OtherParticipant(senderID) != receiverID {
		return nil, apiError.New("not a participant of this conversation", http.StatusForbidden)
	}

	message, err := s.chatRepo.AppendMessage(conversationID, senderID, receiverID, content)
	if err != nil {
		log.Printf("PostMessage append error: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	return message, nil
}

// MarkMessagesAsRead flips the caller's unread messages in a conversation to
// read. Repeat calls return 0 until new messages arrive.
func (s *chatService) MarkMessagesAsRead(conversationID uuid.UUID, userID uint) (int64, *apiError.Error) {
	conversation, err := s.chatRepo.FindConversationByID(conversationID)
	if err != nil {
		log.Printf("MarkMessagesAsRead find conversation error: %v", err)
		return 0, apiError.ErrInternalServerError
	}
	if conversation == nil {
		return 0, apiError.New("conversation not found", http.StatusNotFound)
	}
	if !conversation.HasParticipant(userID) {
		return 0, apiError.New("not a participant of this conversation", http.StatusForbidden)
	}

	updated, err := s.chatRepo.MarkMessagesRead(conversationID, userID)
	if err != nil {
		log.Printf("MarkMessagesAsRead error: %v", err)
		return 0, apiError.ErrInternalServerError
	}
	return updated, nil
}

// GetConversationMessages returns the full ascending history of a
// conversation, first flipping the caller's unread messages to read. Reading
// the history is what acknowledges delivery.
func (s *chatService) GetConversationMessages(conversationID uuid.UUID, userID uint) ([]models.ChatMessage, *apiError.Error) {
	if _, apiErr := s.MarkMessagesAsRead(conversationID, userID); apiErr != nil {
		return nil, apiErr
	}

	messages, err := s.chatRepo.ListMessages(conversationID)
	if err != nil {
		log.Printf("GetConversationMessages error: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	return messages, nil
}

// CanStartConversation is the single policy point for who may open a
// conversation with whom: students may only contact faculty, faculty may
// contact anyone except admins, admins do not participate in chat.
func (s *chatService) CanStartConversation(initiatorRole, targetRole string) *apiError.Error {
	if initiatorRole == models.RoleAdmin || targetRole == models.RoleAdmin {
		return apiError.New("admins cannot participate in chat", http.StatusForbidden)
	}
	if initiatorRole == models.RoleStudent && targetRole != models.RoleFaculty {
		return apiError.New("students can only message faculty", http.StatusForbidden)
	}
	return nil
}
