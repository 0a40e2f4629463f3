package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	errs "github.com/campushq/educhat/errors"
	"github.com/campushq/educhat/server/response"
)

// handleGetConversations returns the caller's inbox: conversations ordered by
// most recent activity, each with a short message preview.
func (s *Server) handleGetConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := contextUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		conversations, apiErr := s.ChatService.ListConversationsForUser(userID)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}

		response.JSON(c, "", http.StatusOK, conversations, nil)
	}
}

// handleGetOrCreateConversation opens (or returns) the conversation between
// the caller and the target user, with up to 50 recent messages.
func (s *Server) handleGetOrCreateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := contextUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		targetID, err := strconv.ParseUint(c.Param("userID"), 10, 64)
		if err != nil {
			response.JSON(c, "invalid user id", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		targetUser, err := s.AuthRepository.FindUserByID(uint(targetID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.JSON(c, "user not found", http.StatusNotFound, nil, errs.ErrNotFound)
				return
			}
			response.JSON(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
			return
		}

		callerRole := c.GetString("userRole")
		if apiErr := s.ChatService.CanStartConversation(callerRole, targetUser.RoleName()); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}

		conversation, apiErr := s.ChatService.GetOrCreateConversation(userID, uint(targetID))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}

		response.JSON(c, "", http.StatusOK, conversation, nil)
	}
}

// handleGetConversationMessages returns the full ascending history and marks
// the caller's unread messages as read on the way.
func (s *Server) handleGetConversationMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := contextUserID(c)
		if !ok {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		conversationID, err := uuid.Parse(c.Param("conversationID"))
		if err != nil {
			response.JSON(c, "invalid conversation id", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}

		messages, apiErr := s.ChatService.GetConversationMessages(conversationID, userID)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}

		response.JSON(c, "", http.StatusOK, messages, nil)
	}
}
