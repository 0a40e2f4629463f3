package realtime

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/campushq/educhat/config"
	"github.com/campushq/educhat/db"
	"github.com/campushq/educhat/services"
	"github.com/campushq/educhat/services/jwt"
)

// Envelope frames every event on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound events.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "sendMessage"
)

// Outbound events.
const (
	EventNewMessage = "newMessage"
	EventError      = "error"
)

type authenticatePayload struct {
	Token string `json:"token"`
}

type sendMessagePayload struct {
	SenderID   uint   `json:"sender_id"`
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Gateway accepts live connections, authenticates them against the registry
// and routes chat events through the conversation service. Each connection
// moves through connected -> authenticated -> closed; messages sent before
// authentication are rejected.
type Gateway struct {
	Config      *config.Config
	Registry    *Registry
	ChatService services.ChatService
	AuthRepo    db.AuthRepository
}

func NewGateway(registry *Registry, chatService services.ChatService, authRepo db.AuthRepository, conf *config.Config) *Gateway {
	return &Gateway{
		Config:      conf,
		Registry:    registry,
		ChatService: chatService,
		AuthRepo:    authRepo,
	}
}

// HandleConnection runs the read loop for one websocket connection and owns
// its registry lifecycle. It returns when the peer disconnects.
func (g *Gateway) HandleConnection(conn *websocket.Conn) {
	client := NewClient(conn)
	go client.WritePump()

	defer func() {
		g.Registry.Unregister(client)
		client.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			client.Emit(EventError, errorPayload{Message: "malformed event"})
			continue
		}

		switch envelope.Event {
		case EventAuthenticate:
			g.handleAuthenticate(client, envelope.Data)
		case EventSendMessage:
			g.handleSendMessage(client, envelope.Data)
		default:
			client.Emit(EventError, errorPayload{Message: "unknown event: " + envelope.Event})
		}
	}
}

// handleAuthenticate validates the access token and binds the connection to
// the token's identity. Re-authenticating as a different user drops the old
// binding first so the connection never holds two registry rows.
func (g *Gateway) handleAuthenticate(client *Client, data json.RawMessage) {
	var payload authenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		client.Emit(EventError, errorPayload{Message: "authentication token required"})
		return
	}

	if g.AuthRepo.IsTokenInBlacklist(payload.Token) {
		client.Emit(EventError, errorPayload{Message: "invalid token"})
		return
	}

	claims, err := jwt.ValidateAndGetClaims(payload.Token, g.Config.JWTSecret)
	if err != nil {
		client.Emit(EventError, errorPayload{Message: "invalid token"})
		return
	}
	userID, err := jwt.UserIDFromClaims(claims)
	if err != nil {
		client.Emit(EventError, errorPayload{Message: "invalid token"})
		return
	}

	if client.Authenticated() && client.UserID != userID {
		g.Registry.Unregister(client)
	}
	client.UserID = userID
	if role, ok := claims["role"].(string); ok {
		client.Role = role
	}
	g.Registry.Register(userID, client)
	log.Printf("user %d authenticated on websocket", userID)
}

// handleSendMessage persists the message and fans it out: an echo to the
// sender, and a push to the receiver only if they hold a live connection.
// Offline receivers find the message on their next history fetch.
func (g *Gateway) handleSendMessage(client *Client, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.Emit(EventError, errorPayload{Message: "malformed sendMessage payload"})
		return
	}

	if !client.Authenticated() {
		client.Emit(EventError, errorPayload{Message: "authenticate before sending messages"})
		return
	}
	if payload.SenderID != client.UserID {
		client.Emit(EventError, errorPayload{Message: "sender does not match authenticated user"})
		return
	}

	receiver, err := g.AuthRepo.FindUserByID(payload.ReceiverID)
	if err != nil {
		client.Emit(EventError, errorPayload{Message: "receiver not found"})
		return
	}

	if apiErr := g.ChatService.CanStartConversation(client.Role, receiver.RoleName()); apiErr != nil {
		client.Emit(EventError, errorPayload{Message: apiErr.Message})
		return
	}

	conversation, apiErr := g.ChatService.GetOrCreateConversation(payload.SenderID, payload.ReceiverID)
	if apiErr != nil {
		client.Emit(EventError, errorPayload{Message: apiErr.Message})
		return
	}

	message, apiErr := g.ChatService.PostMessage(payload.SenderID, payload.ReceiverID, conversation.ID, payload.Content)
	if apiErr != nil {
		client.Emit(EventError, errorPayload{Message: apiErr.Message})
		return
	}

	client.Emit(EventNewMessage, message)

	if receiverClient, online := g.Registry.Lookup(payload.ReceiverID); online {
		receiverClient.Emit(EventNewMessage, message)
	}
}
