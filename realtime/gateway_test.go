package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campushq/educhat/config"
	"github.com/campushq/educhat/models"
	"github.com/campushq/educhat/services"
	"github.com/campushq/educhat/services/jwt"
)

const testSecret = "gateway-test-secret"

// fakeAuthRepo serves identity lookups for the gateway under test.
type fakeAuthRepo struct {
	users map[uint]*models.User
}

func newFakeAuthRepo(users ...*models.User) *fakeAuthRepo {
	repo := &fakeAuthRepo{users: make(map[uint]*models.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeAuthRepo) CreateUser(user *models.User) (*models.User, error) {
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeAuthRepo) IsEmailExist(string) error { return nil }

func (f *fakeAuthRepo) FindUserByEmail(email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAuthRepo) FindUserByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) FindRoleByName(name string) (*models.Role, error) {
	return &models.Role{ID: uuid.New(), Name: name}, nil
}

func (f *fakeAuthRepo) AddToBlackList(*models.Blacklist) error { return nil }
func (f *fakeAuthRepo) IsTokenInBlacklist(string) bool         { return false }

// fakeChatRepo is a minimal in-memory conversation store.
type fakeChatRepo struct {
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]models.ChatMessage
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]models.ChatMessage),
	}
}

func (f *fakeChatRepo) FindConversationBetween(a, b uint) (*models.Conversation, error) {
	for _, conv := range f.conversations {
		if (conv.Participant1ID == a && conv.Participant2ID == b) ||
			(conv.Participant1ID == b && conv.Participant2ID == a) {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeChatRepo) FindConversationByID(id uuid.UUID) (*models.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeChatRepo) CreateConversation(a, b uint) (*models.Conversation, error) {
	if existing, _ := f.FindConversationBetween(a, b); existing != nil {
		return nil, gorm.ErrDuplicatedKey
	}
	p1, p2 := a, b
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	now := time.Now()
	conv := &models.Conversation{ID: uuid.New(), Participant1ID: p1, Participant2ID: p2, CreatedAt: now, UpdatedAt: now}
	f.conversations[conv.ID] = conv
	copied := *conv
	return &copied, nil
}

func (f *fakeChatRepo) AppendMessage(conversationID uuid.UUID, senderID, receiverID uint, content string) (*models.ChatMessage, error) {
	msg := models.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	f.conversations[conversationID].UpdatedAt = msg.CreatedAt
	return &msg, nil
}

func (f *fakeChatRepo) ListConversationsForUser(userID uint, previewCount int) ([]models.Conversation, error) {
	var result []models.Conversation
	for _, conv := range f.conversations {
		if conv.Participant1ID == userID || conv.Participant2ID == userID {
			copied := *conv
			copied.Messages, _ = f.ListRecentMessages(conv.ID, previewCount)
			result = append(result, copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

func (f *fakeChatRepo) ListMessages(conversationID uuid.UUID) ([]models.ChatMessage, error) {
	return append([]models.ChatMessage(nil), f.messages[conversationID]...), nil
}

func (f *fakeChatRepo) ListRecentMessages(conversationID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	all := f.messages[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]models.ChatMessage(nil), all...), nil
}

func (f *fakeChatRepo) MarkMessagesRead(conversationID uuid.UUID, receiverID uint) (int64, error) {
	var updated int64
	msgs := f.messages[conversationID]
	for i := range msgs {
		if msgs[i].ReceiverID == receiverID && !msgs[i].Read {
			msgs[i].Read = true
			updated++
		}
	}
	return updated, nil
}

type gatewayFixture struct {
	server   *httptest.Server
	registry *Registry
	chatRepo *fakeChatRepo
}

func newGatewayFixture(t *testing.T, users ...*models.User) *gatewayFixture {
	t.Helper()

	conf := &config.Config{JWTSecret: testSecret, ConversationPreviewLimit: 1}
	chatRepo := newFakeChatRepo()
	chatService := services.NewChatService(chatRepo, conf)
	registry := NewRegistry()
	gateway := NewGateway(registry, chatService, newFakeAuthRepo(users...), conf)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go gateway.HandleConnection(conn)
	}))
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server, registry: registry, chatRepo: chatRepo}
}

func (fx *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(fx.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func facultyUser(id uint) *models.User {
	return &models.User{Model: models.Model{ID: id}, Email: "f@edu.test", Role: models.Role{Name: models.RoleFaculty}}
}

func studentUser(id uint) *models.User {
	return &models.User{Model: models.Model{ID: id}, Email: "s@edu.test", Role: models.Role{Name: models.RoleStudent}}
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func authenticateAs(t *testing.T, conn *websocket.Conn, userID uint, role string) {
	t.Helper()
	token, err := jwt.GenerateToken(userID, role, testSecret)
	require.NoError(t, err)
	sendEvent(t, conn, EventAuthenticate, authenticatePayload{Token: token})
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func expectNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var envelope Envelope
	err := conn.ReadJSON(&envelope)
	require.Error(t, err, "expected no event, got %+v", envelope)
}

func waitForOnline(t *testing.T, registry *Registry, userID uint) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := registry.Lookup(userID); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d never registered", userID)
}

func TestGateway_DeliversToSenderAndOnlineReceiver(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2))

	faculty := fx.dial(t)
	student := fx.dial(t)
	authenticateAs(t, faculty, 1, models.RoleFaculty)
	authenticateAs(t, student, 2, models.RoleStudent)
	waitForOnline(t, fx.registry, 1)
	waitForOnline(t, fx.registry, 2)

	sendEvent(t, faculty, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 2, Content: "Hello"})

	echo := readEvent(t, faculty)
	req.Equal(EventNewMessage, echo.Event)
	var echoed models.ChatMessage
	req.NoError(json.Unmarshal(echo.Data, &echoed))
	req.Equal("Hello", echoed.Content)
	req.False(echoed.Read)
	req.EqualValues(1, echoed.SenderID)

	delivered := readEvent(t, student)
	req.Equal(EventNewMessage, delivered.Event)
	var received models.ChatMessage
	req.NoError(json.Unmarshal(delivered.Data, &received))
	req.Equal("Hello", received.Content)
	req.Equal(echoed.ID, received.ID)
}

func TestGateway_OfflineReceiverGetsNoLiveEvent(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2))

	faculty := fx.dial(t)
	authenticateAs(t, faculty, 1, models.RoleFaculty)
	waitForOnline(t, fx.registry, 1)

	sendEvent(t, faculty, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 2, Content: "are you there?"})

	echo := readEvent(t, faculty)
	req.Equal(EventNewMessage, echo.Event)

	// The message is still durably stored for the receiver's next fetch.
	conv, err := fx.chatRepo.FindConversationBetween(1, 2)
	req.NoError(err)
	req.NotNil(conv)
	messages, err := fx.chatRepo.ListMessages(conv.ID)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("are you there?", messages[0].Content)
}

func TestGateway_SendBeforeAuthenticateRejected(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2))

	conn := fx.dial(t)
	sendEvent(t, conn, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 2, Content: "sneaky"})

	event := readEvent(t, conn)
	req.Equal(EventError, event.Event)
	req.Empty(fx.chatRepo.conversations)
}

func TestGateway_SenderMismatchRejected(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2), facultyUser(3))

	conn := fx.dial(t)
	authenticateAs(t, conn, 1, models.RoleFaculty)
	waitForOnline(t, fx.registry, 1)

	// Claiming someone else's sender id must not work.
	sendEvent(t, conn, EventSendMessage, sendMessagePayload{SenderID: 3, ReceiverID: 2, Content: "spoofed"})

	event := readEvent(t, conn)
	req.Equal(EventError, event.Event)
	req.Empty(fx.chatRepo.conversations)
}

func TestGateway_StudentToStudentRejected(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, studentUser(1), studentUser(2))

	conn := fx.dial(t)
	authenticateAs(t, conn, 1, models.RoleStudent)
	waitForOnline(t, fx.registry, 1)

	sendEvent(t, conn, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 2, Content: "hi"})

	event := readEvent(t, conn)
	req.Equal(EventError, event.Event)
	req.Empty(fx.chatRepo.conversations)
}

func TestGateway_EmptyContentRejected(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2))

	conn := fx.dial(t)
	authenticateAs(t, conn, 1, models.RoleFaculty)
	waitForOnline(t, fx.registry, 1)

	sendEvent(t, conn, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 2, Content: "   "})

	event := readEvent(t, conn)
	req.Equal(EventError, event.Event)

	// Get-or-create ran before validation, but no message was appended.
	for _, msgs := range fx.chatRepo.messages {
		req.Empty(msgs)
	}
}

func TestGateway_InvalidTokenRejected(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1))

	conn := fx.dial(t)
	sendEvent(t, conn, EventAuthenticate, authenticatePayload{Token: "not-a-token"})

	event := readEvent(t, conn)
	req.Equal(EventError, event.Event)
	_, ok := fx.registry.Lookup(1)
	req.False(ok)
}

func TestGateway_DisconnectUnregisters(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2))

	conn := fx.dial(t)
	authenticateAs(t, conn, 1, models.RoleFaculty)
	waitForOnline(t, fx.registry, 1)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := fx.registry.Lookup(1); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok := fx.registry.Lookup(1)
	req.False(ok)
}

func TestGateway_UnknownReceiver(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1))

	conn := fx.dial(t)
	authenticateAs(t, conn, 1, models.RoleFaculty)
	waitForOnline(t, fx.registry, 1)

	sendEvent(t, conn, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 99, Content: "hello?"})

	event := readEvent(t, conn)
	req.Equal(EventError, event.Event)
	var payload errorPayload
	req.NoError(json.Unmarshal(event.Data, &payload))
	req.Equal("receiver not found", payload.Message)
}

func TestGateway_SupersededConnectionStopsReceiving(t *testing.T) {
	req := require.New(t)
	fx := newGatewayFixture(t, facultyUser(1), studentUser(2))

	stale := fx.dial(t)
	authenticateAs(t, stale, 2, models.RoleStudent)
	waitForOnline(t, fx.registry, 2)

	staleBinding, ok := fx.registry.Lookup(2)
	req.True(ok)

	// Same student authenticates from a second tab; the first connection is
	// orphaned from the registry's point of view.
	current := fx.dial(t)
	authenticateAs(t, current, 2, models.RoleStudent)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if binding, ok := fx.registry.Lookup(2); ok && binding != staleBinding {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	newBinding, ok := fx.registry.Lookup(2)
	req.True(ok)
	req.NotSame(staleBinding, newBinding)

	faculty := fx.dial(t)
	authenticateAs(t, faculty, 1, models.RoleFaculty)
	waitForOnline(t, fx.registry, 1)

	sendEvent(t, faculty, EventSendMessage, sendMessagePayload{SenderID: 1, ReceiverID: 2, Content: "ping"})

	echo := readEvent(t, faculty)
	req.Equal(EventNewMessage, echo.Event)

	delivered := readEvent(t, current)
	req.Equal(EventNewMessage, delivered.Event)

	expectNoEvent(t, stale)
}
