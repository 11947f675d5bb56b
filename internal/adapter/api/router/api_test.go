package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kowa/internal/adapter/api"
	"kowa/internal/adapter/api/handler"
	"kowa/internal/adapter/api/middleware"
	"kowa/internal/adapter/repository"
	"kowa/internal/domain/entity"
	"kowa/internal/infrastructure/jwtauth"
	"kowa/internal/infrastructure/websocket"
	"kowa/internal/usecase"
	"kowa/pkg/errors"
)

type staticIdentity map[string]*entity.UserProfile

func (s staticIdentity) Authenticate(ctx context.Context, token string) (*entity.UserProfile, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errors.Unauthorized("Invalid or expired token", nil)
}

type memoryMedia struct {
	uploads map[string][]byte
}

func (m *memoryMedia) Upload(ctx context.Context, file io.Reader, contentType, folder string) (string, error) {
	b, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	url := "https://media.test/" + folder + "/1.webm"
	m.uploads[url] = b
	return url, nil
}

func (m *memoryMedia) Delete(ctx context.Context, url string) error {
	delete(m.uploads, url)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type server struct {
	e     *echo.Echo
	media *memoryMedia
}

func newServer(t *testing.T) *server {
	t.Helper()

	directory := repository.NewMemoryDirectory()
	directory.PutUser(&entity.UserProfile{ID: "buyer", Name: "Awa"})
	directory.PutUser(&entity.UserProfile{ID: "seller", Name: "Moussa"})
	directory.PutUser(&entity.UserProfile{ID: "outsider", Name: "Fatou"})
	conversations := repository.NewMemoryConversationRepository()
	messages := repository.NewMemoryMessageRepository()
	media := &memoryMedia{uploads: make(map[string][]byte)}

	identity := staticIdentity{
		"buyer-token":    {ID: "buyer", Name: "Awa"},
		"seller-token":   {ID: "seller", Name: "Moussa"},
		"outsider-token": {ID: "outsider", Name: "Fatou"},
	}

	manager := websocket.NewManager(websocket.NewRegistry(), 0)
	convUC := usecase.NewConversationUseCase(conversations, messages, directory, directory, manager)
	msgUC := usecase.NewMessageUseCase(conversations, messages, directory, directory, manager, media, nil)
	manager.SetServices(convUC, msgUC)

	handler.Setup(convUC, msgUC)
	handler.SetupHealthHandler(manager.Registry())

	e := echo.New()
	e.Validator = api.NewValidator()
	Setup(e, middleware.NewAuthMiddleware(identity), nil, handler.NewWebSocketHandler(manager, identity, nil))

	return &server{e: e, media: media}
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func (s *server) openConversation(t *testing.T) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/v1/conversations", "buyer-token", map[string]string{"seller_id": "seller"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view.ID
}

func TestHealthCheck(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat_ws_connections")
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodGet, "/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, errors.CodeUnauthorized, env.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/v1/conversations", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateConversation(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodPost, "/v1/conversations", "buyer-token", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, errors.CodeValidation, env.Error.Code)
	assert.Equal(t, "seller_id", env.Error.Details["field"])

	rec, env = s.do(t, http.MethodPost, "/v1/conversations", "buyer-token", map[string]string{"seller_id": "buyer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeSelfConversation, env.Error.Code)

	id := s.openConversation(t)

	rec, env = s.do(t, http.MethodPost, "/v1/conversations", "buyer-token", map[string]string{"seller_id": "seller"})
	assert.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		ID       string `json:"id"`
		Existing bool   `json:"existing"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, id, again.ID)
	assert.True(t, again.Existing)
	assert.Equal(t, "buyer", again.Role)

	rec, env = s.do(t, http.MethodGet, "/v1/conversations/"+id, "outsider-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.CodeNotParticipant, env.Error.Code)
}

func TestMessageFlow(t *testing.T) {
	s := newServer(t)
	id := s.openConversation(t)

	rec, env := s.do(t, http.MethodPost, "/v1/messages", "buyer-token", map[string]interface{}{
		"conversation_id": id,
		"content":         "Bonjour, le prix est fixe ?",
		"type":            "text",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "buyer", msg.SenderID)

	rec, env = s.do(t, http.MethodPost, "/v1/messages", "buyer-token", map[string]interface{}{
		"conversation_id": id,
		"content":         "x",
		"type":            "deleted",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type", env.Error.Details["field"])

	rec, env = s.do(t, http.MethodGet, "/v1/conversations/unread/count", "seller-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread_count":1}`, string(env.Data))

	rec, env = s.do(t, http.MethodGet, "/v1/messages/"+id+"?page=1&limit=10", "seller-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []entity.Message `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)

	rec, env = s.do(t, http.MethodGet, "/v1/messages/search/"+id+"?query=PRIX", "seller-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &found))
	assert.Len(t, found, 1)

	rec, env = s.do(t, http.MethodPut, "/v1/messages/"+msg.ID+"/read", "buyer-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeSelfRead, env.Error.Code)

	rec, _ = s.do(t, http.MethodPut, "/v1/conversations/"+id+"/read", "seller-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, env = s.do(t, http.MethodGet, "/v1/conversations/unread/count", "seller-token", nil)
	assert.JSONEq(t, `{"unread_count":0}`, string(env.Data))

	rec, env = s.do(t, http.MethodDelete, "/v1/messages/"+msg.ID, "seller-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.CodeNotOwner, env.Error.Code)

	rec, _ = s.do(t, http.MethodDelete, "/v1/messages/"+msg.ID, "buyer-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, env = s.do(t, http.MethodGet, "/v1/conversations/"+id, "seller-token", nil)
	var view struct {
		LastMessage struct {
			Content string `json:"content"`
		} `json:"last_message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, entity.DeletedPlaceholder, view.LastMessage.Content)
}

func TestArchiveRoutes(t *testing.T) {
	s := newServer(t)
	id := s.openConversation(t)

	rec, _ := s.do(t, http.MethodDelete, "/v1/conversations/"+id, "seller-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, env := s.do(t, http.MethodGet, "/v1/conversations", "seller-token", nil)
	assert.JSONEq(t, `[]`, string(env.Data))

	_, env = s.do(t, http.MethodGet, "/v1/conversations?status=archived", "seller-token", nil)
	var archived []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &archived))
	assert.Len(t, archived, 1)

	rec, _ = s.do(t, http.MethodPut, "/v1/conversations/"+id+"/unarchive", "seller-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/v1/conversations?status=bogus", "seller-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeValidation, env.Error.Code)
}

func voiceRequest(t *testing.T, conversationID, contentType string, audio []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("conversation_id", conversationID))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="voice.webm"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(audio)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/voice", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer seller-token")
	return req
}

func TestVoiceMessage(t *testing.T) {
	s := newServer(t)
	id := s.openConversation(t)

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, voiceRequest(t, id, "audio/webm", []byte("OggS-fake")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var msg entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, entity.MessageTypeAudio, msg.Type)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, []byte("OggS-fake"), s.media.uploads[msg.Attachments[0]])

	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, voiceRequest(t, id, "text/plain", []byte("nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodGet, "/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.CodeUnauthorized, env.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/ws?token=forged", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDevTokenRoute(t *testing.T) {
	directory := repository.NewMemoryDirectory()
	directory.PutUser(&entity.UserProfile{ID: "buyer", Name: "Awa"})
	provider := jwtauth.NewProvider("dev-secret", directory)
	handler.SetupDevTokenHandler(provider, directory)

	prod := echo.New()
	SetupDevRouter(prod, false)
	rec := httptest.NewRecorder()
	prod.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_dev/token/buyer", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	dev := echo.New()
	SetupDevRouter(dev, true)

	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_dev/token/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_dev/token/buyer", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))

	profile, err := provider.Authenticate(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "Awa", profile.Name)
}

func TestListMessages_OversizedPage(t *testing.T) {
	s := newServer(t)
	id := s.openConversation(t)

	rec, env := s.do(t, http.MethodGet, "/v1/messages/"+id+"?page=9223372036854775807&limit=100", "buyer-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Items []entity.Message `json:"items"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(0), page.Total)
}
