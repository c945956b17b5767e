package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/errs"
	"chat-backend/internal/middleware"
	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
)

func setupMessageRouter(handler *MessageHandler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	})
	r.POST("/rooms/:id/messages", handler.Send)
	r.GET("/rooms/:id/messages", handler.History)
	r.POST("/rooms/:id/read", handler.MarkRead)
	r.GET("/messages/:id", handler.Get)
	r.PUT("/messages/:id", handler.Edit)
	r.DELETE("/messages/:id", handler.Delete)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	saved := models.Message{ID: uuid.New(), RoomID: roomID, AuthorID: userID, Content: "hello"}
	messages.On("Send", mock.Anything, userID, roomID, "hello", "text", (*uuid.UUID)(nil), "key-1").
		Return(saved, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello","kind":"text","idempotency_key":"key-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+roomID.String()+"/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Equal(t, "hello", resp["data"].(map[string]any)["message"].(map[string]any)["content"])
	messages.AssertExpectations(t)
}

func TestSendMessagePassesReplyTo(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	parentID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("Send", mock.Anything, userID, roomID, "re: hi", "text", mock.MatchedBy(func(id *uuid.UUID) bool {
		return id != nil && *id == parentID
	}), "").Return(models.Message{ID: uuid.New()}, nil).Once()

	body := bytes.NewBufferString(`{"content":"re: hi","kind":"text","reply_to":"` + parentID.String() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+roomID.String()+"/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messages.AssertExpectations(t)
}

func TestSendMessageNotMember(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("Send", mock.Anything, userID, roomID, "hi", "", (*uuid.UUID)(nil), "").
		Return(models.Message{}, errs.Forbidden(errs.CodeNotRoomMember, "join the room first")).Once()

	body := bytes.NewBufferString(`{"content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+roomID.String()+"/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Equal(t, "NOT_ROOM_MEMBER", resp["error"].(map[string]any)["code"])
	messages.AssertExpectations(t)
}

func TestHistoryDefaultsLimit(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("History", mock.Anything, userID, roomID, (*models.HistoryCursor)(nil), defaultHistoryLimit).
		Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/"+roomID.String()+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestHistoryParsesCursor(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	anchorID := uuid.New()
	anchorAt := time.Date(2026, 1, 2, 15, 4, 5, 123456789, time.UTC)
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("History", mock.Anything, userID, roomID, mock.MatchedBy(func(cur *models.HistoryCursor) bool {
		return cur != nil && cur.CreatedAt.Equal(anchorAt) && cur.ID == anchorID
	}), 25).Return([]models.Message{}, nil).Once()

	q := url.Values{}
	q.Set("before", anchorAt.Format(time.RFC3339Nano)+","+anchorID.String())
	q.Set("limit", "25")
	req := httptest.NewRequest(http.MethodGet, "/rooms/"+roomID.String()+"/messages?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestHistoryRejectsBadCursor(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	req := httptest.NewRequest(http.MethodGet, "/rooms/"+roomID.String()+"/messages?before=garbage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	messages.AssertNotCalled(t, "History")
}

func TestMarkReadSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	roomID := uuid.New()
	messageID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("MarkRead", mock.Anything, userID, roomID, messageID).Return(nil).Once()

	body := bytes.NewBufferString(`{"message_id":"` + messageID.String() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+roomID.String()+"/read", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messages.AssertExpectations(t)
}

func TestMarkReadRequiresMessageID(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupMessageRouter(NewMessageHandler(messages), uuid.New())

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+uuid.NewString()+"/read", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	messages.AssertNotCalled(t, "MarkRead")
}

func TestGetMessageSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	messageID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("GetMessage", mock.Anything, userID, messageID).
		Return(models.Message{ID: messageID, Content: "kept"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/"+messageID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestEditMessageSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	messageID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	edited := models.Message{ID: messageID, Content: "fixed"}
	messages.On("EditMessage", mock.Anything, userID, messageID, "fixed").Return(edited, nil).Once()

	body := bytes.NewBufferString(`{"content":"fixed"}`)
	req := httptest.NewRequest(http.MethodPut, "/messages/"+messageID.String(), body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Equal(t, "fixed", resp["data"].(map[string]any)["message"].(map[string]any)["content"])
	messages.AssertExpectations(t)
}

func TestEditMessageOnlyAuthor(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	messageID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("EditMessage", mock.Anything, userID, messageID, "nope").
		Return(models.Message{}, errs.Forbidden(errs.CodeForbidden, "only the author can edit a message")).Once()

	body := bytes.NewBufferString(`{"content":"nope"}`)
	req := httptest.NewRequest(http.MethodPut, "/messages/"+messageID.String(), body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertExpectations(t)
}

func TestDeleteMessageSuccess(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	userID := uuid.New()
	messageID := uuid.New()
	router := setupMessageRouter(NewMessageHandler(messages), userID)

	messages.On("DeleteMessage", mock.Anything, userID, messageID).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/"+messageID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messages.AssertExpectations(t)
}
