package handler

import (
	"github.com/labstack/echo/v4"

	"kowa/internal/usecase"
	"kowa/pkg/response"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
	}
}

type createConversationRequest struct {
	SellerID  string `json:"seller_id" validate:"required"`
	ProductID string `json:"product_id"`
}

type createConversationResponse struct {
	*usecase.ConversationView
	Existing bool `json:"existing"`
}

type unreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// CreateConversation answers 201 for a new conversation and 200 when the
// buyer already had one for this seller and item.
func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	view, existing, err := h.conversationUseCase.CreateOrGet(c.Request().Context(), userID, usecase.CreateConversationInput{
		SellerID:  req.SellerID,
		ProductID: req.ProductID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	body := createConversationResponse{ConversationView: view, Existing: existing}
	if existing {
		return response.Success(c, body)
	}
	return response.Created(c, body)
}

func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	views, err := h.conversationUseCase.ListForUser(c.Request().Context(), userID, c.QueryParam("status"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, views)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	view, err := h.conversationUseCase.GetByID(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, view)
}

func (h *ConversationHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.conversationUseCase.MarkAsRead(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

func (h *ConversationHandler) Archive(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.conversationUseCase.Archive(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

func (h *ConversationHandler) Unarchive(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.conversationUseCase.Unarchive(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

func (h *ConversationHandler) UnreadCount(c echo.Context) error {
	userID := c.Get("uid").(string)

	total, err := h.conversationUseCase.UnreadTotal(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, unreadCountResponse{UnreadCount: total})
}
