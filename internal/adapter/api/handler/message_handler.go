package handler

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"kowa/internal/domain/entity"
	"kowa/internal/usecase"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
	"kowa/pkg/response"
	"kowa/pkg/utils"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

type offerDetailsRequest struct {
	ItemID string  `json:"item_id" validate:"required"`
	Price  float64 `json:"price" validate:"gte=0"`
}

type sendMessageRequest struct {
	ConversationID string               `json:"conversation_id" validate:"required"`
	Content        string               `json:"content" validate:"max=2000"`
	Type           string               `json:"type" validate:"omitempty,oneof=text image audio offer"`
	Attachments    []string             `json:"attachments" validate:"omitempty,dive,url"`
	OfferDetails   *offerDetailsRequest `json:"offer_details,omitempty" validate:"omitempty"`
}

func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	input := usecase.SendMessageInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Type:           entity.MessageType(req.Type),
		Attachments:    req.Attachments,
	}
	if req.OfferDetails != nil {
		input.OfferDetails = &entity.OfferDetails{
			ItemID: req.OfferDetails.ItemID,
			Price:  req.OfferDetails.Price,
		}
	}

	msg, err := h.messageUseCase.Send(c.Request().Context(), userID, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

// SendVoiceMessage takes a multipart form with the recording in "audio".
func (h *MessageHandler) SendVoiceMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return response.Error(c, errors.Validation("audio", "audio is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read uploaded audio", err))
	}
	defer file.Close()

	contentType, err := audioContentType(fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read uploaded audio", err))
	}

	msg, err := h.messageUseCase.SendVoice(c.Request().Context(), userID, usecase.SendVoiceInput{
		ConversationID: c.FormValue("conversation_id"),
		Audio:          file,
		ContentType:    contentType,
		Size:           fileHeader.Size,
	})
	if err != nil {
		logger.Debug("SendVoiceMessage: rejected upload from %s: %v", userID, err)
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

// audioContentType trusts a declared audio/* type and sniffs the payload
// otherwise, since recorders often upload as application/octet-stream.
func audioContentType(declared string, file io.ReadSeeker) (string, error) {
	if strings.HasPrefix(strings.ToLower(declared), "audio/") {
		return declared, nil
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return detected.String(), nil
}

func (h *MessageHandler) ListMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	messages, total, err := h.messageUseCase.List(c.Request().Context(), userID, c.Param("conversationId"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, pagination.Page, pagination.PageSize)
}

func (h *MessageHandler) SearchMessages(c echo.Context) error {
	userID := c.Get("uid").(string)

	messages, err := h.messageUseCase.Search(c.Request().Context(), userID, c.Param("conversationId"), c.QueryParam("query"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *MessageHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.messageUseCase.MarkRead(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.messageUseCase.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.NoContent(c)
}
