package handler

import (
	"kowa/internal/usecase"
)

var (
	conversationHandler *ConversationHandler
	messageHandler      *MessageHandler
	healthHandler       *HealthHandler
)

func Setup(
	conversationUseCase *usecase.ConversationUseCase,
	messageUseCase *usecase.MessageUseCase,
) {
	conversationHandler = NewConversationHandler(conversationUseCase)
	messageHandler = NewMessageHandler(messageUseCase)
}

func SetupHealthHandler(connections ConnectionCounter) {
	healthHandler = NewHealthHandler(connections)
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetMessageHandler() *MessageHandler {
	return messageHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
