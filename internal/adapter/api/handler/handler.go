package handler

import (
	"tradehub/internal/usecase"
)

var (
	orderHandler   *OrderHandler
	chatHandler    *ChatHandler
	listingHandler *ListingHandler
	userHandler    *UserHandler
)

func Setup(
	orderUseCase *usecase.OrderUseCase,
	chatUseCase *usecase.ChatUseCase,
	listingUseCase *usecase.ListingUseCase,
) {
	orderHandler = NewOrderHandler(orderUseCase)
	chatHandler = NewChatHandler(chatUseCase)
	listingHandler = NewListingHandler(listingUseCase)
	userHandler = NewUserHandler(listingUseCase)
}

func GetOrderHandler() *OrderHandler {
	return orderHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetListingHandler() *ListingHandler {
	return listingHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}
