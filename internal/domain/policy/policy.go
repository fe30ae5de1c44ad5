// Package policy decides whether an authenticated caller may perform an
// action on an aggregate.
package policy

import (
	"tradehub/internal/domain/entity"
)

type Action string

const (
	ActionViewOrder      Action = "order:view"
	ActionUpdateStatus   Action = "order:update-status"
	ActionCancelOrder    Action = "order:cancel"
	ActionDisputeOrder   Action = "order:dispute"
	ActionRateOrder      Action = "order:rate"
	ActionUpdateMeetup   Action = "order:update-meetup"
	ActionListAllOrders  Action = "order:list-all"
	ActionViewChat       Action = "chat:view"
	ActionSendMessage    Action = "chat:send"
	ActionMarkRead       Action = "chat:read"
	ActionRespondToOffer Action = "chat:respond-offer"
	ActionToggleBlock    Action = "chat:block"
	ActionDeleteChat     Action = "chat:delete"
)

// CanOnOrder reports whether caller may perform action on order.
// Admins may view, move and cancel any order but never rate or reschedule
// on behalf of a party.
func CanOnOrder(caller entity.Caller, order *entity.Order, action Action) bool {
	if caller.UserID == "" || order == nil {
		return false
	}
	participant := order.IsParticipant(caller.UserID)

	switch action {
	case ActionViewOrder, ActionUpdateStatus, ActionCancelOrder, ActionDisputeOrder:
		return participant || caller.IsAdmin()
	case ActionRateOrder, ActionUpdateMeetup:
		return participant
	}
	return false
}

// CanListAllOrders guards the administrative order listing.
func CanListAllOrders(caller entity.Caller) bool {
	return caller.UserID != "" && caller.IsAdmin()
}

// CanOnChat reports whether caller may perform action on chat. Only the
// listing's seller may answer an offer.
func CanOnChat(caller entity.Caller, chat *entity.Chat, action Action) bool {
	if caller.UserID == "" || chat == nil {
		return false
	}
	participant := chat.HasParticipant(caller.UserID)

	switch action {
	case ActionViewChat:
		return participant || caller.IsAdmin()
	case ActionSendMessage, ActionMarkRead, ActionToggleBlock, ActionDeleteChat:
		return participant
	case ActionRespondToOffer:
		return participant && caller.UserID == chat.SellerID
	}
	return false
}
