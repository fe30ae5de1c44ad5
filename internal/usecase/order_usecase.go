package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/policy"
	"tradehub/internal/domain/repository"
	"tradehub/internal/domain/service"
	"tradehub/pkg/errors"
	"tradehub/pkg/logger"
)

const (
	orderNumberAttempts = 3
	// listingSyncRounds bounds how often a listing write is redone when
	// the order moves underneath it
	listingSyncRounds = 3
)

type OrderUseCase struct {
	orderRepo   repository.OrderRepository
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
	notifier    service.Notifier
	followUps   service.FollowUpScheduler
	numbers     service.OrderNumberGenerator
	now         func() time.Time

	// rating recomputes for one user run one at a time so a slower scan
	// never overwrites a newer result
	ratingLocks sync.Map
}

func NewOrderUseCase(
	orderRepo repository.OrderRepository,
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
	notifier service.Notifier,
	followUps service.FollowUpScheduler,
	numbers service.OrderNumberGenerator,
) *OrderUseCase {
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	if numbers == nil {
		numbers = service.NewOrderNumberGenerator()
	}
	return &OrderUseCase{
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		followUps:   followUps,
		numbers:     numbers,
		now:         time.Now,
	}
}

type CreateOrderInput struct {
	ListingID       string
	FinalPrice      float64
	NegotiatedPrice *float64
	Meetup          *entity.MeetupDetails
	Notes           string
}

type UpdateStatusInput struct {
	Status entity.OrderStatus
	Note   string
	Meetup *entity.MeetupDetails
}

type ListOrdersInput struct {
	Role   string
	Status entity.OrderStatus
	Limit  int
	Offset int
}

func (uc *OrderUseCase) CreateOrder(ctx context.Context, caller entity.Caller, input CreateOrderInput) (*entity.Order, error) {
	if input.FinalPrice < 0 {
		return nil, errors.ValidationFailed("final price must not be negative", nil)
	}
	if input.NegotiatedPrice != nil && *input.NegotiatedPrice < 0 {
		return nil, errors.ValidationFailed("negotiated price must not be negative", nil)
	}

	listing, err := uc.listingRepo.GetByID(ctx, input.ListingID)
	if err != nil {
		logger.Error("CreateOrder Error: listing %s lookup failed: %v", input.ListingID, err)
		return nil, err
	}
	if listing.Status != entity.ListingStatusActive {
		return nil, errors.ValidationFailed("listing is not available", nil)
	}
	if listing.SellerID == caller.UserID {
		return nil, errors.ValidationFailed("cannot order your own listing", nil)
	}

	now := uc.now()
	order := &entity.Order{
		ID:              uuid.New().String(),
		ListingID:       listing.ID,
		BuyerID:         caller.UserID,
		SellerID:        listing.SellerID,
		ListingPrice:    listing.Price,
		NegotiatedPrice: input.NegotiatedPrice,
		FinalPrice:      input.FinalPrice,
		ListingSnapshot: listing.Snapshot(),
		Status:          entity.OrderStatusPending,
		Timeline: []entity.TimelineEntry{{
			Status:    entity.OrderStatusPending,
			Timestamp: now,
			Note:      input.Notes,
			ChangedBy: caller.UserID,
		}},
		Meetup:    input.Meetup,
		Notes:     input.Notes,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		order.OrderNumber = uc.numbers.Next(now)
		err = uc.orderRepo.Create(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, errors.CodeConflict) || attempt == orderNumberAttempts {
			logger.Error("CreateOrder Error: failed to store order for listing %s: %v", listing.ID, err)
			return nil, err
		}
		logger.Warn("CreateOrder: order number %s collided, regenerating", order.OrderNumber)
	}

	uc.scheduleListingSync(order)
	uc.notifier.Publish(order.SellerID, entity.EventNewOrder, orderEvent(order, "", caller.UserID))

	return order, nil
}

func (uc *OrderUseCase) GetOrder(ctx context.Context, caller entity.Caller, orderID string) (*entity.Order, error) {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !policy.CanOnOrder(caller, order, policy.ActionViewOrder) {
		return nil, errors.Forbidden("You don't have permission to view this order", nil)
	}
	return order, nil
}

func (uc *OrderUseCase) ListOrders(ctx context.Context, caller entity.Caller, input ListOrdersInput) ([]*entity.Order, int64, error) {
	switch input.Role {
	case "", "any":
		input.Role = ""
	case "buyer", "seller":
	default:
		return nil, 0, errors.ValidationFailed("role must be buyer or seller", nil)
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, 0, errors.ValidationFailed("unknown order status", nil)
	}

	filter := repository.OrderFilter{UserID: caller.UserID, Role: input.Role, Status: input.Status}
	return uc.orderRepo.List(ctx, filter, input.Limit, input.Offset)
}

// ListOrdersByStatus lists every order in the system. Admin only.
func (uc *OrderUseCase) ListOrdersByStatus(ctx context.Context, caller entity.Caller, status entity.OrderStatus, limit, offset int) ([]*entity.Order, int64, error) {
	if !policy.CanListAllOrders(caller) {
		return nil, 0, errors.Forbidden("Admin privileges required", nil)
	}
	if status != "" && !status.Valid() {
		return nil, 0, errors.ValidationFailed("unknown order status", nil)
	}
	return uc.orderRepo.List(ctx, repository.OrderFilter{Status: status}, limit, offset)
}

func (uc *OrderUseCase) UpdateStatus(ctx context.Context, caller entity.Caller, orderID string, input UpdateStatusInput) (*entity.Order, error) {
	if !input.Status.Valid() {
		return nil, errors.ValidationFailed("unknown order status", nil)
	}
	if requiresReason(input.Status) && strings.TrimSpace(input.Note) == "" {
		return nil, errors.ValidationFailed("a reason is required for this status", nil)
	}

	var previous entity.OrderStatus
	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.Order) error {
		if !policy.CanOnOrder(caller, o, policy.ActionUpdateStatus) {
			return errors.Forbidden("You don't have permission to update this order", nil)
		}
		previous = o.Status
		if err := uc.transition(o, input.Status, input.Note, caller.UserID); err != nil {
			return err
		}
		if input.Meetup != nil && input.Status == entity.OrderStatusMeetupScheduled {
			o.Meetup = input.Meetup
		}
		return nil
	})
	if err != nil {
		logger.Error("UpdateStatus Error: order %s to %s: %v", orderID, input.Status, err)
		return nil, err
	}

	uc.afterTransition(order, previous, input.Note, caller)
	return order, nil
}

func (uc *OrderUseCase) CancelOrder(ctx context.Context, caller entity.Caller, orderID, reason string) (*entity.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.ValidationFailed("cancellation reason is required", nil)
	}

	var previous entity.OrderStatus
	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.Order) error {
		if !policy.CanOnOrder(caller, o, policy.ActionCancelOrder) {
			return errors.Forbidden("You don't have permission to cancel this order", nil)
		}
		if !o.CanBeCancelled() {
			return errors.InvalidTransition(string(o.Status), string(entity.OrderStatusCancelled))
		}
		previous = o.Status
		return uc.transition(o, entity.OrderStatusCancelled, reason, caller.UserID)
	})
	if err != nil {
		logger.Error("CancelOrder Error: order %s: %v", orderID, err)
		return nil, err
	}

	uc.afterTransition(order, previous, reason, caller)
	return order, nil
}

func (uc *OrderUseCase) RaiseDispute(ctx context.Context, caller entity.Caller, orderID, reason string) (*entity.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.ValidationFailed("dispute reason is required", nil)
	}

	var previous entity.OrderStatus
	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.Order) error {
		if !policy.CanOnOrder(caller, o, policy.ActionDisputeOrder) {
			return errors.Forbidden("You don't have permission to dispute this order", nil)
		}
		if o.Status == entity.OrderStatusDisputed {
			return errors.AlreadyResolved("order is already disputed")
		}
		previous = o.Status
		return uc.transition(o, entity.OrderStatusDisputed, reason, caller.UserID)
	})
	if err != nil {
		logger.Error("RaiseDispute Error: order %s: %v", orderID, err)
		return nil, err
	}

	uc.afterTransition(order, previous, reason, caller)
	return order, nil
}

func (uc *OrderUseCase) AddRating(ctx context.Context, caller entity.Caller, orderID string, score int, review string) (*entity.Order, error) {
	if score < 1 || score > 5 {
		return nil, errors.ValidationFailed("score must be between 1 and 5", nil)
	}

	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.Order) error {
		if !policy.CanOnOrder(caller, o, policy.ActionRateOrder) {
			return errors.Forbidden("Only the buyer or seller can rate this order", nil)
		}
		if o.Status != entity.OrderStatusCompleted {
			return errors.ValidationFailed("only completed orders can be rated", nil)
		}
		slot := o.RatingSlot(caller.UserID)
		if *slot != nil {
			return errors.AlreadyResolved("you have already rated this order")
		}
		now := uc.now()
		*slot = &entity.RatingEntry{Score: score, Review: review, RatedAt: now}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		logger.Error("AddRating Error: order %s: %v", orderID, err)
		return nil, err
	}

	target := order.Counterparty(caller.UserID)
	uc.followUps.Submit(service.FollowUp{
		Kind:        service.FollowUpRatingUpdate,
		AggregateID: order.ID,
		Target:      target,
		Run: func(ctx context.Context) error {
			_, err := uc.RecomputeRating(ctx, target)
			return err
		},
	})
	return order, nil
}

// RecomputeRating rebuilds userID's aggregate rating from every completed
// order and stores it on the profile.
func (uc *OrderUseCase) RecomputeRating(ctx context.Context, userID string) (entity.RatingSummary, error) {
	lock, _ := uc.ratingLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	orders, err := uc.orderRepo.ListCompletedFor(ctx, userID)
	if err != nil {
		return entity.RatingSummary{}, err
	}
	summary := service.AggregateRating(userID, orders)
	if err := uc.userRepo.SetRating(ctx, userID, summary); err != nil {
		return entity.RatingSummary{}, err
	}
	return summary, nil
}

func (uc *OrderUseCase) UpdateMeetup(ctx context.Context, caller entity.Caller, orderID string, meetup entity.MeetupDetails) (*entity.Order, error) {
	if strings.TrimSpace(meetup.Location) == "" {
		return nil, errors.ValidationFailed("meetup location is required", nil)
	}

	order, err := uc.orderRepo.Update(ctx, orderID, func(o *entity.Order) error {
		if !policy.CanOnOrder(caller, o, policy.ActionUpdateMeetup) {
			return errors.Forbidden("Only the buyer or seller can change the meetup", nil)
		}
		if o.Status.IsTerminal() {
			return errors.ValidationFailed("meetup cannot change on a closed order", nil)
		}
		details := meetup
		o.Meetup = &details
		o.UpdatedAt = uc.now()
		return nil
	})
	if err != nil {
		logger.Error("UpdateMeetup Error: order %s: %v", orderID, err)
		return nil, err
	}

	event := orderEvent(order, "", caller.UserID)
	event.Meetup = order.Meetup
	uc.notifier.Publish(order.Counterparty(caller.UserID), entity.EventMeetupUpdated, event)
	return order, nil
}

func requiresReason(status entity.OrderStatus) bool {
	return status == entity.OrderStatusCancelled || status == entity.OrderStatusDisputed
}

// transition applies a state machine move plus the structured records that
// go with it.
func (uc *OrderUseCase) transition(o *entity.Order, target entity.OrderStatus, note, actorID string) error {
	from := o.Status
	now := uc.now()
	if err := o.Transition(target, note, actorID, now); err != nil {
		return err
	}

	switch target {
	case entity.OrderStatusCancelled:
		o.Cancellation = &entity.Cancellation{Reason: note, CancelledBy: actorID, CancelledAt: now}
	case entity.OrderStatusDisputed:
		o.Dispute = &entity.Dispute{Reason: note, RaisedBy: actorID, RaisedAt: now}
	}
	if from == entity.OrderStatusDisputed && o.Dispute != nil {
		o.Dispute.ResolvedAt = &now
		o.Dispute.Resolution = string(target)
	}
	return nil
}

// afterTransition issues the listing follow-up and the status notification
// once the order write has committed.
func (uc *OrderUseCase) afterTransition(order *entity.Order, previous entity.OrderStatus, note string, caller entity.Caller) {
	if order.Status.IsTerminal() {
		uc.scheduleListingSync(order)
	}

	event := entity.EventOrderStatusUpdate
	if order.Status == entity.OrderStatusCancelled {
		event = entity.EventOrderCancelled
	}
	payload := orderEvent(order, previous, caller.UserID)
	payload.Note = note

	// an admin acting on the order is nobody's counterparty
	recipients := []string{order.Counterparty(caller.UserID)}
	if recipients[0] == "" {
		recipients = []string{order.BuyerID, order.SellerID}
	}
	for _, userID := range recipients {
		uc.notifier.Publish(userID, event, payload)
	}
}

// listingStatusFor is the listing status an order in status implies.
func listingStatusFor(status entity.OrderStatus) entity.ListingStatus {
	switch status {
	case entity.OrderStatusCompleted:
		return entity.ListingStatusSold
	case entity.OrderStatusCancelled:
		return entity.ListingStatusActive
	default:
		return entity.ListingStatusReserved
	}
}

// scheduleListingSync brings the listing in line with the order. The target
// is derived when the task runs, so a retried flip never reapplies a status
// the order has since left.
func (uc *OrderUseCase) scheduleListingSync(order *entity.Order) {
	orderID := order.ID
	uc.followUps.Submit(service.FollowUp{
		Kind:        service.FollowUpListingStatus,
		AggregateID: orderID,
		Target:      order.ListingID + ":" + string(listingStatusFor(order.Status)),
		Run: func(ctx context.Context) error {
			return uc.SyncListingStatus(ctx, orderID)
		},
	})
}

// SyncListingStatus writes the listing status implied by the order's current
// status. The order is read again after the write; if it moved in between,
// the write is redone.
func (uc *OrderUseCase) SyncListingStatus(ctx context.Context, orderID string) error {
	order, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	for round := 0; round < listingSyncRounds; round++ {
		target := listingStatusFor(order.Status)
		if err := uc.listingRepo.SetStatus(ctx, order.ListingID, target); err != nil {
			return err
		}
		order, err = uc.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if listingStatusFor(order.Status) == target {
			return nil
		}
	}
	return errors.Conflict("listing " + order.ListingID + " did not settle for order " + orderID)
}

func orderEvent(order *entity.Order, previous entity.OrderStatus, actorID string) entity.OrderEvent {
	return entity.OrderEvent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		ListingID:      order.ListingID,
		Status:         order.Status,
		PreviousStatus: previous,
		ActorID:        actorID,
		FinalPrice:     order.FinalPrice,
	}
}
