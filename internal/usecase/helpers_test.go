package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradehub/internal/adapter/repository"
	"tradehub/internal/domain/entity"
	domainrepo "tradehub/internal/domain/repository"
	"tradehub/internal/domain/service"
	"tradehub/internal/infrastructure/storage"
)

type publishedEvent struct {
	UserID  string
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(userID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{UserID: userID, Event: event, Payload: payload})
}

func (n *recordingNotifier) For(userID string) []publishedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []publishedEvent
	for _, e := range n.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

// inlineScheduler runs follow-ups synchronously and records failures.
type inlineScheduler struct {
	mu       sync.Mutex
	failures []error
}

func (s *inlineScheduler) Submit(task service.FollowUp) {
	if err := task.Run(context.Background()); err != nil {
		s.mu.Lock()
		s.failures = append(s.failures, err)
		s.mu.Unlock()
	}
}

type fixedNumbers struct {
	mu      sync.Mutex
	numbers []string
}

func (f *fixedNumbers) Next(time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.numbers[0]
	if len(f.numbers) > 1 {
		f.numbers = f.numbers[1:]
	}
	return n
}

type fixture struct {
	orders    domainrepo.OrderRepository
	listings  domainrepo.ListingRepository
	users     domainrepo.UserRepository
	chats     domainrepo.ChatRepository
	images    *storage.MemoryImageStore
	notifier  *recordingNotifier
	scheduler *inlineScheduler
	orderUC   *OrderUseCase
	chatUC    *ChatUseCase
	listingUC *ListingUseCase
	clock     time.Time
}

var (
	buyer    = entity.Caller{UserID: "buyer-1"}
	seller   = entity.Caller{UserID: "seller-1"}
	stranger = entity.Caller{UserID: "stranger"}
	admin    = entity.Caller{UserID: "admin-1", Role: entity.RoleAdmin}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:    repository.NewMemoryOrderRepository(),
		listings:  repository.NewMemoryListingRepository(),
		users:     repository.NewMemoryUserRepository(),
		chats:     repository.NewMemoryChatRepository(),
		images:    storage.NewMemoryImageStore("http://img.test"),
		notifier:  &recordingNotifier{},
		scheduler: &inlineScheduler{},
		clock:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.orderUC = NewOrderUseCase(f.orders, f.listings, f.users, f.notifier, f.scheduler, nil)
	f.chatUC = NewChatUseCase(f.chats, f.listings, f.images, f.notifier)
	f.listingUC = NewListingUseCase(f.listings, f.users, f.images)

	tick := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return tick()
	}
	f.orderUC.now = clock
	f.chatUC.now = clock
	f.listingUC.now = clock
	return f
}

func (f *fixture) listing(t *testing.T, id, sellerID string, price float64) *entity.Listing {
	t.Helper()
	l := &entity.Listing{
		ID:          id,
		SellerID:    sellerID,
		Title:       "Road bike",
		Description: "54cm frame",
		Price:       price,
		Category:    "bikes",
		Images:      []entity.ListingImage{{URL: "http://img.test/bike.jpg", PublicID: "bike"}},
		Status:      entity.ListingStatusActive,
	}
	require.NoError(t, f.listings.Create(context.Background(), l))
	return l
}

func (f *fixture) listingStatus(t *testing.T, id string) entity.ListingStatus {
	t.Helper()
	l, err := f.listings.GetByID(context.Background(), id)
	require.NoError(t, err)
	return l.Status
}

func (f *fixture) order(t *testing.T, listingID string) *entity.Order {
	t.Helper()
	o, err := f.orderUC.CreateOrder(context.Background(), buyer, CreateOrderInput{ListingID: listingID, FinalPrice: 45})
	require.NoError(t, err)
	return o
}

// advance walks the order through the given statuses as the seller.
func (f *fixture) advance(t *testing.T, orderID string, statuses ...entity.OrderStatus) *entity.Order {
	t.Helper()
	var o *entity.Order
	var err error
	for _, s := range statuses {
		note := ""
		if requiresReason(s) {
			note = "reason"
		}
		o, err = f.orderUC.UpdateStatus(context.Background(), seller, orderID, UpdateStatusInput{Status: s, Note: note})
		require.NoError(t, err, s)
	}
	return o
}

func (f *fixture) completedOrder(t *testing.T, listingID string) *entity.Order {
	t.Helper()
	f.listing(t, listingID, seller.UserID, 10)
	o := f.order(t, listingID)
	return f.advance(t, o.ID,
		entity.OrderStatusConfirmed,
		entity.OrderStatusMeetupScheduled,
		entity.OrderStatusInProgress,
		entity.OrderStatusCompleted,
	)
}
