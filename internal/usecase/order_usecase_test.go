package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehub/internal/domain/entity"
	domainrepo "tradehub/internal/domain/repository"
	"tradehub/internal/domain/service"
	"tradehub/internal/infrastructure/followup"
	"tradehub/pkg/errors"
)

func assertTimelineInvariant(t *testing.T, o *entity.Order) {
	t.Helper()
	require.NotEmpty(t, o.Timeline)
	assert.Equal(t, o.Status, o.LastTimelineStatus())
}

func TestCreateOrderReservesListing(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 45.00)

	order, err := f.orderUC.CreateOrder(context.Background(), buyer, CreateOrderInput{ListingID: "L", FinalPrice: 45.00})
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.Len(t, order.Timeline, 1)
	assertTimelineInvariant(t, order)
	assert.Equal(t, seller.UserID, order.SellerID)
	assert.Equal(t, 45.00, order.ListingPrice)
	assert.Equal(t, "Road bike", order.ListingSnapshot.Title)
	assert.Equal(t, []string{"http://img.test/bike.jpg"}, order.ListingSnapshot.Images)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)
	assert.Equal(t, entity.ListingStatusReserved, f.listingStatus(t, "L"))

	events := f.notifier.For(seller.UserID)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventNewOrder, events[0].Event)
	assert.Empty(t, f.notifier.For(buyer.UserID))
}

func TestCreateOrderSnapshotSurvivesListingEdits(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "L", seller.UserID, 45)
	order := f.order(t, "L")

	l.Images[0].URL = "changed"
	stored, err := f.orderUC.GetOrder(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://img.test/bike.jpg", stored.ListingSnapshot.Images[0])
}

func TestCreateOrderPreconditions(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 45)
	ctx := context.Background()

	_, err := f.orderUC.CreateOrder(ctx, seller, CreateOrderInput{ListingID: "L", FinalPrice: 45})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed), "own listing")

	_, err = f.orderUC.CreateOrder(ctx, buyer, CreateOrderInput{ListingID: "L", FinalPrice: -1})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed), "negative price")

	_, err = f.orderUC.CreateOrder(ctx, buyer, CreateOrderInput{ListingID: "missing", FinalPrice: 1})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	f.order(t, "L")
	_, err = f.orderUC.CreateOrder(ctx, stranger, CreateOrderInput{ListingID: "L", FinalPrice: 45})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed), "reserved listing")
}

func TestCreateOrderRetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L1", seller.UserID, 10)
	f.listing(t, "L2", seller.UserID, 10)
	f.orderUC.numbers = &fixedNumbers{numbers: []string{"ORD-1", "ORD-1", "ORD-1", "ORD-2"}}

	first := f.order(t, "L1")
	assert.Equal(t, "ORD-1", first.OrderNumber)

	second := f.order(t, "L2")
	assert.Equal(t, "ORD-2", second.OrderNumber)
}

func TestCreateOrderGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L1", seller.UserID, 10)
	f.listing(t, "L2", seller.UserID, 10)
	f.orderUC.numbers = &fixedNumbers{numbers: []string{"ORD-1"}}
	f.order(t, "L1")

	_, err := f.orderUC.CreateOrder(context.Background(), buyer, CreateOrderInput{ListingID: "L2", FinalPrice: 1})
	assert.True(t, errors.Is(err, errors.CodeConflict))
	assert.Equal(t, entity.ListingStatusActive, f.listingStatus(t, "L2"))
}

func TestCompleteOrderThenRateOnce(t *testing.T) {
	f := newFixture(t)
	order := f.completedOrder(t, "L")
	ctx := context.Background()

	assert.Equal(t, entity.OrderStatusCompleted, order.Status)
	assert.Len(t, order.Timeline, 5)
	assertTimelineInvariant(t, order)
	assert.NotNil(t, order.CompletedAt)
	assert.Equal(t, entity.ListingStatusSold, f.listingStatus(t, "L"))

	rated, err := f.orderUC.AddRating(ctx, buyer, order.ID, 5, "great")
	require.NoError(t, err)
	assert.Equal(t, 5, rated.Rating.Buyer.Score)
	assert.Nil(t, rated.Rating.Seller)

	_, err = f.orderUC.AddRating(ctx, buyer, order.ID, 4, "again")
	assert.True(t, errors.Is(err, errors.CodeAlreadyResolved))

	profile, err := f.users.GetByID(ctx, seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, entity.RatingSummary{Average: 5, Count: 1}, profile.Rating)

	_, err = f.orderUC.AddRating(ctx, seller, order.ID, 3, "")
	require.NoError(t, err)
	profile, err = f.users.GetByID(ctx, buyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Rating.Count)
}

func TestAddRatingPreconditions(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	ctx := context.Background()

	_, err := f.orderUC.AddRating(ctx, buyer, order.ID, 5, "")
	assert.True(t, errors.Is(err, errors.CodeValidationFailed), "not completed")

	_, err = f.orderUC.AddRating(ctx, buyer, order.ID, 6, "")
	assert.True(t, errors.Is(err, errors.CodeValidationFailed), "score range")

	_, err = f.orderUC.AddRating(ctx, stranger, order.ID, 5, "")
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.orderUC.AddRating(ctx, admin, order.ID, 5, "")
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestAggregateRatingMatchesExactMean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scores := []int{5, 3, 4, 1, 5, 2, 4}

	sum := 0
	for i, score := range scores {
		order := f.completedOrder(t, fmt.Sprintf("L%d", i))
		_, err := f.orderUC.AddRating(ctx, buyer, order.ID, score, "")
		require.NoError(t, err)
		sum += score
	}

	profile, err := f.users.GetByID(ctx, seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, len(scores), profile.Rating.Count)
	assert.InDelta(t, float64(sum)/float64(len(scores)), profile.Rating.Average, 1e-9)

	summary, err := f.orderUC.RecomputeRating(ctx, seller.UserID)
	require.NoError(t, err)
	assert.Equal(t, profile.Rating, summary)
}

func TestCancelConfirmedOrderReleasesListing(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	f.advance(t, order.ID, entity.OrderStatusConfirmed)
	f.notifier.Reset()

	cancelled, err := f.orderUC.CancelOrder(context.Background(), buyer, order.ID, "changed mind")
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.Cancellation)
	assert.Equal(t, "changed mind", cancelled.Cancellation.Reason)
	assert.Equal(t, buyer.UserID, cancelled.Cancellation.CancelledBy)
	assert.NotNil(t, cancelled.CancelledAt)
	assertTimelineInvariant(t, cancelled)
	assert.Equal(t, entity.ListingStatusActive, f.listingStatus(t, "L"))

	events := f.notifier.For(seller.UserID)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventOrderCancelled, events[0].Event)
	assert.Empty(t, f.notifier.For(buyer.UserID))
}

func TestCancelRequiresCancellableStatus(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	f.advance(t, order.ID, entity.OrderStatusConfirmed, entity.OrderStatusMeetupScheduled, entity.OrderStatusInProgress)

	_, err := f.orderUC.CancelOrder(context.Background(), buyer, order.ID, "too late")
	require.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = f.orderUC.CancelOrder(context.Background(), buyer, order.ID, "  ")
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))
}

func TestIllegalUpdateLeavesOrderUnchanged(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	ctx := context.Background()
	f.notifier.Reset()

	_, err := f.orderUC.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: entity.OrderStatusCompleted})
	require.True(t, errors.Is(err, errors.CodeInvalidTransition))
	appErr, _ := errors.As(err)
	assert.Equal(t, "pending", appErr.Details["current"])
	assert.Equal(t, "completed", appErr.Details["requested"])

	after, err := f.orderUC.GetOrder(ctx, buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order, after)
	assert.Empty(t, f.notifier.events)

	_, err = f.orderUC.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: "shipped"})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))
}

func TestUpdateStatusNotifiesCounterparty(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	f.notifier.Reset()

	at := time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC)
	updated, err := f.orderUC.UpdateStatus(context.Background(), seller, order.ID, UpdateStatusInput{Status: entity.OrderStatusConfirmed, Note: "see you"})
	require.NoError(t, err)
	_, err = f.orderUC.UpdateStatus(context.Background(), buyer, order.ID, UpdateStatusInput{
		Status: entity.OrderStatusMeetupScheduled,
		Meetup: &entity.MeetupDetails{Location: "Central Station", ScheduledAt: &at},
	})
	require.NoError(t, err)

	assert.Equal(t, "see you", updated.Timeline[1].Note)
	assert.Equal(t, seller.UserID, updated.Timeline[1].ChangedBy)

	toBuyer := f.notifier.For(buyer.UserID)
	require.Len(t, toBuyer, 1)
	assert.Equal(t, entity.EventOrderStatusUpdate, toBuyer[0].Event)
	payload := toBuyer[0].Payload.(entity.OrderEvent)
	assert.Equal(t, entity.OrderStatusConfirmed, payload.Status)
	assert.Equal(t, entity.OrderStatusPending, payload.PreviousStatus)

	stored, err := f.orderUC.GetOrder(context.Background(), seller, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Central Station", stored.Meetup.Location)
	assert.Len(t, f.notifier.For(seller.UserID), 1)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	ctx := context.Background()
	f.notifier.Reset()

	_, err := f.orderUC.UpdateStatus(ctx, stranger, order.ID, UpdateStatusInput{Status: entity.OrderStatusConfirmed})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.orderUC.UpdateStatus(ctx, stranger, "missing", UpdateStatusInput{Status: entity.OrderStatusConfirmed})
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	_, err = f.orderUC.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: entity.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Len(t, f.notifier.For(buyer.UserID), 1)
	assert.Len(t, f.notifier.For(seller.UserID), 1)
}

func TestUpdateStatusToCancelledRecordsReason(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	ctx := context.Background()

	_, err := f.orderUC.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: entity.OrderStatusCancelled})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))

	cancelled, err := f.orderUC.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: entity.OrderStatusCancelled, Note: "sold elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, "sold elsewhere", cancelled.Cancellation.Reason)
	assert.Equal(t, entity.EventOrderCancelled, f.notifier.For(buyer.UserID)[0].Event)
	assert.Equal(t, entity.ListingStatusActive, f.listingStatus(t, "L"))
}

func TestDisputeLifecycle(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	ctx := context.Background()

	_, err := f.orderUC.RaiseDispute(ctx, buyer, order.ID, "not as described")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition), "pending cannot be disputed")

	f.advance(t, order.ID, entity.OrderStatusConfirmed, entity.OrderStatusMeetupScheduled, entity.OrderStatusInProgress)

	disputed, err := f.orderUC.RaiseDispute(ctx, buyer, order.ID, "not as described")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusDisputed, disputed.Status)
	require.NotNil(t, disputed.Dispute)
	assert.Equal(t, "not as described", disputed.Dispute.Reason)
	assert.Equal(t, buyer.UserID, disputed.Dispute.RaisedBy)
	assert.Nil(t, disputed.Dispute.ResolvedAt)

	_, err = f.orderUC.RaiseDispute(ctx, seller, order.ID, "again")
	assert.True(t, errors.Is(err, errors.CodeAlreadyResolved))

	resolved, err := f.orderUC.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: entity.OrderStatusCompleted, Note: "refund declined"})
	require.NoError(t, err)
	require.NotNil(t, resolved.Dispute.ResolvedAt)
	assert.Equal(t, "completed", resolved.Dispute.Resolution)
	assertTimelineInvariant(t, resolved)
	assert.Equal(t, entity.ListingStatusSold, f.listingStatus(t, "L"))
}

func TestConcurrentStatusUpdatesSerialize(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orderUC.UpdateStatus(context.Background(), seller, order.ID, UpdateStatusInput{Status: entity.OrderStatusConfirmed})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
	}
	assert.Equal(t, 1, succeeded)

	stored, err := f.orderUC.GetOrder(context.Background(), seller, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Timeline, 2)
	assertTimelineInvariant(t, stored)
}

func TestUpdateMeetup(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	ctx := context.Background()
	f.notifier.Reset()

	updated, err := f.orderUC.UpdateMeetup(ctx, buyer, order.ID, entity.MeetupDetails{Location: "Library", Notes: "front door"})
	require.NoError(t, err)
	assert.Equal(t, "Library", updated.Meetup.Location)
	assert.Len(t, updated.Timeline, 1)

	events := f.notifier.For(seller.UserID)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventMeetupUpdated, events[0].Event)

	_, err = f.orderUC.UpdateMeetup(ctx, buyer, order.ID, entity.MeetupDetails{})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))

	_, err = f.orderUC.CancelOrder(ctx, buyer, order.ID, "nope")
	require.NoError(t, err)
	_, err = f.orderUC.UpdateMeetup(ctx, buyer, order.ID, entity.MeetupDetails{Location: "Park"})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.listing(t, "L1", seller.UserID, 10)
	f.listing(t, "L2", buyer.UserID, 10)
	f.order(t, "L1")
	_, err := f.orderUC.CreateOrder(ctx, seller, CreateOrderInput{ListingID: "L2", FinalPrice: 5})
	require.NoError(t, err)

	all, total, err := f.orderUC.ListOrders(ctx, buyer, ListOrdersInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	asBuyer, _, err := f.orderUC.ListOrders(ctx, buyer, ListOrdersInput{Role: "buyer"})
	require.NoError(t, err)
	require.Len(t, asBuyer, 1)
	assert.Equal(t, "L1", asBuyer[0].ListingID)

	_, _, err = f.orderUC.ListOrders(ctx, buyer, ListOrdersInput{Role: "courier"})
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))

	none, _, err := f.orderUC.ListOrders(ctx, stranger, ListOrdersInput{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListOrdersByStatusIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.listing(t, "L", seller.UserID, 10)
	f.order(t, "L")

	_, _, err := f.orderUC.ListOrdersByStatus(ctx, buyer, entity.OrderStatusPending, 10, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	orders, total, err := f.orderUC.ListOrdersByStatus(ctx, admin, entity.OrderStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, orders, 1)
}

type failingListings struct {
	domainrepo.ListingRepository
}

func (failingListings) SetStatus(context.Context, string, entity.ListingStatus) error {
	return fmt.Errorf("listing store unavailable")
}

type capturingReporter struct {
	mu       sync.Mutex
	failures []service.FailedFollowUp
}

func (r *capturingReporter) Report(_ context.Context, f service.FailedFollowUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
	return nil
}

func TestFailedListingFlipDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	reporter := &capturingReporter{}
	runner := followup.NewRunner(followup.Options{Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond}, reporter)
	defer runner.Stop(context.Background())
	f.orderUC.listingRepo = failingListings{f.listings}
	f.orderUC.followUps = runner

	order, err := f.orderUC.CreateOrder(context.Background(), buyer, CreateOrderInput{ListingID: "L", FinalPrice: 10})
	require.NoError(t, err)
	runner.Wait()

	stored, err := f.orderUC.GetOrder(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPending, stored.Status)

	require.Len(t, reporter.failures, 1)
	assert.Equal(t, service.FollowUpListingStatus, reporter.failures[0].Kind)
	assert.Equal(t, order.ID, reporter.failures[0].AggregateID)
	assert.Equal(t, "L:reserved", reporter.failures[0].Target)
}

// flakyListings fails the first write of failStatus, then behaves.
type flakyListings struct {
	domainrepo.ListingRepository
	failStatus entity.ListingStatus

	mu     sync.Mutex
	failed bool
}

func (l *flakyListings) SetStatus(ctx context.Context, id string, status entity.ListingStatus) error {
	l.mu.Lock()
	fail := status == l.failStatus && !l.failed
	if fail {
		l.failed = true
	}
	l.mu.Unlock()
	if fail {
		return fmt.Errorf("listing store unavailable")
	}
	return l.ListingRepository.SetStatus(ctx, id, status)
}

func TestRetriedReserveDoesNotOverrideCancel(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	reporter := &capturingReporter{}
	runner := followup.NewRunner(followup.Options{Workers: 4, MaxAttempts: 3, Backoff: 50 * time.Millisecond}, reporter)
	defer runner.Stop(context.Background())
	f.orderUC.listingRepo = &flakyListings{ListingRepository: f.listings, failStatus: entity.ListingStatusReserved}
	f.orderUC.followUps = runner

	order, err := f.orderUC.CreateOrder(context.Background(), buyer, CreateOrderInput{ListingID: "L", FinalPrice: 10})
	require.NoError(t, err)
	_, err = f.orderUC.CancelOrder(context.Background(), buyer, order.ID, "changed mind")
	require.NoError(t, err)
	runner.Wait()

	stored, err := f.orderUC.GetOrder(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, stored.Status)
	assert.Equal(t, entity.ListingStatusActive, f.listingStatus(t, "L"))
	assert.Empty(t, reporter.failures)
}

func TestRetriedSoldFlipLands(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	runner := followup.NewRunner(followup.Options{Workers: 2, MaxAttempts: 3, Backoff: time.Millisecond}, &capturingReporter{})
	defer runner.Stop(context.Background())
	f.orderUC.listingRepo = &flakyListings{ListingRepository: f.listings, failStatus: entity.ListingStatusSold}
	f.orderUC.followUps = runner

	order := f.order(t, "L")
	f.advance(t, order.ID,
		entity.OrderStatusConfirmed,
		entity.OrderStatusMeetupScheduled,
		entity.OrderStatusInProgress,
		entity.OrderStatusCompleted,
	)
	runner.Wait()

	assert.Equal(t, entity.ListingStatusSold, f.listingStatus(t, "L"))
}

func TestSyncListingStatusFollowsCurrentOrder(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "L", seller.UserID, 10)
	order := f.order(t, "L")
	f.advance(t, order.ID, entity.OrderStatusConfirmed)
	_, err := f.orderUC.CancelOrder(context.Background(), seller, order.ID, "sold elsewhere")
	require.NoError(t, err)

	// a late sync for the original reservation reads the cancelled order
	require.NoError(t, f.listings.SetStatus(context.Background(), "L", entity.ListingStatusReserved))
	require.NoError(t, f.orderUC.SyncListingStatus(context.Background(), order.ID))
	assert.Equal(t, entity.ListingStatusActive, f.listingStatus(t, "L"))

	err = f.orderUC.SyncListingStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}
