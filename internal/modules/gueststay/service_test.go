package gueststay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gueststay/internal/database"
	"gueststay/internal/domain/stay"
	"gueststay/internal/eventstore"
	"gueststay/internal/repository"
)

var testNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ReadStream(ctx context.Context, streamID string) ([]eventstore.RecordedEvent, int64, error) {
	args := m.Called(ctx, streamID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]eventstore.RecordedEvent), args.Get(1).(int64), args.Error(2)
}

func (m *MockStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []eventstore.EventData) (int64, error) {
	args := m.Called(ctx, streamID, expectedVersion, events)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) StreamIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type MockDetailsRepository struct {
	mock.Mock
}

func (m *MockDetailsRepository) Get(ctx context.Context, id string) (*stay.Details, int64, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).(*stay.Details), args.Get(1).(int64), args.Error(2)
}

func (m *MockDetailsRepository) ListByGuest(ctx context.Context, guestID string) ([]stay.Details, error) {
	args := m.Called(ctx, guestID)
	return args.Get(0).([]stay.Details), args.Error(1)
}

func (m *MockDetailsRepository) Save(ctx context.Context, d *stay.Details, version int64) (bool, error) {
	args := m.Called(ctx, d, version)
	return args.Bool(0), args.Error(1)
}

func (m *MockDetailsRepository) DeleteAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(streamID string, events []eventstore.RecordedEvent) {
	m.Called(streamID, events)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordCommand(command, outcome string, duration time.Duration) {
	m.Called(command, outcome, duration)
}

func (m *MockMetrics) RecordRetry(command string) {
	m.Called(command)
}

func (m *MockMetrics) RecordCheckoutFailure(reason string) {
	m.Called(reason)
}

func (m *MockMetrics) RecordProjection(result string) {
	m.Called(result)
}

func newMemoryService(details DetailsRepository) (*Service, *eventstore.MemoryStore) {
	store := eventstore.NewMemoryStore()
	return NewService(store, details, nil, nil, nil, Options{Clock: testClock}), store
}

func streamTypes(t *testing.T, store eventstore.Store, id string) []string {
	t.Helper()
	events, _, err := store.ReadStream(context.Background(), id)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func recordedCheckIn(t *testing.T, id string) eventstore.RecordedEvent {
	t.Helper()
	_, data, err := stay.MarshalEvent(stay.GuestCheckedIn{GuestStayAccountID: id, GuestID: "guest-1", RoomID: "room-7", CheckedInAt: testNow})
	require.NoError(t, err)
	return eventstore.RecordedEvent{StreamID: id, Version: 1, Type: string(stay.EventGuestCheckedIn), Data: data, RecordedAt: testNow}
}

func TestService_FullStay(t *testing.T) {
	svc, store := newMemoryService(nil)
	ctx := context.Background()

	id, checkedInAt, err := svc.CheckIn(ctx, "guest-1", "room-7")
	require.NoError(t, err)
	assert.Equal(t, "guest_stay_account-guest-1:room-7:2024-03-09", id)
	assert.Equal(t, testNow, checkedInAt)

	require.NoError(t, svc.RecordCharge(ctx, id, "c-1", decimal.NewFromInt(40)))

	out, err := svc.CheckOut(ctx, id, "")
	require.NoError(t, err)
	assert.False(t, out.CheckedOut)
	assert.Equal(t, stay.ReasonBalanceNotSettled, out.Reason)

	require.NoError(t, svc.RecordPayment(ctx, id, "p-1", decimal.NewFromInt(40)))

	out, err = svc.CheckOut(ctx, id, "group-1")
	require.NoError(t, err)
	assert.True(t, out.CheckedOut)
	assert.Equal(t, testNow, out.At)

	assert.Equal(t, []string{"GuestCheckedIn", "ChargeRecorded", "GuestCheckoutFailed", "PaymentRecorded", "GuestCheckedOut"},
		streamTypes(t, store, id))

	d, err := svc.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, stay.StatusCheckedOut, d.Status)
	assert.True(t, d.Balance.IsZero())
	assert.Equal(t, 2, d.TransactionsCount)
	require.NotNil(t, d.CheckedOutAt)
}

func TestService_CheckInTwice(t *testing.T) {
	svc, store := newMemoryService(nil)
	ctx := context.Background()

	id, _, err := svc.CheckIn(ctx, "guest-1", "room-7")
	require.NoError(t, err)

	_, _, err = svc.CheckIn(ctx, "guest-1", "room-7")
	assert.ErrorIs(t, err, stay.ErrAlreadyCheckedIn)
	assert.Equal(t, []string{"GuestCheckedIn"}, streamTypes(t, store, id))
}

func TestService_CheckInAfterCheckout(t *testing.T) {
	svc, _ := newMemoryService(nil)
	ctx := context.Background()

	id, _, err := svc.CheckIn(ctx, "guest-1", "room-7")
	require.NoError(t, err)
	out, err := svc.CheckOut(ctx, id, "")
	require.NoError(t, err)
	require.True(t, out.CheckedOut)

	_, _, err = svc.CheckIn(ctx, "guest-1", "room-7")
	assert.ErrorIs(t, err, stay.ErrAlreadyCheckedOut)
}

func TestService_ChargeUnknownAccount(t *testing.T) {
	svc, store := newMemoryService(nil)
	id := stay.AccountID("guest-1", "room-7", testNow)

	err := svc.RecordCharge(context.Background(), id, "c-1", decimal.NewFromInt(10))

	assert.ErrorIs(t, err, stay.ErrAccountNotFound)
	assert.True(t, stay.IsIllegalState(err))
	assert.Empty(t, streamTypes(t, store, id))
}

func TestService_RejectsNonPositiveAmounts(t *testing.T) {
	svc, _ := newMemoryService(nil)
	ctx := context.Background()
	id, _, err := svc.CheckIn(ctx, "guest-1", "room-7")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RecordCharge(ctx, id, "c-1", decimal.Zero), stay.ErrInvalidAmount)
	assert.ErrorIs(t, svc.RecordPayment(ctx, id, "p-1", decimal.NewFromInt(-5)), stay.ErrInvalidAmount)
}

func TestService_ValidatesInput(t *testing.T) {
	svc, _ := newMemoryService(nil)
	ctx := context.Background()

	_, _, err := svc.CheckIn(ctx, " ", "room-7")
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.RecordCharge(ctx, stay.AccountID("guest-1", "room-7", testNow), "", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ListGuestStays(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_CheckOutNeverOpened(t *testing.T) {
	svc, store := newMemoryService(nil)
	ctx := context.Background()
	id := stay.AccountID("guest-1", "room-7", testNow)

	out, err := svc.CheckOut(ctx, id, "group-9")
	require.NoError(t, err)
	assert.False(t, out.CheckedOut)
	assert.Equal(t, stay.ReasonNotOpened, out.Reason)
	assert.Equal(t, []string{"GuestCheckoutFailed"}, streamTypes(t, store, id))

	_, err = svc.GetDetails(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// The failed attempt does not block a later check-in.
	_, _, err = svc.CheckIn(ctx, "guest-1", "room-7")
	assert.NoError(t, err)
}

func TestService_ConcurrentCheckInHasOneWinner(t *testing.T) {
	svc, store := newMemoryService(nil)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CheckIn(ctx, "guest-1", "room-7")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, stay.ErrAlreadyCheckedIn)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, []string{"GuestCheckedIn"}, streamTypes(t, store, stay.AccountID("guest-1", "room-7", testNow)))
}

func TestService_ConflictsExhaustRetries(t *testing.T) {
	store := new(MockStore)
	m := new(MockMetrics)
	svc := NewService(store, nil, nil, m, nil, Options{MaxAttempts: 3, Clock: testClock})
	id := stay.AccountID("guest-1", "room-7", testNow)

	store.On("ReadStream", mock.Anything, id).Return([]eventstore.RecordedEvent{}, int64(0), nil)
	store.On("Append", mock.Anything, id, int64(0), mock.Anything).Return(int64(0), eventstore.ErrVersionConflict)
	m.On("RecordRetry", "CheckIn").Return()
	m.On("RecordCommand", "CheckIn", "conflict", mock.Anything).Return()

	_, _, err := svc.CheckIn(context.Background(), "guest-1", "room-7")

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.ErrorIs(t, err, eventstore.ErrVersionConflict)
	store.AssertNumberOfCalls(t, "ReadStream", 3)
	store.AssertNumberOfCalls(t, "Append", 3)
	m.AssertNumberOfCalls(t, "RecordRetry", 2)
	m.AssertExpectations(t)
}

func TestService_RetryRereadsState(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store, nil, nil, nil, nil, Options{MaxAttempts: 3, Clock: testClock})
	id := stay.AccountID("guest-1", "room-7", testNow)
	opened := recordedCheckIn(t, id)

	store.On("ReadStream", mock.Anything, id).Return([]eventstore.RecordedEvent{}, int64(0), nil).Once()
	store.On("ReadStream", mock.Anything, id).Return([]eventstore.RecordedEvent{opened}, int64(1), nil).Once()
	store.On("Append", mock.Anything, id, int64(0), mock.Anything).Return(int64(0), eventstore.ErrVersionConflict).Once()
	store.On("Append", mock.Anything, id, int64(1), mock.MatchedBy(func(evts []eventstore.EventData) bool {
		return len(evts) == 1 && evts[0].Type == string(stay.EventChargeRecorded)
	})).Return(int64(2), nil).Once()

	// First attempt sees no account yet, so it goes through the custom decider path.
	res, err := svc.Handle(context.Background(), id, func(state stay.Account) ([]stay.Event, error) {
		if state.Status() == stay.StatusNotExisting {
			return []stay.Event{stay.ChargeRecorded{GuestStayAccountID: id, ChargeID: "c-1", Amount: decimal.NewFromInt(1), RecordedAt: testNow}}, nil
		}
		return stay.Decide(stay.RecordCharge{GuestStayAccountID: id, ChargeID: "c-1", Amount: decimal.NewFromInt(10), Now: testNow}, state)
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Version)
	opened2, ok := res.State.(stay.Opened)
	require.True(t, ok)
	assert.True(t, opened2.Balance.Equal(decimal.NewFromInt(-10)))
	store.AssertExpectations(t)
}

func TestService_DecideErrorsNeverAppend(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store, nil, nil, nil, nil, Options{Clock: testClock})
	id := stay.AccountID("guest-1", "room-7", testNow)

	store.On("ReadStream", mock.Anything, id).Return([]eventstore.RecordedEvent{recordedCheckIn(t, id)}, int64(1), nil)

	_, _, err := svc.CheckIn(context.Background(), "guest-1", "room-7")

	assert.ErrorIs(t, err, stay.ErrAlreadyCheckedIn)
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_StoreErrorsAreNotRetried(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store, nil, nil, nil, nil, Options{Clock: testClock})
	id := stay.AccountID("guest-1", "room-7", testNow)
	boom := errors.New("disk full")

	store.On("ReadStream", mock.Anything, id).Return([]eventstore.RecordedEvent{}, int64(0), nil)
	store.On("Append", mock.Anything, id, int64(0), mock.Anything).Return(int64(0), boom)

	_, _, err := svc.CheckIn(context.Background(), "guest-1", "room-7")

	assert.ErrorIs(t, err, boom)
	store.AssertNumberOfCalls(t, "Append", 1)
}

func TestService_HandleWithoutEventsSkipsAppend(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store, nil, nil, nil, nil, Options{Clock: testClock})

	store.On("ReadStream", mock.Anything, "acc").Return([]eventstore.RecordedEvent{}, int64(0), nil)

	res, err := svc.Handle(context.Background(), "acc", func(stay.Account) ([]stay.Event, error) { return nil, nil })

	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Version)
	assert.Equal(t, stay.StatusNotExisting, res.State.Status())
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_PublishesAndProjects(t *testing.T) {
	details := new(MockDetailsRepository)
	pub := new(MockPublisher)
	m := new(MockMetrics)
	store := eventstore.NewMemoryStore()
	svc := NewService(store, details, pub, m, nil, Options{Clock: testClock})
	id := stay.AccountID("guest-1", "room-7", testNow)

	details.On("Save", mock.Anything, mock.MatchedBy(func(d *stay.Details) bool {
		return d.ID == id && d.Status == stay.StatusOpened
	}), int64(1)).Return(true, nil).Once()
	pub.On("Publish", id, mock.MatchedBy(func(evts []eventstore.RecordedEvent) bool {
		return len(evts) == 1 && evts[0].Version == 1 && evts[0].Type == string(stay.EventGuestCheckedIn)
	})).Return().Once()
	m.On("RecordProjection", "updated").Return().Once()
	m.On("RecordCommand", "CheckIn", "success", mock.Anything).Return().Once()

	_, _, err := svc.CheckIn(context.Background(), "guest-1", "room-7")

	require.NoError(t, err)
	details.AssertExpectations(t)
	pub.AssertExpectations(t)
	m.AssertExpectations(t)
}

func TestService_ProjectionFailureDoesNotFailCommand(t *testing.T) {
	details := new(MockDetailsRepository)
	svc := NewService(eventstore.NewMemoryStore(), details, nil, nil, nil, Options{Clock: testClock})

	details.On("Save", mock.Anything, mock.Anything, int64(1)).Return(false, errors.New("db down"))

	_, _, err := svc.CheckIn(context.Background(), "guest-1", "room-7")

	assert.NoError(t, err)
	details.AssertExpectations(t)
}

func TestService_CheckoutFailureMetrics(t *testing.T) {
	m := new(MockMetrics)
	svc := NewService(eventstore.NewMemoryStore(), nil, nil, m, nil, Options{Clock: testClock})

	m.On("RecordCheckoutFailure", "NotOpened").Return().Once()
	m.On("RecordCommand", "CheckOut", "success", mock.Anything).Return().Once()

	_, err := svc.CheckOut(context.Background(), stay.AccountID("guest-1", "room-7", testNow), "")

	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestService_GetDetailsMapsNotFound(t *testing.T) {
	details := new(MockDetailsRepository)
	svc := NewService(eventstore.NewMemoryStore(), details, nil, nil, nil, Options{Clock: testClock})

	details.On("Get", mock.Anything, "acc").Return(nil, int64(0), repository.ErrStayNotFound)

	_, err := svc.GetDetails(context.Background(), "acc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListGuestStaysFromStreams(t *testing.T) {
	clock := testNow
	store := eventstore.NewMemoryStore()
	svc := NewService(store, nil, nil, nil, nil, Options{Clock: func() time.Time { return clock }})
	ctx := context.Background()

	_, _, err := svc.CheckIn(ctx, "guest-1", "room-7")
	require.NoError(t, err)
	clock = testNow.AddDate(0, 0, 1)
	_, _, err = svc.CheckIn(ctx, "guest-1", "room-8")
	require.NoError(t, err)
	_, _, err = svc.CheckIn(ctx, "guest-10", "room-9")
	require.NoError(t, err)

	list, err := svc.ListGuestStays(ctx, "guest-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "room-8", list[0].RoomID)
	assert.Equal(t, "room-7", list[1].RoomID)
}

func TestService_RebuildProjections(t *testing.T) {
	dsn := fmt.Sprintf("file:gueststay_service_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(repository.Models()...))
	repo := repository.NewStayDetailsRepository(db)
	ctx := context.Background()

	// Build history without a read model, then rebuild it.
	store := eventstore.NewMemoryStore()
	writer := NewService(store, nil, nil, nil, nil, Options{Clock: testClock})
	id, _, err := writer.CheckIn(ctx, "guest-1", "room-7")
	require.NoError(t, err)
	require.NoError(t, writer.RecordCharge(ctx, id, "c-1", decimal.NewFromInt(25)))
	_, err = writer.CheckOut(ctx, stay.AccountID("ghost", "room-1", testNow), "")
	require.NoError(t, err)

	svc := NewService(store, repo, nil, nil, nil, Options{Clock: testClock})
	n, err := svc.RebuildProjections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err := svc.GetDetails(ctx, id)
	require.NoError(t, err)
	assert.True(t, d.Balance.Equal(decimal.NewFromInt(-25)))
	assert.Equal(t, 1, d.TransactionsCount)

	_, version, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestService_RebuildRequiresReadModel(t *testing.T) {
	svc, _ := newMemoryService(nil)

	_, err := svc.RebuildProjections(context.Background())
	assert.ErrorIs(t, err, ErrReadModelDisabled)
}
