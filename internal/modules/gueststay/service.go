package gueststay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gueststay/internal/domain/stay"
	"gueststay/internal/eventstore"
	"gueststay/internal/pkg/metrics"
	"gueststay/internal/pkg/validator"
	"gueststay/internal/repository"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 10 * time.Millisecond
)

// DecideFunc produces the events to append for the current account state.
type DecideFunc func(state stay.Account) ([]stay.Event, error)

type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        func() time.Time
}

// Result is the outcome of a successfully handled command.
type Result struct {
	AccountID string
	Version   int64
	State     stay.Account
	Events    []stay.Event
}

// CheckoutOutcome tells a completed checkout from a recorded failure.
type CheckoutOutcome struct {
	AccountID  string
	CheckedOut bool
	Reason     stay.CheckoutFailureReason
	At         time.Time
}

type Service struct {
	store       eventstore.Store
	details     DetailsRepository
	publisher   Publisher
	metrics     Metrics
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
	backoff     time.Duration
}

// NewService wires the command handler. details, publisher and m may be nil;
// without details, queries fold the event streams directly.
func NewService(store eventstore.Store, details DetailsRepository, publisher Publisher, m Metrics, logger *slog.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if m == nil {
		m = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		store:       store,
		details:     details,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		now:         opts.Clock,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
	}
}

// Handle runs decide against the current state of accountID and appends the
// result, retrying from a fresh read when another writer got there first.
// Errors from decide abort without appending.
func (s *Service) Handle(ctx context.Context, accountID string, decide DecideFunc) (*Result, error) {
	return s.handle(ctx, "Handle", accountID, decide)
}

func (s *Service) CheckIn(ctx context.Context, guestID, roomID string) (string, time.Time, error) {
	now := s.now()
	cmd := stay.CheckIn{GuestID: stay.NormalizeID(guestID), RoomID: stay.NormalizeID(roomID), Now: now}
	accountID := stay.AccountID(cmd.GuestID, cmd.RoomID, now)

	if _, err := s.execute(ctx, accountID, cmd); err != nil {
		return "", time.Time{}, err
	}
	return accountID, now, nil
}

func (s *Service) RecordCharge(ctx context.Context, accountID, chargeID string, amount decimal.Decimal) error {
	cmd := stay.RecordCharge{GuestStayAccountID: accountID, ChargeID: strings.TrimSpace(chargeID), Amount: amount, Now: s.now()}
	_, err := s.execute(ctx, accountID, cmd)
	return err
}

func (s *Service) RecordPayment(ctx context.Context, accountID, paymentID string, amount decimal.Decimal) error {
	cmd := stay.RecordPayment{GuestStayAccountID: accountID, PaymentID: strings.TrimSpace(paymentID), Amount: amount, Now: s.now()}
	_, err := s.execute(ctx, accountID, cmd)
	return err
}

// CheckOut never reports an unsettled or unopened account as an error; the
// failure is recorded as an event and returned in the outcome.
func (s *Service) CheckOut(ctx context.Context, accountID, groupCheckoutID string) (*CheckoutOutcome, error) {
	cmd := stay.CheckOut{GuestStayAccountID: accountID, GroupCheckoutID: strings.TrimSpace(groupCheckoutID), Now: s.now()}
	res, err := s.execute(ctx, accountID, cmd)
	if err != nil {
		return nil, err
	}

	out := &CheckoutOutcome{AccountID: accountID}
	for _, evt := range res.Events {
		switch e := evt.(type) {
		case stay.GuestCheckedOut:
			out.CheckedOut = true
			out.At = e.CheckedOutAt
		case stay.GuestCheckoutFailed:
			out.Reason = e.Reason
			out.At = e.FailedAt
		}
	}
	return out, nil
}

// GetDetails returns the projected view of one account.
func (s *Service) GetDetails(ctx context.Context, accountID string) (*stay.Details, error) {
	if s.details == nil {
		history, _, err := s.load(ctx, accountID)
		if err != nil {
			return nil, err
		}
		d := stay.FoldDetails(history)
		if d == nil {
			return nil, ErrNotFound
		}
		return d, nil
	}

	d, _, err := s.details.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrStayNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListGuestStays returns all stays of a guest, newest check-in first.
func (s *Service) ListGuestStays(ctx context.Context, guestID string) ([]stay.Details, error) {
	guestID = stay.NormalizeID(guestID)
	if guestID == "" {
		return nil, fmt.Errorf("%w: guest id is required", ErrValidation)
	}
	if s.details != nil {
		return s.details.ListByGuest(ctx, guestID)
	}

	ids, err := s.store.StreamIDs(ctx)
	if err != nil {
		return nil, err
	}
	prefix := stay.GuestStreamPrefix(guestID)
	out := []stay.Details{}
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		history, _, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if d := stay.FoldDetails(history); d != nil && d.GuestID == guestID {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckedInAt.After(out[j].CheckedInAt) })
	return out, nil
}

// RebuildProjections clears the read model and replays every stream into it.
func (s *Service) RebuildProjections(ctx context.Context) (int, error) {
	if s.details == nil {
		return 0, ErrReadModelDisabled
	}
	if err := s.details.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("clear read model: %w", err)
	}

	ids, err := s.store.StreamIDs(ctx)
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	for _, id := range ids {
		history, version, err := s.load(ctx, id)
		if err != nil {
			return rebuilt, err
		}
		d := stay.FoldDetails(history)
		if d == nil {
			continue
		}
		if _, err := s.details.Save(ctx, d, version); err != nil {
			return rebuilt, fmt.Errorf("project %s: %w", id, err)
		}
		rebuilt++
	}

	s.logger.Info("read model rebuilt", slog.Int("streams", len(ids)), slog.Int("stays", rebuilt))
	return rebuilt, nil
}

func (s *Service) execute(ctx context.Context, accountID string, cmd stay.Command) (*Result, error) {
	if errs := validator.Validate(cmd); errs != nil {
		s.metrics.RecordCommand(cmd.Name(), metrics.OutcomeRejected, 0)
		return nil, fmt.Errorf("%w: %s", ErrValidation, validator.Message(errs))
	}
	return s.handle(ctx, cmd.Name(), accountID, func(state stay.Account) ([]stay.Event, error) {
		return stay.Decide(cmd, state)
	})
}

func (s *Service) handle(ctx context.Context, command, accountID string, decide DecideFunc) (*Result, error) {
	start := time.Now()
	res, err := s.run(ctx, command, accountID, decide)
	outcome := outcomeOf(err)
	s.metrics.RecordCommand(command, outcome, time.Since(start))

	if err != nil {
		lvl := slog.LevelWarn
		if outcome == metrics.OutcomeError {
			lvl = slog.LevelError
		}
		s.logger.Log(ctx, lvl, "command failed",
			slog.String("command", command),
			slog.String("account_id", accountID),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Debug("command handled",
		slog.String("command", command),
		slog.String("account_id", accountID),
		slog.Int64("version", res.Version))
	return res, nil
}

func (s *Service) run(ctx context.Context, command, accountID string, decide DecideFunc) (*Result, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrValidation)
	}

	for attempt := 1; ; attempt++ {
		history, version, err := s.load(ctx, accountID)
		if err != nil {
			return nil, err
		}
		state := stay.Fold(history)

		events, err := decide(state)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return &Result{AccountID: accountID, Version: version, State: state}, nil
		}

		data, err := encodeEvents(events)
		if err != nil {
			return nil, err
		}

		newVersion, err := s.store.Append(ctx, accountID, version, data)
		if err == nil {
			next := state
			for _, evt := range events {
				next = stay.Evolve(next, evt)
			}
			s.afterAppend(ctx, accountID, history, events, data, version, newVersion)
			return &Result{AccountID: accountID, Version: newVersion, State: next, Events: events}, nil
		}

		if !errors.Is(err, eventstore.ErrVersionConflict) {
			return nil, err
		}
		if attempt >= s.maxAttempts {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrConcurrencyConflict, accountID, attempt, err)
		}

		s.metrics.RecordRetry(command)
		s.logger.Warn("stream version conflict, retrying",
			slog.String("command", command),
			slog.String("account_id", accountID),
			slog.Int("attempt", attempt))
		if err := sleep(ctx, s.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
}

func (s *Service) load(ctx context.Context, accountID string) ([]stay.Event, int64, error) {
	recorded, version, err := s.store.ReadStream(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	events := make([]stay.Event, 0, len(recorded))
	for _, r := range recorded {
		evt, err := stay.UnmarshalEvent(stay.EventType(r.Type), r.Data)
		if err != nil {
			return nil, 0, fmt.Errorf("decode %s v%d: %w", accountID, r.Version, err)
		}
		events = append(events, evt)
	}
	return events, version, nil
}

func (s *Service) afterAppend(ctx context.Context, accountID string, history, appended []stay.Event, data []eventstore.EventData, fromVersion, toVersion int64) {
	for _, evt := range appended {
		if failed, ok := evt.(stay.GuestCheckoutFailed); ok {
			s.metrics.RecordCheckoutFailure(string(failed.Reason))
		}
	}

	all := make([]stay.Event, 0, len(history)+len(appended))
	all = append(all, history...)
	all = append(all, appended...)
	s.project(context.WithoutCancel(ctx), accountID, all, toVersion)

	recorded := make([]eventstore.RecordedEvent, 0, len(data))
	for i, d := range data {
		recorded = append(recorded, eventstore.RecordedEvent{
			StreamID:   accountID,
			Version:    fromVersion + int64(i) + 1,
			Type:       d.Type,
			Data:       d.Data,
			RecordedAt: d.RecordedAt,
		})
	}
	s.publisher.Publish(accountID, recorded)
}

// project stores the folded view. The event log stays the source of truth,
// so a failed save is logged and left for RebuildProjections.
func (s *Service) project(ctx context.Context, accountID string, all []stay.Event, version int64) {
	if s.details == nil {
		return
	}
	d := stay.FoldDetails(all)
	if d == nil {
		return
	}

	saved, err := s.details.Save(ctx, d, version)
	switch {
	case err != nil:
		s.metrics.RecordProjection("error")
		s.logger.Error("project guest stay",
			slog.String("account_id", accountID),
			slog.Int64("version", version),
			slog.String("error", err.Error()))
	case saved:
		s.metrics.RecordProjection("updated")
	default:
		s.metrics.RecordProjection("stale")
	}
}

func encodeEvents(events []stay.Event) ([]eventstore.EventData, error) {
	data := make([]eventstore.EventData, 0, len(events))
	for _, evt := range events {
		eventType, payload, err := stay.MarshalEvent(evt)
		if err != nil {
			return nil, err
		}
		data = append(data, eventstore.EventData{
			Type:       string(eventType),
			Data:       payload,
			RecordedAt: evt.OccurredAt(),
		})
	}
	return data, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrConcurrencyConflict):
		return metrics.OutcomeConflict
	case stay.IsIllegalState(err),
		errors.Is(err, stay.ErrInvalidAmount),
		errors.Is(err, stay.ErrInvalidCommand),
		errors.Is(err, ErrValidation):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
