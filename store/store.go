// Package store keeps the authoritative order collection in memory and
// persists every mutation through a db.TableWrapper, reverting the
// collection when the write fails.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	odiff "github.com/r3labs/diff/v3"

	"travelbook/calc"
	"travelbook/codec"
	dbt "travelbook/db/db"
	"travelbook/libs/diff"
	"travelbook/mq/mq"
	"travelbook/order"
)

// NotFoundError reports an id that is not in the collection.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %d not found", e.ID)
}

// NotLoadedError is returned by mutations while the collection does not
// reflect the backing store, because no load has succeeded yet or the last
// one failed. Writing then would replace the stored table with a partial one.
type NotLoadedError struct {
	// Err is the last load failure, nil when no load was attempted.
	Err error
}

func (e *NotLoadedError) Error() string {
	msg := "orders are not loaded, reload before editing"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotLoadedError) Unwrap() error {
	return e.Err
}

// Store is safe for concurrent use; every call runs under one mutex, held
// across the backend write.
type Store struct {
	mu        sync.Mutex
	backend   dbt.TableWrapper
	clock     clockwork.Clock
	publisher mq.OrderPublisher
	policy    order.AmountPolicy
	differ    *odiff.Differ

	orders []order.Order
	nextID int
	// loaded is set only by a successful LoadAll
	loaded  bool
	loadErr error
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithPublisher sets where committed changes are announced.
func WithPublisher(p mq.OrderPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithAmountPolicy(p order.AmountPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// New returns an empty store over backend. Mutations fail with NotLoadedError
// until LoadAll succeeds.
func New(backend dbt.TableWrapper, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		clock:     clockwork.NewRealClock(),
		publisher: mq.Discard{},
		policy:    order.AmountNonNegative,
		differ:    diff.GetCustomDiffer(),
		orders:    []order.Order{},
		nextID:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) now() string {
	return s.clock.Now().Format(order.TimeLayout)
}

// LoadAll replaces the collection with the backend contents. On any failure
// the collection is left empty and the error is returned with an empty slice,
// so callers can keep running in a degraded state.
func (s *Store) LoadAll(ctx context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = []order.Order{}
	s.nextID = 1
	s.loaded = false

	rows, err := s.backend.Load(ctx)
	if err != nil {
		slog.Error("failed to load orders", "err", err)
		s.loadErr = fmt.Errorf("load orders: %w", err)
		return []order.Order{}, s.loadErr
	}
	decoded, err := codec.DecodeTable(rows)
	if err != nil {
		slog.Error("stored table does not match the order schema", "err", err)
		s.loadErr = fmt.Errorf("load orders: %w", err)
		return []order.Order{}, s.loadErr
	}

	seen := make(map[int]bool, len(decoded))
	kept := make([]order.Order, 0, len(decoded))
	maxID := 0
	for _, o := range decoded {
		switch {
		case o.ID <= 0:
			slog.Warn("discarding stored order without a valid id", "id", o.ID, "customer", o.CustomerName)
			continue
		case seen[o.ID]:
			slog.Warn("discarding stored order with duplicate id", "id", o.ID, "customer", o.CustomerName)
			continue
		}
		seen[o.ID] = true
		kept = append(kept, o)
		maxID = max(maxID, o.ID)
	}

	s.orders = kept
	s.nextID = maxID + 1
	s.loaded, s.loadErr = true, nil
	slog.Info("loaded orders", "count", len(kept), "next_id", s.nextID)
	return cloneAll(kept), nil
}

// Loaded reports whether the last LoadAll succeeded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Store) checkLoaded() error {
	if !s.loaded {
		return &NotLoadedError{Err: s.loadErr}
	}
	return nil
}

// persist writes candidate as the whole table.
func (s *Store) persist(ctx context.Context, candidate []order.Order) error {
	if err := s.backend.ReplaceAll(ctx, codec.EncodeTable(candidate)); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, msg mq.OrderMessage) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		slog.Warn("failed to publish order event", "action", msg.Action, "order_id", msg.OrderID, "err", err)
	}
}

// Create validates and stores a new order.
func (s *Store) Create(ctx context.Context, d order.Draft) (order.Order, error) {
	if err := d.Validate(s.policy); err != nil {
		return order.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return order.Order{}, err
	}

	o := order.Order{ID: s.nextID, Draft: d.Normalize(), CreatedAt: s.now()}
	o.Derived = calc.Derive(o.Draft)

	candidate := append(cloneAll(s.orders), o)
	if err := s.persist(ctx, candidate); err != nil {
		slog.Error("failed to save new order, collection unchanged", "id", o.ID, "err", err)
		return order.Order{}, err
	}
	s.orders = candidate
	s.nextID++

	slog.Info("order created", "id", o.ID, "customer", o.CustomerName)
	created := o.Clone()
	s.publish(ctx, mq.NewOrderMessage(mq.ActionCreate, o.ID, &created, o.CreatedAt))
	return o.Clone(), nil
}

// Update replaces the inputs of an existing order, keeping its id and created_at.
func (s *Store) Update(ctx context.Context, id int, d order.Draft) (order.Order, error) {
	if err := d.Validate(s.policy); err != nil {
		return order.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return order.Order{}, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return order.Order{}, &NotFoundError{ID: id}
	}
	previous := s.orders[idx]

	o := order.Order{ID: id, Draft: d.Normalize(), CreatedAt: previous.CreatedAt, UpdatedAt: s.now()}
	o.Derived = calc.Derive(o.Draft)

	candidate := cloneAll(s.orders)
	candidate[idx] = o
	if err := s.persist(ctx, candidate); err != nil {
		slog.Error("failed to save updated order, previous version kept", "id", id, "err", err)
		return order.Order{}, err
	}
	s.orders = candidate

	changes, err := diff.OrderChanges(s.differ, previous, o)
	if err != nil {
		slog.Warn("failed to compute change log", "id", id, "err", err)
	}
	slog.Info("order updated", "id", id, "changes", len(changes))
	for _, c := range changes {
		slog.Debug("order field changed", "id", id, "change", c.String())
	}

	updated := o.Clone()
	msg := mq.NewOrderMessage(mq.ActionUpdate, id, &updated, o.UpdatedAt)
	msg.Changes = changes
	s.publish(ctx, msg)
	return o.Clone(), nil
}

// Delete removes an order.
func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return &NotFoundError{ID: id}
	}

	candidate := slices.Delete(cloneAll(s.orders), idx, idx+1)
	if err := s.persist(ctx, candidate); err != nil {
		slog.Error("failed to save after delete, order kept", "id", id, "err", err)
		return err
	}
	s.orders = candidate

	slog.Info("order deleted", "id", id)
	s.publish(ctx, mq.NewOrderMessage(mq.ActionDelete, id, nil, s.now()))
	return nil
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.orders, func(o order.Order) bool { return o.ID == id })
}

// Orders returns a copy of the collection in storage order.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.orders)
}

// Get returns a copy of one order.
func (s *Store) Get(id int) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return order.Order{}, &NotFoundError{ID: id}
	}
	return s.orders[idx].Clone(), nil
}

// NextID is the id the next created order will receive.
func (s *Store) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// Search returns the orders whose customer name, phone, notes, route lines or
// partner names contain term, ignoring case. An empty term matches everything.
func (s *Store) Search(term string) []order.Order {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.Lock()
	defer s.mu.Unlock()
	if term == "" {
		return cloneAll(s.orders)
	}
	matched := []order.Order{}
	for _, o := range s.orders {
		if matches(o, term) {
			matched = append(matched, o.Clone())
		}
	}
	return matched
}

func matches(o order.Order, term string) bool {
	fields := []string{o.CustomerName, o.CustomerPhone, o.CustomerNotes}
	fields = append(fields, o.Lines...)
	for _, p := range o.Partners {
		fields = append(fields, p.Name)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Summary aggregates the current collection.
func (s *Store) Summary() calc.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calc.Summarize(s.orders)
}

// ComputePreview derives the computed fields of an unsaved draft. The draft is not modified.
func (s *Store) ComputePreview(d order.Draft) calc.Preview {
	return calc.PreviewDraft(d.Normalize())
}

// ComputeDerived returns a copy of o with its computed fields refreshed.
func (s *Store) ComputeDerived(o order.Order) order.Order {
	o = o.Clone()
	o.Derived = calc.Derive(o.Draft)
	return o
}

func cloneAll(orders []order.Order) []order.Order {
	out := make([]order.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
