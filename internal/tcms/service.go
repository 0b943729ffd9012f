// Package tcms implements nitrate's business operations on top of a
// types.Store: products, plans, cases, runs, case-runs and their comments,
// links, issues, searches and statistics.
package tcms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Errors specific to the service layer.
var (
	ErrTrackerNotBound = errors.New("tracker is not bound to the case's product")
	ErrDuplicateIssue  = errors.New("issue is already attached")
	ErrNotLinked       = errors.New("objects are not linked")
)

// Options configures a Service.
type Options struct {
	Bus     *signals.Bus
	Logger  *zap.Logger
	BaseURL string           // public URL used in tracker reports
	Now     func() time.Time // defaults to time.Now
}

// Service runs nitrate operations against a store. It holds no state of its
// own and is safe for concurrent use when the store is.
type Service struct {
	store   types.Store
	bus     *signals.Bus
	logger  *zap.Logger
	baseURL string
	now     func() time.Time
}

// New creates a service on store.
func New(store types.Store, opts Options) *Service {
	s := &Service{
		store:   store,
		bus:     opts.Bus,
		logger:  opts.Logger,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
	if s.bus == nil {
		s.bus = signals.NewBus(opts.Logger)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	// Stored timestamps keep microseconds; values handed back to callers
	// must compare equal to what a later read returns.
	s.now = func() time.Time { return clock().UTC().Truncate(time.Microsecond) }
	return s
}

// Store returns the underlying store.
func (s *Service) Store() types.Store { return s.store }

// Bus returns the signal bus events are sent on.
func (s *Service) Bus() *signals.Bus { return s.bus }

func (s *Service) emit(ctx context.Context, sig signals.Signal, objectType, objectID, actorID string, data map[string]string) {
	s.bus.Send(ctx, sig, signals.Event{
		ObjectType: objectType,
		ObjectID:   objectID,
		ActorID:    actorID,
		Data:       data,
		At:         s.now(),
	})
}

func (s *Service) table(name string) (types.Table, error) {
	tbl, err := s.store.GetTable(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return tbl, nil
}

// get loads one entity of type T from table.
func get[T any](s *Service, table, id string) (*T, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	v, err := tbl.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", table, id, err)
	}
	e, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("getting %s %s: %w", table, id, types.ErrInvalidData)
	}
	return e, nil
}

// fetch loads every entity of type T matching filter.
func fetch[T any](s *Service, table string, filter types.Filter) ([]*T, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	vs, err := tbl.Fetch(filter)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}
	out := make([]*T, 0, len(vs))
	for _, v := range vs {
		e, ok := v.(*T)
		if !ok {
			return nil, fmt.Errorf("fetching %s: %w", table, types.ErrInvalidData)
		}
		out = append(out, e)
	}
	return out, nil
}

// first returns the first entity matching filter or ErrNotFound.
func first[T any](s *Service, table string, filter types.Filter) (*T, error) {
	all, err := fetch[T](s, table, filter)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("finding %s: %w", table, types.ErrNotFound)
	}
	return all[0], nil
}

// save creates (empty id) or updates an entity and returns its ID.
func (s *Service) save(table, id string, e any) (string, error) {
	tbl, err := s.table(table)
	if err != nil {
		return "", err
	}
	newID, err := tbl.Set(id, e)
	if err != nil {
		if id == "" {
			return "", fmt.Errorf("creating %s: %w", table, err)
		}
		return "", fmt.Errorf("updating %s %s: %w", table, id, err)
	}
	return newID, nil
}

func (s *Service) remove(table, id string) error {
	tbl, err := s.table(table)
	if err != nil {
		return err
	}
	if err := tbl.Delete(id); err != nil {
		return fmt.Errorf("deleting %s %s: %w", table, id, err)
	}
	return nil
}

// exists reports whether id is present in table.
func (s *Service) exists(table, id string) error {
	tbl, err := s.table(table)
	if err != nil {
		return err
	}
	if _, err := tbl.Get(id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("%s %s: %w", table, id, types.ErrNotFound)
		}
		return fmt.Errorf("getting %s %s: %w", table, id, err)
	}
	return nil
}

// objectTable maps a comment/link-reference object type to its table.
func objectTable(objectType string) (string, error) {
	switch objectType {
	case types.ObjectCaseRun:
		return types.TableCaseRuns, nil
	case types.ObjectCase:
		return types.TableCases, nil
	case types.ObjectPlan:
		return types.TablePlans, nil
	case types.ObjectRun:
		return types.TableRuns, nil
	}
	return "", fmt.Errorf("%w: %q", types.ErrInvalidObjectType, objectType)
}
