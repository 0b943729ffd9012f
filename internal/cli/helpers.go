package cli

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nitrate/internal/fixtures"
	"github.com/mesh-intelligence/nitrate/internal/metrics"
	"github.com/mesh-intelligence/nitrate/internal/printer"
	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/internal/tasks"
	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/sqlite"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// runtime is an attached backend with the service and async plumbing
// built on it. Close releases everything.
type runtime struct {
	backend    sqlite.Backend
	svc        *tcms.Service
	dispatcher *tasks.Dispatcher
	rdb        *redis.Client
	metrics    *metrics.Metrics
}

// open attaches the backend and wires the signal bus to the notify task in
// the configured async mode. m may be nil.
func (e *env) open(m *metrics.Metrics) (*runtime, error) {
	rt := &runtime{metrics: m}
	if addr := e.config.GetString(cfgKeyRedisAddr); addr != "" {
		rt.rdb = redis.NewClient(&redis.Options{Addr: addr})
	}

	d, err := tasks.NewDispatcher(tasks.Options{
		Mode:    tasks.Mode(e.config.GetString(cfgKeyAsyncMode)),
		Redis:   rt.rdb,
		Queue:   e.queueKey(),
		Logger:  e.logger,
		Metrics: m,
	})
	if err != nil {
		rt.closeRedis()
		return nil, usageError{err}
	}
	rt.dispatcher = d

	rt.backend = sqlite.NewBackend()
	if err := rt.backend.Attach(e.storeConfig()); err != nil {
		rt.closeRedis()
		if errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrBackendEmpty) ||
			errors.Is(err, types.ErrNegativeBusyTimeout) {
			return nil, usageError{fmt.Errorf("attach backend: %w", err)}
		}
		return nil, sysError{fmt.Errorf("attach backend: %w", err)}
	}

	bus := signals.NewBus(e.logger)
	publisher := tasks.NewPublisher(rt.rdb, e.config.GetString(cfgKeyInstance), e.logger)
	tasks.ConnectSignals(bus, d, publisher)

	rt.svc = tcms.New(rt.backend, tcms.Options{
		Bus:     bus,
		Logger:  e.logger,
		BaseURL: e.config.GetString(cfgKeyBaseURL),
	})
	return rt, nil
}

// Close drains in-flight tasks and detaches the backend.
func (rt *runtime) Close() error {
	rt.dispatcher.Wait()
	rt.closeRedis()
	if err := rt.backend.Detach(); err != nil {
		return sysError{fmt.Errorf("detach backend: %w", err)}
	}
	return nil
}

func (rt *runtime) closeRedis() {
	if rt.rdb != nil {
		_ = rt.rdb.Close()
	}
}

// withService opens a runtime, runs fn and closes the runtime again.
func (e *env) withService(fn func(rt *runtime) error) error {
	rt, err := e.open(nil)
	if err != nil {
		return err
	}
	fnErr := fn(rt)
	if err := rt.Close(); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// actingName is --as, then the user config key.
func (e *env) actingName() string {
	if e.flags.as != "" {
		return e.flags.as
	}
	return e.config.GetString(cfgKeyUser)
}

// actor returns the user commands act as.
func (e *env) actor(svc *tcms.Service) (*types.User, error) {
	name := e.actingName()
	if name == "" {
		return nil, usageError{errors.New("no acting user: pass --as or set user in config.yaml")}
	}
	u, err := svc.UserByName(name)
	if err != nil {
		return nil, classify(fmt.Errorf("acting user %s: %w", name, err))
	}
	return u, nil
}

// classify tags err as a user or system error for the exit code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrPermissionDenied),
		errors.Is(err, types.ErrBadCredentials),
		errors.Is(err, fixtures.ErrInvalidFixture),
		errors.Is(err, tasks.ErrUnknownTask),
		tcms.IsInvalidInput(err):
		return usageError{err}
	}
	return sysError{err}
}

// lookup resolvers accept an ID or a name.

func resolveProduct(svc *tcms.Service, ref string) (*types.Product, error) {
	if p, err := svc.GetProduct(ref); err == nil {
		return p, nil
	}
	p, err := svc.ProductByName(ref)
	if err != nil {
		return nil, classify(fmt.Errorf("product %s: %w", ref, err))
	}
	return p, nil
}

func resolveUser(svc *tcms.Service, ref string) (*types.User, error) {
	if u, err := svc.GetUser(ref); err == nil {
		return u, nil
	}
	u, err := svc.UserByName(ref)
	if err != nil {
		return nil, classify(fmt.Errorf("user %s: %w", ref, err))
	}
	return u, nil
}

func resolveVersion(svc *tcms.Service, productID, ref string) (string, error) {
	versions, err := svc.ListVersions(productID)
	if err != nil {
		return "", classify(err)
	}
	for _, v := range versions {
		if v.VersionID == ref || v.Value == ref {
			return v.VersionID, nil
		}
	}
	return "", usageError{fmt.Errorf("version %s: %w", ref, types.ErrNotFound)}
}

func resolveBuild(svc *tcms.Service, productID, ref string) (string, error) {
	builds, err := svc.ListBuilds(productID, false)
	if err != nil {
		return "", classify(err)
	}
	for _, b := range builds {
		if b.BuildID == ref || b.Name == ref {
			return b.BuildID, nil
		}
	}
	return "", usageError{fmt.Errorf("build %s: %w", ref, types.ErrNotFound)}
}

// optionalUser resolves ref, or returns "" for an empty ref.
func optionalUser(svc *tcms.Service, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	u, err := resolveUser(svc, ref)
	if err != nil {
		return "", err
	}
	return u.UserID, nil
}

func newPrinter(cmd *cobra.Command, jsonMode bool) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonMode)
}

// Argument validators that report a usage error.

func noArgs(cmd *cobra.Command, args []string) error {
	return asUsage(cobra.NoArgs(cmd, args))
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return asUsage(cobra.ExactArgs(n)(cmd, args))
	}
}

func rangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return asUsage(cobra.RangeArgs(min, max)(cmd, args))
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return asUsage(cobra.MinimumNArgs(n)(cmd, args))
	}
}

func asUsage(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err}
}
