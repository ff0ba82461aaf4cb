// Package dashboard loads the list views of the platform. A failed live load falls back to
// a bundled dataset so the page still renders, together with the error and a retry hook.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/logging"
)

// Kind names a list view.
type Kind string

const (
	Campaigns Kind = "campaigns"
	Donations Kind = "donations"
	Rewards   Kind = "rewards"
	Payments  Kind = "payments"
)

// ErrUnknownKind is returned for a list view that does not exist.
var ErrUnknownKind = errors.New("unknown dashboard")

// Kinds returns every list view.
func Kinds() []Kind {
	return []Kind{Campaigns, Donations, Rewards, Payments}
}

// ParseKind validates a list view name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
}

// Lister is the part of the API client the loader reads from.
type Lister interface {
	ListCampaigns(ctx context.Context) ([]api.Campaign, error)
	ListDonations(ctx context.Context) ([]api.Donation, error)
	ListRewards(ctx context.Context) ([]api.Reward, error)
	ListPayments(ctx context.Context) ([]api.Payment, error)
}

var _ Lister = (*api.Client)(nil)

// View is one rendered list: the items to show plus the load error, if any.
type View struct {
	Kind          Kind
	Items         any
	Err           error
	UsingFallback bool
	// Retry reloads the same list. It is set whenever Err is.
	Retry func(ctx context.Context) View
}

// Loader fetches list views.
type Loader struct {
	API      Lister
	Logger   *zap.Logger
	Fallback bool

	mu    sync.RWMutex
	cache map[Kind]any
}

// NewLoader returns a Loader. fallback enables the bundled datasets on failure.
func NewLoader(l Lister, logger *zap.Logger, fallback bool) *Loader {
	return &Loader{API: l, Logger: logging.OrNop(logger), Fallback: fallback}
}

func (l *Loader) logger() *zap.Logger {
	return logging.OrNop(l.Logger)
}

// Load fetches one list. On failure the view carries the error and, when fallback is enabled,
// the bundled dataset rather than any earlier live result.
func (l *Loader) Load(ctx context.Context, kind Kind) View {
	v := View{Kind: kind}
	items, err := l.fetch(ctx, kind)
	if err == nil {
		l.store(kind, items)
		v.Items = items
		return v
	}

	v.Err = err
	v.Retry = func(ctx context.Context) View { return l.Load(ctx, kind) }
	if errors.Is(err, ErrUnknownKind) {
		return v
	}
	if l.Fallback {
		v.Items = Mock(kind)
		v.UsingFallback = true
	}
	l.logger().Warn("dashboard load failed",
		zap.String("kind", string(kind)),
		zap.Bool("fallback", v.UsingFallback),
		zap.Error(err))
	return v
}

// LoadAll loads several lists concurrently. No kinds means all of them.
func (l *Loader) LoadAll(ctx context.Context, kinds ...Kind) (map[Kind]View, error) {
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	for _, k := range kinds {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
	}

	views := make([]View, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			views[i] = l.Load(gctx, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Kind]View, len(kinds))
	for _, v := range views {
		out[v.Kind] = v
	}
	return out, nil
}

// Cached returns the last successful live result for kind.
func (l *Loader) Cached(kind Kind) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items, ok := l.cache[kind]
	return items, ok
}

func (l *Loader) store(kind Kind, items any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		l.cache = make(map[Kind]any)
	}
	l.cache[kind] = items
}

func (l *Loader) fetch(ctx context.Context, kind Kind) (any, error) {
	if l.API == nil {
		return nil, errors.New("dashboard: no API client")
	}
	switch kind {
	case Campaigns:
		return nonNil(l.API.ListCampaigns(ctx))
	case Donations:
		return nonNil(l.API.ListDonations(ctx))
	case Rewards:
		return nonNil(l.API.ListRewards(ctx))
	case Payments:
		return nonNil(l.API.ListPayments(ctx))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// nonNil turns a nil slice into an empty one so an empty live list never looks like a missing one.
func nonNil[T any](items []T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
