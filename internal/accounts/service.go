package accounts

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/estateline/estateline/internal/authz"
)

// StorePort defines the read side of the account store used to resolve a
// caller. Absence of a capability row or of any grants is a valid result.
type StorePort interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	GetCapabilities(ctx context.Context, userID string) (*authz.CapabilitySet, error)
	ListGrantEstateIDs(ctx context.Context, userID string) ([]string, error)
}

// Loader resolves a verified user id into a fully populated authz.Caller.
type Loader struct {
	store StorePort
}

// NewLoader constructs a Loader.
func NewLoader(store StorePort) *Loader {
	return &Loader{store: store}
}

// LoadCaller fetches profile, capability set and grants in parallel and maps
// absent rows onto the fail-closed defaults.
func (l *Loader) LoadCaller(ctx context.Context, userID string) (authz.Caller, error) {
	var (
		profile Profile
		caps    *authz.CapabilitySet
		grants  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = l.store.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		caps, err = l.store.GetCapabilities(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		grants, err = l.store.ListGrantEstateIDs(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return authz.Caller{}, err
	}

	caller := authz.Caller{
		ID:       profile.ID,
		Role:     profile.Role,
		IsActive: profile.IsActive,
		Grants:   make(map[string]struct{}, len(grants)),
	}
	if caps != nil {
		caller.Capabilities = *caps
	}
	for _, id := range grants {
		caller.Grants[id] = struct{}{}
	}
	return caller, nil
}
