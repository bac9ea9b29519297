// Package credential resolves the bearer token the Slack client attaches to
// every call. A directly configured token wins; otherwise the broker is
// asked per call, since the broker owns refresh and expiry.
package credential

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that no usable credential could be produced.
var ErrUnavailable = errors.New("credential unavailable")

// Credential is a resolved Slack bearer token and its workspace.
type Credential struct {
	Token  string
	TeamID string
}

// Broker is the contract the resolver needs from a credential broker.
// nango.Client satisfies it.
type Broker interface {
	Credentials(ctx context.Context) (token, teamID string, err error)
}

// Resolver produces a Credential from either static configuration or a broker.
type Resolver struct {
	direct Credential
	broker Broker
}

// NewResolver builds a Resolver. direct may be zero when only a broker is
// configured; broker may be nil when a direct token is configured.
func NewResolver(direct Credential, broker Broker) *Resolver {
	return &Resolver{direct: direct, broker: broker}
}

// Resolve returns a usable credential or an ErrUnavailable-wrapped error.
func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	if r.direct.Token != "" {
		return r.direct, nil
	}
	if r.broker == nil {
		return Credential{}, fmt.Errorf("%w: no direct token and no broker configured", ErrUnavailable)
	}

	token, teamID, err := r.broker.Credentials(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if token == "" {
		return Credential{}, fmt.Errorf("%w: broker returned empty token", ErrUnavailable)
	}
	return Credential{Token: token, TeamID: teamID}, nil
}
