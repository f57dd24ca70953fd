package auth

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Validator authenticates one kind of credential.
type Validator interface {
	// Name labels the validator in logs and metrics.
	Name() string
	// Validate returns (nil, nil) when the request does not carry this
	// validator's credential, an identity when it does and it is valid, and
	// an error when it does but is rejected.
	Validate(ctx context.Context, r *http.Request) (*Identity, error)
}

// Observer records authentication outcomes.
type Observer interface {
	AuthAttempt(validator, outcome string)
	KeyFetch(outcome string)
}

type nopObserver struct{}

func (nopObserver) AuthAttempt(string, string) {}
func (nopObserver) KeyFetch(string) {}

// Chain tries validators in order. The first identity returned wins.
type Chain struct {
	validators []Validator
	logger     *zap.Logger
	observer   Observer
}

// NewChain returns a chain over validators. observer may be nil.
func NewChain(validators []Validator, logger *zap.Logger, observer Observer) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Chain{validators: validators, logger: logger.Named("auth"), observer: observer}
}

// Validators returns the names of the validators in evaluation order.
func (c *Chain) Validators() []string {
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

// Authenticate runs the chain against r. It fails closed: a request no
// validator recognises is rejected with ErrAuthenticationFailed.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	for _, v := range c.validators {
		id, err := v.Validate(ctx, r)
		if err != nil {
			c.observer.AuthAttempt(v.Name(), "rejected")
			c.logger.Warn("validator rejected request", zap.String("validator", v.Name()), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		if id != nil {
			c.observer.AuthAttempt(v.Name(), "accepted")
			c.logger.Debug("request authenticated",
				zap.String("validator", v.Name()), zap.String("principal", id.Principal))
			return id, nil
		}
	}
	c.observer.AuthAttempt("chain", "no_credentials")
	return nil, fmt.Errorf("%w: all authentication validators failed", ErrAuthenticationFailed)
}
