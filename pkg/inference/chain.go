package inference

import (
	"context"
	"log/slog"
	"strings"
)

// Chain tries multiple oracles in order until one succeeds.
// A typical chain is Gemini first with the offline grammar as fallback.
type Chain struct {
	oracles []Oracle
	logger  *slog.Logger
}

// NewChain creates an oracle chain.
// At least one oracle is required.
func NewChain(oracles ...Oracle) (*Chain, error) {
	if len(oracles) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		oracles: oracles,
		logger:  slog.Default().With("component", "inference.chain"),
	}, nil
}

// NewChainWithLogger creates an oracle chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, oracles ...Oracle) (*Chain, error) {
	chain, err := NewChain(oracles...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "inference.chain")
	return chain, nil
}

// Name joins the member names, e.g. "gemini>grammar".
func (c *Chain) Name() string {
	names := make([]string, len(c.oracles))
	for i, o := range c.oracles {
		names[i] = o.Name()
	}
	return strings.Join(names, ">")
}

// Complete tries each oracle until one succeeds.
func (c *Chain) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var errs []error

	for i, o := range c.oracles {
		resp, err := o.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded",
					"provider", o.Name(),
					"provider_index", i,
				)
			}
			return resp, nil
		}

		errs = append(errs, err)
		c.logger.Warn("provider failed, trying next",
			"provider", o.Name(),
			"provider_index", i,
			"retryable", Retryable(err),
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Close closes all oracles.
func (c *Chain) Close() error {
	var lastErr error
	for _, o := range c.oracles {
		if err := o.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Oracles returns the oracles in the chain.
func (c *Chain) Oracles() []Oracle {
	return c.oracles
}

// Verify Chain implements Oracle at compile time.
var _ Oracle = (*Chain)(nil)
