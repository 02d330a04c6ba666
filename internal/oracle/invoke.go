package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retry policy shared by every call site: up to three attempts, blocking
// backoff between them. The final delay slot is only reached if the attempt
// ceiling is ever raised.
const maxAttempts = 3

var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// ErrOracleUnavailable is returned once retries are exhausted or a
// non-transient failure aborts the loop. Callers apply their stage-specific
// deterministic fallback on this error; it never propagates to the user.
var ErrOracleUnavailable = fmt.Errorf("oracle unavailable")

// Invocation names one oracle call site: a fixed instruction template, the
// structured user content, and the response schema the result must match.
type Invocation struct {
	// Name identifies the call site in the audit log.
	Name string

	Instruction string
	Content     string
	Schema      map[string]interface{}
}

// Adapter couples a Client with the retry policy and the audit log. It is
// safe for use by independent sessions concurrently; it keeps no per-call
// state.
type Adapter struct {
	client Client
	log    *zap.Logger

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewAdapter creates an oracle adapter. A nil logger disables auditing.
func NewAdapter(client Client, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		client: client,
		log:    log,
		sleep:  time.Sleep,
	}
}

// invoke runs the retry loop and returns the raw JSON document. Transient
// failures are retried with backoff; anything else aborts immediately. Every
// attempt and its outcome is logged — this is the only audit trail of oracle
// behaviour.
func (a *Adapter) invoke(ctx context.Context, inv Invocation) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		raw, err := a.client.GenerateJSON(ctx, inv.Instruction, inv.Content, inv.Schema)
		if err == nil {
			a.log.Info("oracle call succeeded",
				zap.String("call", inv.Name),
				zap.Int("attempt", attempt),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", len(raw)),
			)
			return raw, nil
		}

		lastErr = err
		if !IsTransient(err) {
			a.log.Error("oracle call failed permanently",
				zap.String("call", inv.Name),
				zap.Int("attempt", attempt),
				zap.Duration("latency", time.Since(start)),
				zap.Error(err),
			)
			return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}

		a.log.Warn("oracle call failed, will retry",
			zap.String("call", inv.Name),
			zap.Int("attempt", attempt),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)

		if attempt < maxAttempts {
			a.sleep(retryDelays[attempt-1])
		}
	}

	a.log.Error("oracle call exhausted retries",
		zap.String("call", inv.Name),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	return "", fmt.Errorf("%w after %d attempts: %v", ErrOracleUnavailable, maxAttempts, lastErr)
}

// Call invokes the oracle and decodes the JSON response into T. On failure
// the zero T and an error wrapping ErrOracleUnavailable are returned; the
// caller substitutes its deterministic fallback and carries on.
func Call[T any](ctx context.Context, a *Adapter, inv Invocation) (T, error) {
	var out T

	raw, err := a.invoke(ctx, inv)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// A malformed document is a non-transient oracle defect.
		a.log.Error("oracle response did not match schema",
			zap.String("call", inv.Name),
			zap.Error(err),
		)
		var zero T
		return zero, fmt.Errorf("%w: malformed response: %v", ErrOracleUnavailable, err)
	}

	return out, nil
}
