package port

import "context"

// BreachChecker screens candidate passwords against a compromised-password
// corpus. Implementations must fail open: any transport or upstream error
// yields false rather than blocking the caller.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) bool
}
