package admission

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const (
	AccessDeniedMessage = "🚫 **Access Denied**\n\nYou don't have permission to use this bot.\nPlease contact the administrator for access."
	AdminOnlyMessage    = "🚫 **Admin Access Required**\n\nThis command requires administrator privileges."
)

type Decision struct {
	Allowed bool
	Kind    core.ErrorKind
	Message string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(kind core.ErrorKind, message string) Decision {
	return Decision{Kind: kind, Message: message}
}

// Err maps a denial onto the matching sentinel error.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Kind == core.KindRateLimited:
		return core.ErrRateLimited
	case d.Kind == core.KindAccessDenied:
		return core.ErrAccessDenied
	default:
		return fmt.Errorf("admission denied: %s", d.Kind)
	}
}

// Check inspects one inbound request. Checks must not have side effects when they deny.
type Check func(ctx context.Context, userID int64) Decision

// Pipeline runs checks in order and stops at the first denial.
type Pipeline struct {
	checks []Check
}

func New(checks ...Check) *Pipeline {
	return &Pipeline{checks: checks}
}

func (p *Pipeline) Admit(ctx context.Context, userID int64) Decision {
	for _, check := range p.checks {
		d := check(ctx, userID)
		if !d.Allowed {
			log.FromCtx(ctx).Info().
				Int64("user_id", userID).
				Str("kind", string(d.Kind)).
				Msg("request denied")
			return d
		}
	}
	return Allow()
}

func AccessList(policy core.AccessPolicy) Check {
	return func(ctx context.Context, userID int64) Decision {
		if policy.IsAllowed(userID) {
			return Allow()
		}
		return Deny(core.KindAccessDenied, AccessDeniedMessage)
	}
}

func AdminOnly(policy core.AccessPolicy) Check {
	return func(ctx context.Context, userID int64) Decision {
		if policy.IsAdmin(userID) {
			return Allow()
		}
		return Deny(core.KindAccessDenied, AdminOnlyMessage)
	}
}

func RateLimit(l *Limiter) Check {
	message := fmt.Sprintf(
		"⚠️ **Rate limit exceeded!**\n\nPlease wait a moment before sending another message.\nLimit: %d messages per %d seconds.",
		l.Limit(), int(l.Window().Seconds()),
	)
	return func(ctx context.Context, userID int64) Decision {
		if l.Admit(userID) {
			return Allow()
		}
		return Deny(core.KindRateLimited, message)
	}
}
