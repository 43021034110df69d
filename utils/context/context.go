package context

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrGetRequestID     = errors.New("no requestID found in context")
	ErrExtractPrincipal = errors.New("could not extract principal from context")
	ErrExtractOrgClaim  = errors.New("could not extract organization claim from context")
)

type key string

const (
	requestID    = key("requestID")
	principalID  = key("principalID")
	claimedOrgID = key("claimedOrganizationID")
)

type Opt func(ctx context.Context) context.Context

//nolint:fatcontext
func New(ctx context.Context, opts ...Opt) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, opt := range opts {
		ctx = opt(ctx)
	}

	return ctx
}

func InjectRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestID, uuid.NewString())
}

func GetRequestID(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestID).(string)
	if !ok || requestID == "" {
		return "", ErrGetRequestID
	}

	return requestID, nil
}

// InjectPrincipal stores the verified principal identifier extracted from the
// session token. Identity verification itself happens upstream; the value
// here is trusted as authenticated but not yet authorized for any tenant.
func InjectPrincipal(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, principalID, id)
}

func WithPrincipal(id uuid.UUID) Opt {
	return func(ctx context.Context) context.Context {
		return InjectPrincipal(ctx, id)
	}
}

func ExtractPrincipal(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(principalID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrExtractPrincipal
	}

	return id, nil
}

// InjectClaimedOrg stores the organization id claimed by the session token.
// The claim is signed but may be stale; the session resolver re-validates it
// against the tenant directory before any data access happens.
func InjectClaimedOrg(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, claimedOrgID, id)
}

func WithClaimedOrg(id uuid.UUID) Opt {
	return func(ctx context.Context) context.Context {
		return InjectClaimedOrg(ctx, id)
	}
}

func ExtractClaimedOrg(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(claimedOrgID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrExtractOrgClaim
	}

	return id, nil
}
