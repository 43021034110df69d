package blobpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
)

const (
	// TenantRoot prefixes every tenant scoped object key.
	TenantRoot = "t/"
)

var (
	ErrNilOrganizationID = errors.New("organization id must not be nil")
	ErrNotTenantScoped   = errors.New("blob path is not tenant scoped")
	ErrDecodingPrefix    = errors.New("error decoding tenant prefix")
)

// TenantPrefix encodes an organization id into the object key prefix all of
// its blobs live under. Base62 keeps the segment short and free of path
// separator characters.
func TenantPrefix(orgID uuid.UUID) (string, error) {
	if orgID == uuid.Nil {
		return "", ErrNilOrganizationID
	}

	encoded := base62.EncodeToString(orgID[:])

	return TenantRoot + encoded + "/", nil
}

// Rebase moves a legacy flat object key under the tenant prefix of the given
// organization.
func Rebase(orgID uuid.UUID, legacyPath string) (string, error) {
	prefix, err := TenantPrefix(orgID)
	if err != nil {
		return "", err
	}

	return prefix + strings.TrimPrefix(legacyPath, "/"), nil
}

// OrganizationFromPath recovers the organization id encoded in a tenant
// scoped object key.
func OrganizationFromPath(path string) (uuid.UUID, error) {
	rest, found := strings.CutPrefix(path, TenantRoot)
	if !found {
		return uuid.Nil, ErrNotTenantScoped
	}

	segment, _, found := strings.Cut(rest, "/")
	if !found {
		return uuid.Nil, ErrNotTenantScoped
	}

	raw, err := base62.DecodeString(segment)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrDecodingPrefix, err)
	}

	orgID, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrDecodingPrefix, err)
	}

	return orgID, nil
}

// IsTenantScoped reports whether an object key already lives under a tenant
// prefix.
func IsTenantScoped(path string) bool {
	_, err := OrganizationFromPath(path)
	return err == nil
}
