package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/educhain-dev/educhain/internal/identity"
	"github.com/educhain-dev/educhain/internal/statestore"
)

// Policy checks run before validation and before any read or write of the
// target entity, so a rejected call never touches entity state.

// requireBootstrapAdmin allows only the distinguished enrollment identity.
// That identity is marked by a caller attribute, not stored as a User record.
func requireBootstrapAdmin(caller identity.Resolver) error {
	v, ok := caller.CallerAttribute(identity.AttrBootstrapAdmin)
	if !ok || v != "true" {
		return ErrUnauthorized
	}
	return nil
}

// resolveRequester looks up the User record for the caller-supplied
// requester identifier. Absence of the record is its own authorization
// failure, distinct from wrong-role.
func resolveRequester(ctx context.Context, tx statestore.Tx, requesterDNI string) (*User, error) {
	raw, err := tx.Get(ctx, UserID(requesterDNI))
	if err != nil {
		return nil, fmt.Errorf("resolve requester: %w", err)
	}
	if raw == nil {
		return nil, ErrUnknownRequester
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode requester record: %w", err)
	}
	return &u, nil
}

// requireInstitution resolves the requester and checks the institution role.
func requireInstitution(ctx context.Context, tx statestore.Tx, requesterDNI string) (*User, error) {
	u, err := resolveRequester(ctx, tx, requesterDNI)
	if err != nil {
		return nil, err
	}
	if u.UserType != UserTypeInstitution {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// requireStudentScope resolves the requester and, for student callers,
// restricts the queried dni to their own. Institutions and admins may query
// any dni.
func requireStudentScope(ctx context.Context, tx statestore.Tx, dni, requesterDNI string) error {
	u, err := resolveRequester(ctx, tx, requesterDNI)
	if err != nil {
		return err
	}
	if u.UserType == UserTypeStudent && u.DNI != dni {
		return ErrUnauthorized
	}
	return nil
}
