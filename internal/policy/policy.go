package policy

import (
	"errors"
	"fmt"

	"github.com/careloop/careloop/internal/errs"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/session"
)

var ErrNilSessionContext = errors.New("session context must not be nil")

// Action is the closed set of operations the policy evaluates. Unknown
// actions do not exist; callers pass constants, never request strings.
type Action string

const (
	ActionRead       = Action("READ")
	ActionCreate     = Action("CREATE")
	ActionUpdate     = Action("UPDATE")
	ActionDelete     = Action("DELETE")
	ActionInvite     = Action("INVITE")
	ActionDeactivate = Action("DEACTIVATE")
	ActionAssignHome = Action("ASSIGN_HOME")
)

// ResourceKind names what an action applies to.
type ResourceKind string

const (
	KindOrganization   = ResourceKind("ORGANIZATION")
	KindMembership     = ResourceKind("MEMBERSHIP")
	KindHome           = ResourceKind("HOME")
	KindHomeAssignment = ResourceKind("HOME_ASSIGNMENT")
	KindResident       = ResourceKind("RESIDENT")
	KindCareLog        = ResourceKind("CARE_LOG")
	KindDocument       = ResourceKind("DOCUMENT")
	KindIncidentReport = ResourceKind("INCIDENT_REPORT")
)

// phiKinds are resource kinds carrying protected health information. The
// PHI rule runs after the role table and can only narrow, never widen.
var phiKinds = map[ResourceKind]bool{
	KindResident:       true,
	KindCareLog:        true,
	KindDocument:       true,
	KindIncidentReport: true,
}

// IsPHI reports whether a resource kind carries protected health information.
func IsPHI(kind ResourceKind) bool {
	return phiKinds[kind]
}

// Reason is the closed set of denial reasons, stable for metrics and audit.
type Reason string

const (
	ReasonAllowed    = Reason("")
	ReasonRoleDenied = Reason("ROLE_DENIED")
	ReasonPHIDenied  = Reason("PHI_DENIED")
)

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Decide evaluates whether the session's role may perform the action on the
// resource kind. It is a pure function of its inputs: no storage lookups, no
// tenant checks. Tenant and home scoping happen in the access layer.
func Decide(sc *session.Context, action Action, kind ResourceKind) (Decision, error) {
	if sc == nil {
		return Decision{}, ErrNilSessionContext
	}

	if !roleAllows(sc.Role(), action, kind) {
		return Decision{Reason: ReasonRoleDenied}, nil
	}

	if IsPHI(kind) && !sc.Role().HasPHIAccess() {
		return Decision{Reason: ReasonPHIDenied}, nil
	}

	return Decision{Allowed: true}, nil
}

// Evaluate is Decide folded into an error. Denials carry the reason in the
// message and unwrap to the forbidden sentinel.
func Evaluate(sc *session.Context, action Action, kind ResourceKind) error {
	decision, err := Decide(sc, action, kind)
	if err != nil {
		return err
	}

	if !decision.Allowed {
		return fmt.Errorf("%w: %s %s: %s", errs.ErrForbidden, action, kind, decision.Reason)
	}

	return nil
}

func roleAllows(role model.Role, action Action, kind ResourceKind) bool {
	switch role {
	case model.RoleTenantOwner:
		return true
	case model.RoleAdmin:
		return adminAllows(action, kind)
	case model.RoleCareProvider:
		return careProviderAllows(action, kind)
	case model.RoleSupportOperator:
		return action == ActionRead
	default:
		return false
	}
}

// adminAllows covers everything a tenant owner can do except granting
// ownership and deleting the organization itself. The ownership restriction
// is enforced where memberships are created and revoked, since the role in
// question is not visible here.
func adminAllows(action Action, kind ResourceKind) bool {
	if kind == KindOrganization && action == ActionDelete {
		return false
	}

	return true
}

func careProviderAllows(action Action, kind ResourceKind) bool {
	switch kind {
	case KindHome, KindResident:
		return action == ActionRead
	case KindCareLog, KindDocument, KindIncidentReport:
		switch action {
		case ActionRead, ActionCreate, ActionUpdate:
			return true
		default:
			return false
		}
	default:
		return false
	}
}
