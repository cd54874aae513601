package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/ports"
)

// Policy lists principals by role. An empty Approvers list lets any
// authenticated principal approve.
type Policy struct {
	Admins             []string
	Approvers          []string
	AutomaticModifiers []string
}

// PolicyAuthorizer answers capability checks from a static policy.
type PolicyAuthorizer struct {
	admins             map[string]struct{}
	approvers          map[string]struct{}
	automaticModifiers map[string]struct{}
}

var _ ports.Authorizer = (*PolicyAuthorizer)(nil)

func NewPolicyAuthorizer(policy Policy) *PolicyAuthorizer {
	return &PolicyAuthorizer{
		admins:             toSet(policy.Admins),
		approvers:          toSet(policy.Approvers),
		automaticModifiers: toSet(policy.AutomaticModifiers),
	}
}

func (a *PolicyAuthorizer) Authorize(ctx context.Context, principal string, target domainreview.Owned, capability domainreview.Capability) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return false, nil
	}
	if _, ok := a.admins[principal]; ok {
		return true, nil
	}

	switch capability {
	case domainreview.CapabilityReviewOwner, domainreview.CapabilityRevisionOwner:
		if target == nil {
			return false, fmt.Errorf("%s check needs a target", capability)
		}
		return target.OwnerID() == principal, nil
	case domainreview.CapabilityApprover:
		if len(a.approvers) == 0 {
			return true, nil
		}
		_, ok := a.approvers[principal]
		return ok, nil
	case domainreview.CapabilityAutomaticReviewModifier:
		_, ok := a.automaticModifiers[principal]
		return ok, nil
	default:
		return false, fmt.Errorf("unknown capability %s", capability)
	}
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}
