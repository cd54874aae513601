package authz

import (
	"context"
	"testing"

	domainreview "apiview/internal/domain/review"
)

func TestPolicyAuthorizer(t *testing.T) {
	a := NewPolicyAuthorizer(Policy{
		Admins:             []string{"root"},
		Approvers:          []string{"bob"},
		AutomaticModifiers: []string{"pipeline"},
	})
	review := domainreview.Review{Author: "alice"}
	revision := domainreview.Revision{Author: "carol"}

	testCases := []struct {
		name       string
		principal  string
		target     domainreview.Owned
		capability domainreview.Capability
		want       bool
	}{
		{name: "review owner", principal: "alice", target: review, capability: domainreview.CapabilityReviewOwner, want: true},
		{name: "not review owner", principal: "carol", target: review, capability: domainreview.CapabilityReviewOwner, want: false},
		{name: "revision owner", principal: "carol", target: revision, capability: domainreview.CapabilityRevisionOwner, want: true},
		{name: "approver listed", principal: "bob", target: revision, capability: domainreview.CapabilityApprover, want: true},
		{name: "approver not listed", principal: "alice", target: revision, capability: domainreview.CapabilityApprover, want: false},
		{name: "automatic modifier", principal: "pipeline", target: review, capability: domainreview.CapabilityAutomaticReviewModifier, want: true},
		{name: "owner is not automatic modifier", principal: "alice", target: review, capability: domainreview.CapabilityAutomaticReviewModifier, want: false},
		{name: "admin bypass", principal: "root", target: review, capability: domainreview.CapabilityRevisionOwner, want: true},
		{name: "anonymous", principal: " ", target: review, capability: domainreview.CapabilityReviewOwner, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := a.Authorize(context.Background(), tc.principal, tc.target, tc.capability)
			if err != nil {
				t.Fatalf("Authorize() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Authorize() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPolicyAuthorizerOpenApproval(t *testing.T) {
	a := NewPolicyAuthorizer(Policy{})
	ok, err := a.Authorize(context.Background(), "anyone", domainreview.Revision{}, domainreview.CapabilityApprover)
	if err != nil || !ok {
		t.Fatalf("Authorize() = %v, %v; want true", ok, err)
	}
}
