package review

import "fmt"

// Capability is the permission an actor needs for an operation.
type Capability int

const (
	CapabilityReviewOwner Capability = iota + 1
	CapabilityRevisionOwner
	CapabilityApprover
	CapabilityAutomaticReviewModifier
)

func (c Capability) String() string {
	switch c {
	case CapabilityReviewOwner:
		return "review_owner"
	case CapabilityRevisionOwner:
		return "revision_owner"
	case CapabilityApprover:
		return "approver"
	case CapabilityAutomaticReviewModifier:
		return "automatic_review_modifier"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Owned is an authorization target: something with an author.
type Owned interface {
	OwnerID() string
}

func (r Review) OwnerID() string   { return r.Author }
func (r Revision) OwnerID() string { return r.Author }
