package procurement

// ApprovalStatus represents the derived approval state of a purchase order
type ApprovalStatus string

const (
	ApprovalStatusRejected          ApprovalStatus = "rejected"
	ApprovalStatusInReview          ApprovalStatus = "in_review"
	ApprovalStatusPartiallyApproved ApprovalStatus = "partially_approved"
	ApprovalStatusApproved          ApprovalStatus = "approved"
)

// IsValid checks if the status is a known ApprovalStatus
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusRejected, ApprovalStatusInReview,
		ApprovalStatusPartiallyApproved, ApprovalStatusApproved:
		return true
	}
	return false
}

// String returns the string representation of ApprovalStatus
func (s ApprovalStatus) String() string {
	return string(s)
}

// ClassifyApproval derives the approval status of an order from its ERP
// lifecycle state and the message-derived approver counts. It is a total
// function: every input combination maps to exactly one status, and it holds
// no state between calls.
//
// A confirmed or done ERP state wins over the message-derived counts even
// when fewer approvers signed off than appear required; the ERP is the
// system of record for confirmation. requiredCount may be unknown upstream,
// in which case callers pass 0.
func ClassifyApproval(state OrderState, approverCount, requiredCount int) ApprovalStatus {
	switch {
	case state == OrderStateCancelled:
		return ApprovalStatusRejected
	case state == OrderStateConfirmed || state == OrderStateDone:
		return ApprovalStatusApproved
	case requiredCount <= 0:
		if approverCount == 0 {
			return ApprovalStatusInReview
		}
		return ApprovalStatusPartiallyApproved
	case approverCount == 0:
		return ApprovalStatusInReview
	case approverCount < requiredCount:
		return ApprovalStatusPartiallyApproved
	default:
		return ApprovalStatusApproved
	}
}
