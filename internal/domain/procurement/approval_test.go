package procurement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyApproval(t *testing.T) {
	tests := []struct {
		name          string
		state         OrderState
		approverCount int
		requiredCount int
		want          ApprovalStatus
	}{
		{
			name:          "cancelled order is rejected regardless of counts",
			state:         OrderStateCancelled,
			approverCount: 5,
			requiredCount: 2,
			want:          ApprovalStatusRejected,
		},
		{
			name:          "cancelled order with no approvers is still rejected",
			state:         OrderStateCancelled,
			approverCount: 0,
			requiredCount: 0,
			want:          ApprovalStatusRejected,
		},
		{
			name:          "confirmed order is approved even below required count",
			state:         OrderStateConfirmed,
			approverCount: 1,
			requiredCount: 3,
			want:          ApprovalStatusApproved,
		},
		{
			name:          "done order is approved with zero approvers",
			state:         OrderStateDone,
			approverCount: 0,
			requiredCount: 2,
			want:          ApprovalStatusApproved,
		},
		{
			name:          "unknown required count and no approvers is in review",
			state:         OrderStateToApprove,
			approverCount: 0,
			requiredCount: 0,
			want:          ApprovalStatusInReview,
		},
		{
			name:          "unknown required count with approvers is partially approved",
			state:         OrderStateToApprove,
			approverCount: 1,
			requiredCount: 0,
			want:          ApprovalStatusPartiallyApproved,
		},
		{
			name:          "no approvers yet is in review",
			state:         OrderStateToApprove,
			approverCount: 0,
			requiredCount: 2,
			want:          ApprovalStatusInReview,
		},
		{
			name:          "one of two approvers is partially approved",
			state:         OrderStateToApprove,
			approverCount: 1,
			requiredCount: 2,
			want:          ApprovalStatusPartiallyApproved,
		},
		{
			name:          "all required approvers signed off",
			state:         OrderStateToApprove,
			approverCount: 2,
			requiredCount: 2,
			want:          ApprovalStatusApproved,
		},
		{
			name:          "more approvers than required",
			state:         OrderStateDraft,
			approverCount: 3,
			requiredCount: 2,
			want:          ApprovalStatusApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyApproval(tt.state, tt.approverCount, tt.requiredCount)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestClassifyApprovalIsPure(t *testing.T) {
	first := ClassifyApproval(OrderStateToApprove, 1, 2)
	second := ClassifyApproval(OrderStateToApprove, 1, 2)
	assert.Equal(t, first, second)
}

func TestApprovalStatusIsValid(t *testing.T) {
	assert.True(t, ApprovalStatusApproved.IsValid())
	assert.True(t, ApprovalStatusRejected.IsValid())
	assert.False(t, ApprovalStatus("signed_off").IsValid())
	assert.False(t, ApprovalStatus("").IsValid())
}
