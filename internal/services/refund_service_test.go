package services

import (
	"testing"

	"github.com/saeid-a/CoachConnectBack/internal/models"
)

func TestRefundStrategyFollowsSessionState(t *testing.T) {
	cases := []struct {
		sessionStatus string
		want          string
	}{
		{models.SessionStatusCreated, refundStrategyAutoAccept},
		{models.SessionStatusCancelled, refundStrategyAutoAccept},
		{models.SessionStatusOngoing, refundStrategyAdminApproval},
		{models.SessionStatusCompleted, refundStrategyAdminApproval},
		{"unknown", ""},
	}

	for _, tc := range cases {
		if got := refundStrategyFor(tc.sessionStatus); got != tc.want {
			t.Errorf("refundStrategyFor(%q) = %q, want %q", tc.sessionStatus, got, tc.want)
		}
	}
}
