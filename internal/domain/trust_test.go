package domain

import "testing"

func TestViolationClassPenalty(t *testing.T) {
	cases := []struct {
		class ViolationClass
		want  float32
	}{
		{ViolationStale, 0.1},
		{ViolationMisidentified, 0.3},
		{ViolationFalseReport, 0.5},
		{ViolationUnreliability, 0.8},
		{ViolationClass("unknown"), 0.3},
	}
	for _, tc := range cases {
		if got := tc.class.Penalty(); got != tc.want {
			t.Errorf("Penalty(%s) = %f, want %f", tc.class, got, tc.want)
		}
	}
}

func TestValidTrustEventType(t *testing.T) {
	if !ValidTrustEventType("claim_verified") || !ValidTrustEventType("claim_violated") {
		t.Fatal("expected claim_verified and claim_violated to be valid")
	}
	if ValidTrustEventType("gossip") {
		t.Fatal("expected gossip to be invalid")
	}
}
