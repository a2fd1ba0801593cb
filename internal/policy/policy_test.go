package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	submission "citeline/internal/submission/models"
	id "citeline/pkg/domain"
)

func TestCanVerify(t *testing.T) {
	sub := &submission.Submission{Country: "GH"}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"admin verifies any country", Actor{Role: id.RoleAdmin, Country: "KE"}, true},
		{"verifier matches country", Actor{Role: id.RoleVerifier, Country: "GH"}, true},
		{"verifier wrong country", Actor{Role: id.RoleVerifier, Country: "NG"}, false},
		{"contributor never verifies", Actor{Role: id.RoleContributor, Country: "GH"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanVerify(tt.actor, sub))
		})
	}
}

func TestCanOverride(t *testing.T) {
	assert.True(t, CanOverride(Actor{Role: id.RoleAdmin}))
	assert.False(t, CanOverride(Actor{Role: id.RoleVerifier}))
	assert.False(t, CanOverride(Actor{Role: id.RoleContributor}))
}

func TestCanDelete(t *testing.T) {
	ownerID := id.NewUserID()

	pending := &submission.Submission{SubmitterID: ownerID, Status: submission.StatusPending}
	approved := &submission.Submission{SubmitterID: ownerID, Status: submission.StatusApproved}

	tests := []struct {
		name  string
		actor Actor
		sub   *submission.Submission
		want  bool
	}{
		{"admin deletes anything", Actor{ID: id.NewUserID(), Role: id.RoleAdmin}, approved, true},
		{"owner deletes own pending", Actor{ID: ownerID, Role: id.RoleContributor}, pending, true},
		{"owner cannot delete reviewed", Actor{ID: ownerID, Role: id.RoleContributor}, approved, false},
		{"stranger cannot delete", Actor{ID: id.NewUserID(), Role: id.RoleContributor}, pending, false},
		{"verifier is not an owner", Actor{ID: id.NewUserID(), Role: id.RoleVerifier, Country: "GH"}, pending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDelete(tt.actor, tt.sub))
		})
	}
}
