package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanCatalogEntry_TotalUnits(t *testing.T) {
	entry := &PlanCatalogEntry{
		QuotaArt:      8,
		QuotaReel:     4,
		QuotaCopy:     10,
		QuotaVideo:    2,
		QuotaCarousel: 6,
	}
	assert.Equal(t, int32(30), entry.TotalUnits())

	empty := &PlanCatalogEntry{}
	assert.Equal(t, int32(0), empty.TotalUnits())
}

func TestMonthlyPlanInstance_RemainingUnits(t *testing.T) {
	tests := []struct {
		name  string
		total int32
		used  int32
		want  int32
	}{
		{"fresh instance", 30, 0, 30},
		{"partially consumed", 30, 12, 18},
		{"exhausted", 30, 30, 0},
		{"over budget clamps to zero", 30, 31, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MonthlyPlanInstance{TotalUnits: tt.total, UsedUnits: tt.used}
			assert.Equal(t, tt.want, m.RemainingUnits())
		})
	}
}

func TestPrincipal_Roles(t *testing.T) {
	admin := &Principal{Role: RoleAdmin}
	staff := &Principal{Role: RoleStaff}
	client := &Principal{Role: RoleClient}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff())
	assert.False(t, staff.IsAdmin())
	assert.True(t, staff.IsStaff())
	assert.False(t, client.IsAdmin())
	assert.False(t, client.IsStaff())
}
