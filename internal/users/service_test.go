package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"empty defaults to operator", "", RoleOperator, false},
		{"admin", "admin", RoleAdmin, false},
		{"mixed case", " Admin ", RoleAdmin, false},
		{"operator", "operator", RoleOperator, false},
		{"unknown role", "superuser", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := normalizeRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin("admin"))
	assert.True(t, IsAdmin("Admin"))
	assert.False(t, IsAdmin("operator"))
	assert.False(t, IsAdmin(""))
}
