package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_ParseRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAdmin, RoleBoe} {
		parsed, err := ParseRole(role.String())
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	_, err := ParseRole("root")
	assert.Error(t, err)
}

func TestRole_Permissions(t *testing.T) {
	tests := []struct {
		role      Role
		viewAll   bool
		deleteAny bool
	}{
		{RoleUser, false, false},
		{RoleAdmin, true, true},
		{RoleBoe, true, false},
		{Role(0), false, false},
		{Role(99), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.viewAll, tt.role.CanViewAllDocuments())
			assert.Equal(t, tt.deleteAny, tt.role.CanDeleteAnyDocument())
		})
	}
}

func TestRole_ScanValue(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan([]byte("boe")))
	assert.Equal(t, RoleBoe, r)

	v, err := RoleAdmin.Value()
	require.NoError(t, err)
	assert.Equal(t, "admin", v)

	_, err = Role(0).Value()
	assert.Error(t, err)
	assert.Error(t, r.Scan(42))
}

func TestUser_Visibility(t *testing.T) {
	doc := &Document{ID: 1, UserID: 10}
	owner := &User{ID: 10, Role: RoleUser}
	other := &User{ID: 11, Role: RoleUser}
	admin := &User{ID: 12, Role: RoleAdmin}
	boe := &User{ID: 13, Role: RoleBoe}

	assert.True(t, owner.CanView(doc))
	assert.True(t, owner.CanDelete(doc))
	assert.False(t, other.CanView(doc))
	assert.False(t, other.CanDelete(doc))
	assert.True(t, admin.CanDelete(doc))
	assert.True(t, boe.CanView(doc))
	assert.False(t, boe.CanDelete(doc))
}
