package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordSetAndCompare(t *testing.T) {
	var p password

	require.NoError(t, p.Set("hunter2"))

	assert.NoError(t, p.Compare("hunter2"))
	assert.Error(t, p.Compare("wrong"))
}

func TestPasswordHashesDiffer(t *testing.T) {
	var a, b password

	require.NoError(t, a.Set("same-secret"))
	require.NoError(t, b.Set("same-secret"))

	// bcrypt salts every hash
	assert.NotEqual(t, a.hash, b.hash)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&User{Role: RoleUser}).IsAdmin())
	assert.False(t, (&User{}).IsAdmin())
}
