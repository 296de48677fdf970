package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"shelterlink/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		User: &domain.User{
			ID:    "user-1",
			Email: "vol@example.com",
			Name:  "Vol Unteer",
			Role:  domain.RoleVolunteer,
		},
		UserType: domain.RoleVolunteer,
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path, "")

	require.NoError(t, store.Save(testSnapshot()))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-abc", got.AccessToken)
	assert.Equal(t, "refresh-def", got.RefreshToken)
	assert.Equal(t, "user-1", got.User.ID)
	assert.Equal(t, domain.RoleVolunteer, got.UserType)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"), "")

	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not_json", "{{{{"},
		{"missing_tokens", `{"user":{"id":"1","email":"a@b.com","role":"USER"}}`},
		{"missing_user", `{"accessToken":"a","refreshToken":"r","userType":"USER"}`},
		{"bad_role", `{"accessToken":"a","refreshToken":"r","user":{"id":"1","email":"a@b.com"},"userType":"SUPERUSER"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))

			store := NewFileStore(path, "")
			got, err := store.Load()
			assert.Nil(t, got)
			assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
		})
	}
}

func TestFileStore_SaveRejectsIncomplete(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"), "")

	snap := testSnapshot()
	snap.AccessToken = ""
	assert.Error(t, store.Save(snap))
	assert.Error(t, store.Save(nil))
}

func TestFileStore_ClearIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path, "")

	require.NoError(t, store.Save(testSnapshot()))
	require.NoError(t, store.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing again must not fail
	assert.NoError(t, store.Clear())
}

func TestFileStore_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path, "correct horse battery staple")

	require.NoError(t, store.Save(testSnapshot()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsSealed(raw))
	assert.NotContains(t, string(raw), "access-abc")

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-abc", got.AccessToken)
}

func TestFileStore_SealedWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, NewFileStore(path, "right").Save(testSnapshot()))

	got, err := NewFileStore(path, "wrong").Load()
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
}

func TestFileStore_SealedWithoutPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, NewFileStore(path, "secret").Save(testSnapshot()))

	got, err := NewFileStore(path, "").Load()
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrPersistenceCorrupt)
}

func TestSealer_Roundtrip(t *testing.T) {
	s := NewSealer("pass")

	sealed, err := s.Seal([]byte(`{"hello":"world"}`))
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(plain))
}

func TestSealer_OpenTruncated(t *testing.T) {
	s := NewSealer("pass")
	_, err := s.Open([]byte("SLSB1short"))
	assert.Error(t, err)
}
