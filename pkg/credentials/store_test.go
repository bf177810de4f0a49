package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSet(t *testing.T) {
	t.Run("WithinCapacity", func(t *testing.T) {
		cases := []struct {
			name, ssid, pass string
		}{
			{"Typical", "TestNet", "Secret123"},
			{"OpenNetwork", "CoffeeShop", ""},
			{"MaxLengths", strings.Repeat("s", MaxSSIDLen), strings.Repeat("p", MaxPasswordLen)},
			{"UTF8", "Café-Wi-Fi", "pässwörd"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				var s Store
				require.NoError(t, s.Set(tc.ssid, tc.pass))
				assert.Equal(t, tc.ssid, s.SSID())
				assert.Equal(t, tc.pass, s.Password())
			})
		}
	})

	t.Run("SSIDTooLong", func(t *testing.T) {
		var s Store
		err := s.Set(strings.Repeat("s", SSIDCapacity), "pw")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSize)

		var se *SizeError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, FieldSSID, se.Field)
		assert.Equal(t, SSIDCapacity, se.Length)
		assert.Equal(t, MaxSSIDLen, se.Copied)
	})

	t.Run("PasswordTooLong", func(t *testing.T) {
		var s Store
		err := s.Set("TestNet", strings.Repeat("p", PasswordCapacity))
		require.ErrorIs(t, err, ErrSize)

		var se *SizeError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, FieldPassword, se.Field)

		// The SSID was already written; there is no rollback.
		assert.Equal(t, "TestNet", s.SSID())
	})

	t.Run("EmbeddedNUL", func(t *testing.T) {
		var s Store
		err := s.Set("Test\x00Net", "pw")
		require.ErrorIs(t, err, ErrSize)
		assert.Equal(t, "Test", s.SSID())
	})

	t.Run("Overwrites", func(t *testing.T) {
		var s Store
		require.NoError(t, s.Set("a-much-longer-network-name", "first-password"))
		require.NoError(t, s.Set("short", "pw"))
		assert.Equal(t, "short", s.SSID())
		assert.Equal(t, "pw", s.Password())
	})
}

func TestStoreRedacted(t *testing.T) {
	s, err := New("TestNet", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "TestNet:****", s.Redacted())
	assert.NotContains(t, s.Redacted(), "Secret123")

	open, err := New("Lobby", "")
	require.NoError(t, err)
	assert.Equal(t, "Lobby:<open>", open.Redacted())
}

func TestStoreIsSet(t *testing.T) {
	var s Store
	assert.False(t, s.IsSet())
	require.NoError(t, s.Set("TestNet", ""))
	assert.True(t, s.IsSet())
}

func TestStoreLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("Valid", func(t *testing.T) {
		path := filepath.Join(dir, "wifi.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ssid: TestNet\npassword: Secret123\n"), 0600))

		var s Store
		require.NoError(t, s.Load(path))
		assert.Equal(t, "TestNet", s.SSID())
		assert.Equal(t, "Secret123", s.Password())
	})

	t.Run("MissingSSID", func(t *testing.T) {
		path := filepath.Join(dir, "nossid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("password: x\n"), 0600))

		var s Store
		assert.Error(t, s.Load(path))
	})

	t.Run("Oversized", func(t *testing.T) {
		path := filepath.Join(dir, "long.yaml")
		content := "ssid: " + strings.Repeat("x", 40) + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		var s Store
		assert.ErrorIs(t, s.Load(path), ErrSize)
	})

	t.Run("NotFound", func(t *testing.T) {
		var s Store
		assert.ErrorIs(t, s.Load(filepath.Join(dir, "missing.yaml")), os.ErrNotExist)
	})
}
