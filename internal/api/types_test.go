package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeUUID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "already stripped",
			in:   "1234567890abcdef1234567890abcdef",
			want: "1234567890abcdef1234567890abcdef",
		},
		{
			name: "dashes stripped",
			in:   "12345678-90ab-cdef-1234-567890abcdef",
			want: "1234567890abcdef1234567890abcdef",
		},
		{
			name:    "too short",
			in:      "abc",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
		{
			name:    "right length but not hex",
			in:      "zzzz567890abcdef1234567890abcdef",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeUUID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidUUID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserDisplayName(t *testing.T) {
	u := NewUser("1234567890abcdef1234567890abcdef", StatusOnline)
	u.Name = "Alex"
	assert.Equal(t, "Alex", u.DisplayName("hello"))

	u.DisplayNameOverride = "axolotl"
	assert.Equal(t, "axolotl", u.DisplayName("hello"))
}

func TestUserDisplayNameWithSystem(t *testing.T) {
	u := NewUser("1234567890abcdef1234567890abcdef", StatusOnline)
	u.Name = "Alex"
	u.System = &PkSystem{
		ID:   "abcde",
		Name: "Example",
		Fronters: []PkMember{
			pkMemberFromObject(map[string]interface{}{
				"id":   "m1",
				"name": "First",
			}),
			pkMemberFromObject(map[string]interface{}{
				"id":   "m2",
				"name": "Tagged",
				"proxy_tags": []interface{}{
					map[string]interface{}{"prefix": "t:", "suffix": ""},
				},
			}),
		},
	}

	// Matching proxy tags pick the tagged fronter.
	assert.Equal(t, "Tagged", u.DisplayName("t: hello"))
	// No tag match falls back to the first fronter.
	assert.Equal(t, "First", u.DisplayName("hello"))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusOnline, ParseStatus("online"))
	assert.Equal(t, StatusInGame, ParseStatus("in_game"))
	assert.Equal(t, StatusUnknown, ParseStatus("something else"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}
