package user

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge/core"
)

func TestValidatePassword(t *testing.T) {
	usr := User{Name: "Ada Lovelace", Username: "adal", Email: "ada@test.cd"}

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{"too short", "short", pwdMinLenText},
		{"all numeric", "92837465", pwdAllNumText},
		{"loosely similar to username passes", "adalapwd", ""},
		{"equal to email", "ada@test.cd", pwdAttrSimText},
		{"similar to name", "ada lovelace1", pwdAttrSimText},
		{"acceptable", "s3cretSauce!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.pwd, usr)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, "password", verr.Fields[0].Field)
			assert.Equal(t, tt.wantErr, verr.Fields[0].Error)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 0.0, similarity("abc", "xyz"))
	assert.True(t, similarity("password1", "password") > pwdMaxSim)
}
