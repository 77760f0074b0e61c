package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bencyrus/safeupload/internal/apperr"
)

func TestValidateBucketName(t *testing.T) {
	cases := []struct {
		name    string
		wantMsg string
	}{
		{"my-bucket.01", ""},
		{"abc", ""},
		{strings.Repeat("a", 63), ""},
		{"ab", "between 3 and 63"},
		{strings.Repeat("a", 64), "between 3 and 63"},
		{"AB1", "lowercase letters"},
		{"my_bucket", "lowercase letters"},
		{"-bucket", "start and end"},
		{"bucket.", "start and end"},
		{"a..b", "consecutive dots"},
		{"192.168.1.1", "IP address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBucketName(tc.name)
			if tc.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}
