package socketio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCookieValue(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"accessToken=abc", "abc"},
		{"theme=dark; accessToken=abc.def.ghi; refreshToken=xyz", "abc.def.ghi"},
		{"refreshToken=xyz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CookieValue(tt.header, AccessTokenCookie), tt.header)
	}
}
