package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	assert.Equal(t, "auth error (code 401): bad token", New(ErrorTypeAuth, 401, "bad token").Error())
	assert.Equal(t, "storage error: write tweets.csv: file does not exist",
		Wrap(ErrorTypeStorage, fs.ErrNotExist, "write %s", "tweets.csv").Error())
}

func TestWrapKeepsCause(t *testing.T) {
	err := fmt.Errorf("refresh: %w", Wrap(ErrorTypeStorage, fs.ErrPermission, "create snapshot"))

	assert.True(t, stderrors.Is(err, fs.ErrPermission))
	assert.Equal(t, ErrorTypeStorage, TypeOf(err))
	assert.True(t, IsFatal(err))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(New(ErrorTypeRateLimit, 429, "slow down")))
	assert.False(t, IsFatal(stderrors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestFromStatusCode(t *testing.T) {
	tests := map[int]ErrorType{
		0:   ErrorTypeNetwork,
		401: ErrorTypeAuth,
		403: ErrorTypeAuth,
		404: ErrorTypeNotFound,
		429: ErrorTypeRateLimit,
		500: ErrorTypeServerError,
		503: ErrorTypeServerError,
		400: ErrorTypeUnknown,
	}
	for code, want := range tests {
		assert.Equal(t, want, FromStatusCode(code), "status %d", code)
	}
}
