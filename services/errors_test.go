package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: type", ErrInvalidParams), CodeInvalidParams, http.StatusBadRequest},
		{ErrArticleNotFound, CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %q", ErrUnknownProvider, "x"), CodeNotFound, http.StatusNotFound},
		{ErrLinkNotConfigured, CodeNotFound, http.StatusNotFound},
		{ErrInvalidLink, CodeNotFound, http.StatusNotFound},
		{ErrUnlockRequired, CodeUnauthorized, http.StatusForbidden},
		{ErrPermissionDenied, CodeUnauthorized, http.StatusForbidden},
		{fmt.Errorf("%w: timeout", ErrUpstream), CodeNetwork, http.StatusBadGateway},
		{errors.New("disk full"), CodeGeneral, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code := ErrorCode(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.Equal(t, tc.status, HTTPStatus(code))
		assert.NotEmpty(t, UserMessage(code))
	}
	assert.Empty(t, ErrorCode(nil))
}
