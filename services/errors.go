package services

import (
	"errors"
	"net/http"

	"multidrive/providers"
)

// Fehler der Redirect- und Unlock-Abläufe. Alle sind für die Anfrage endgültig.
var (
	ErrInvalidParams     = errors.New("invalid parameters")
	ErrArticleNotFound   = errors.New("article not found")
	ErrUnknownProvider   = providers.ErrUnknownProvider
	ErrLinkNotConfigured = errors.New("download link not configured")
	ErrInvalidLink       = errors.New("download link is invalid")
	ErrUnlockRequired    = errors.New("download must be unlocked first")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUpstream          = errors.New("verification service unavailable")
)

// Symbolische Fehlercodes für Fehlerseiten.
const (
	CodeInvalidParams = "invalid_params"
	CodeNotFound      = "download_not_found"
	CodeNetwork       = "network_error"
	CodeUnauthorized  = "unauthorized"
	CodeGeneral       = "general"
)

// ErrorCode ordnet jeden Fehler genau einem Code zu.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParams):
		return CodeInvalidParams
	case errors.Is(err, ErrArticleNotFound),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, ErrLinkNotConfigured),
		errors.Is(err, ErrInvalidLink):
		return CodeNotFound
	case errors.Is(err, ErrUpstream):
		return CodeNetwork
	case errors.Is(err, ErrUnlockRequired), errors.Is(err, ErrPermissionDenied):
		return CodeUnauthorized
	default:
		return CodeGeneral
	}
}

// HTTPStatus liefert den Statuscode zu einem Fehlercode.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidParams:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage liefert den Text, den Besucher zu einem Fehlercode sehen.
func UserMessage(code string) string {
	switch code {
	case CodeInvalidParams:
		return "The download link is incomplete. Please go back and try again."
	case CodeNotFound:
		return "This download is not available."
	case CodeUnauthorized:
		return "This download is locked. Please unlock it on the download page first."
	case CodeNetwork:
		return "The verification service did not respond. Please try again."
	default:
		return "Something went wrong. Please try again later."
	}
}
