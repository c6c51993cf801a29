package service

import (
	"encoding/json"
	"errors"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/store"
)

// upstreamFailure wraps err as an UpstreamError, keeping the upstream body
// when there is one and the error text otherwise.
func upstreamFailure(message string, err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Upstream(message, upstreamDetails(err), err)
}

func upstreamDetails(err error) json.RawMessage {
	var se *store.StatusError
	if errors.As(err, &se) && len(se.Body) > 0 {
		return domain.RawDetails(se.Body)
	}
	return domain.RawDetails([]byte(err.Error()))
}

// upstreamCode extracts the "code" field of an upstream error body.
func upstreamCode(err error) string {
	var se *store.StatusError
	if !errors.As(err, &se) {
		return ""
	}
	var body models.UpstreamErrorBody
	if json.Unmarshal(se.Body, &body) != nil {
		return ""
	}
	return body.Code
}
