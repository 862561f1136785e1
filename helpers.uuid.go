package main

import (
	"strings"

	"github.com/gofrs/uuid"
)

var _ UIDHandler = (*IDsHandler)(nil) // ensure IDsHandler implements UIDHandler.

// UIDHandler generates and checks prefixed identifiers like `b:<uuid>`.
type UIDHandler interface {
	Generate(prefix string) string
	IsValid(id, prefix string) bool
}

// IDsHandler implements the UIDHandler interface with random v4 uuids.
type IDsHandler struct{}

// NewIDsHandler returns a ready to use IDsHandler.
func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a random unique identifier.
func (idh *IDsHandler) Generate(prefix string) string {
	id, _ := uuid.NewV4()
	return prefix + ":" + id.String()
}

// IsValid checks if a given string is a valid uuid after removal of custom prefix.
func (idh *IDsHandler) IsValid(id, prefix string) bool {
	if !strings.HasPrefix(id, prefix+":") {
		return false
	}
	return uuid.FromStringOrNil(strings.TrimPrefix(id, prefix+":")) != uuid.Nil
}
