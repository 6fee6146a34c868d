package utils

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes make session and subscription ids distinguishable in logs.
const (
	SessionIDPrefix      = "auc_"
	SubscriptionIDPrefix = "sub_"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// NewSessionID returns an id for an auction session
func NewSessionID() string {
	return SessionIDPrefix + GenerateID()
}

// NewSubscriptionID returns an id for an event stream subscriber
func NewSubscriptionID() string {
	return SubscriptionIDPrefix + GenerateID()
}

// ValidSessionID reports whether id has the session prefix and a uuid body
func ValidSessionID(id string) bool {
	rest, ok := strings.CutPrefix(id, SessionIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
