package redis

import (
	"strconv"
	"time"

	"users-service/internal/models"
)

const (
	verificationPrefix = "verification:"
	attemptsSuffix     = ":attempts"
	authSessionPrefix  = "authsession:"
	sessionsPrefix     = "sessions:"
	sendLimitPrefix    = "rate_limit:verification_send:"

	opTimeout = 5 * time.Second
)

func codeKey(identifier string) string {
	return verificationPrefix + identifier
}

func attemptsKey(identifier string) string {
	return verificationPrefix + identifier + attemptsSuffix
}

func authSessionKey(identifier string, op models.Operation) string {
	return authSessionPrefix + identifier + ":" + string(op)
}

func sessionsKey(userID int64) string {
	return sessionsPrefix + strconv.FormatInt(userID, 10)
}

func sendLimitKey(identifier string) string {
	return sendLimitPrefix + identifier
}
