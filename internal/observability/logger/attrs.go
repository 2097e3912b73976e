package logger

import "go.uber.org/zap"

// SafeUserID logs a user identifier truncated to a stable prefix so that full
// identifiers never land in log aggregation.
func SafeUserID(userID string) zap.Field {
	const keep = 8
	if len(userID) > keep {
		userID = userID[:keep] + "…"
	}
	return zap.String("user_id", userID)
}
