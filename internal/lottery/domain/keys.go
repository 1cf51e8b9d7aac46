package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Status hash fields.
const (
	StatusFieldStatus      = "status"
	StatusFieldCreatedAt   = "createdAt"
	StatusFieldProcessedAt = "processedAt"
)

// CampaignCacheKey returns the cache key holding the serialized campaign.
func CampaignCacheKey(id int64) string {
	return "campaign:" + strconv.FormatInt(id, 10)
}

// StatusCacheKey returns the cache key of the status projection hash.
func StatusCacheKey(requestID uuid.UUID) string {
	return "lottery:status:" + requestID.String()
}
