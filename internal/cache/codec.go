package cache

import (
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/covenant/internal/domain"
)

func makeKey(namespace, key string) string {
	return namespace + ":" + key
}

func riskKey(key string) string {
	return "risk:" + key
}

// Only the content-derived part of a result is stored; clause identity is
// attached by the caller on a hit.
func encodeClauseRisk(result *domain.ClauseRiskResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("clause risk result is required")
	}
	stored := *result
	stored.ClauseID = ""
	stored.ClauseType = ""
	return json.Marshal(&stored)
}

func decodeClauseRisk(data []byte) (*domain.ClauseRiskResult, error) {
	var r domain.ClauseRiskResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode clause risk: %w", err)
	}
	return &r, nil
}
