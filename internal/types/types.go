// Package types provides common type definitions for the crypto-folio system.
package types

// FearGreedClassification represents the sentiment band for a fear/greed value
type FearGreedClassification string

const (
	// ClassificationExtremeFear covers index values 0-24
	ClassificationExtremeFear FearGreedClassification = "Extreme Fear"
	// ClassificationFear covers index values 25-44
	ClassificationFear FearGreedClassification = "Fear"
	// ClassificationNeutral covers index values 45-55
	ClassificationNeutral FearGreedClassification = "Neutral"
	// ClassificationGreed covers index values 56-75
	ClassificationGreed FearGreedClassification = "Greed"
	// ClassificationExtremeGreed covers index values 76-100
	ClassificationExtremeGreed FearGreedClassification = "Extreme Greed"
	// ClassificationUnknown is returned for out-of-range values
	ClassificationUnknown FearGreedClassification = "Unknown"
)

// ClassifyFearGreed maps an index value to its sentiment band
func ClassifyFearGreed(value int) FearGreedClassification {
	switch {
	case value >= 0 && value <= 24:
		return ClassificationExtremeFear
	case value >= 25 && value <= 44:
		return ClassificationFear
	case value >= 45 && value <= 55:
		return ClassificationNeutral
	case value >= 56 && value <= 75:
		return ClassificationGreed
	case value >= 76 && value <= 100:
		return ClassificationExtremeGreed
	default:
		return ClassificationUnknown
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
