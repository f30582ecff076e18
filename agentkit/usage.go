// Copyright (c) Microsoft. All rights reserved.

package agentkit

// UsageDetails holds token consumption statistics for a model response.
type UsageDetails struct {
	InputTokens  int `json:"inputTokenCount,omitempty"`
	OutputTokens int `json:"outputTokenCount,omitempty"`
	TotalTokens  int `json:"totalTokenCount,omitempty"`
}

// Add accumulates other into u.
func (u *UsageDetails) Add(other UsageDetails) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
