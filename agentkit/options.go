// Copyright (c) Microsoft. All rights reserved.

package agentkit

// ToolChoice controls how the model selects tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ModelOptions tunes a single backend request.
// Pointer fields use nil to represent "unset" (use provider default).
type ModelOptions struct {
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stop        []string
	ToolChoice  ToolChoice
	User        string

	// Extra holds provider-specific options not covered by standard fields.
	Extra map[string]any
}

// Float returns a pointer to v, for optional option fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional option fields.
func Int(v int) *int { return &v }

// MergeModelOptions overlays override onto base. Nil or zero-value fields in
// override do not overwrite base. Extra maps are merged with override keys
// winning.
func MergeModelOptions(base, override *ModelOptions) *ModelOptions {
	if base == nil {
		if override == nil {
			return &ModelOptions{}
		}
		cp := *override
		return &cp
	}
	if override == nil {
		cp := *base
		return &cp
	}

	merged := *base

	if override.Model != "" {
		merged.Model = override.Model
	}
	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}
	if override.TopP != nil {
		merged.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		merged.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		merged.Stop = override.Stop
	}
	if override.ToolChoice != "" {
		merged.ToolChoice = override.ToolChoice
	}
	if override.User != "" {
		merged.User = override.User
	}

	if len(override.Extra) > 0 {
		extra := make(map[string]any, len(merged.Extra)+len(override.Extra))
		for k, v := range merged.Extra {
			extra[k] = v
		}
		for k, v := range override.Extra {
			extra[k] = v
		}
		merged.Extra = extra
	}

	return &merged
}
