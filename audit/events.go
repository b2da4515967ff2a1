package audit

import (
	"github.com/martinemde/vanna/user"
)

// ToolAccessCheck builds a tool_access_check event.
func ToolAccessCheck(u *user.User, scope Scope, toolName string, granted bool, required []string) Event {
	return NewEvent(EventToolAccessCheck, u, scope, map[string]any{
		"tool_name":       toolName,
		"access_granted":  granted,
		"required_groups": required,
	})
}

// UiFeatureAccessCheck builds a ui_feature_access_check event.
func UiFeatureAccessCheck(u *user.User, scope Scope, feature string, granted bool, allowed []string) Event {
	return NewEvent(EventUiFeatureAccessCheck, u, scope, map[string]any{
		"feature_name":   feature,
		"access_granted": granted,
		"allowed_groups": allowed,
	})
}

// ToolInvocation builds a tool_invocation event. When sanitize is set the
// parameters are redacted first.
func ToolInvocation(u *user.User, scope Scope, toolCallID, toolName string, params map[string]any, sanitize bool, uiFeatures []string) Event {
	if sanitize {
		params = SanitizeParameters(params)
	}
	return NewEvent(EventToolInvocation, u, scope, map[string]any{
		"tool_call_id":          toolCallID,
		"tool_name":             toolName,
		"parameters":            params,
		"parameters_sanitized":  sanitize,
		"ui_features_available": uiFeatures,
	})
}

// ResultInfo summarizes a tool result for auditing.
type ResultInfo struct {
	Success         bool
	Error           string
	ExecutionTimeMs float64
	ResultSizeBytes int
	UiComponentType string
}

// ToolResult builds a tool_result event.
func ToolResult(u *user.User, scope Scope, toolCallID, toolName string, info ResultInfo) Event {
	details := map[string]any{
		"tool_call_id":      toolCallID,
		"tool_name":         toolName,
		"success":           info.Success,
		"execution_time_ms": info.ExecutionTimeMs,
		"result_size_bytes": info.ResultSizeBytes,
	}
	if info.Error != "" {
		details["error"] = info.Error
	}
	if info.UiComponentType != "" {
		details["ui_component_type"] = info.UiComponentType
	}
	return NewEvent(EventToolResult, u, scope, details)
}

// MessageReceived builds a message_received event.
func MessageReceived(u *user.User, scope Scope, messageLength int) Event {
	return NewEvent(EventMessageReceived, u, scope, map[string]any{"message_length": messageLength})
}

// AiResponse builds an ai_response_generated event.
func AiResponse(u *user.User, scope Scope, responseLength, toolIterations int) Event {
	return NewEvent(EventAiResponseGenerated, u, scope, map[string]any{
		"response_length": responseLength,
		"tool_iterations": toolIterations,
	})
}
