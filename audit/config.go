package audit

// Config selects which events are recorded.
type Config struct {
	Enabled             bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	LogToolAccessChecks bool `json:"log_tool_access_checks" yaml:"log_tool_access_checks" mapstructure:"log_tool_access_checks"`
	LogToolInvocations  bool `json:"log_tool_invocations" yaml:"log_tool_invocations" mapstructure:"log_tool_invocations"`
	LogToolResults      bool `json:"log_tool_results" yaml:"log_tool_results" mapstructure:"log_tool_results"`
	LogUiFeatureChecks  bool `json:"log_ui_feature_checks" yaml:"log_ui_feature_checks" mapstructure:"log_ui_feature_checks"`
	SanitizeParameters  bool `json:"sanitize_parameters" yaml:"sanitize_parameters" mapstructure:"sanitize_parameters"`
}

// DefaultConfig records tool activity with sanitized parameters.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		LogToolAccessChecks: true,
		LogToolInvocations:  true,
		LogToolResults:      true,
		SanitizeParameters:  true,
	}
}
