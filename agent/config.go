package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/martinemde/vanna/audit"
	"github.com/martinemde/vanna/user"
)

// ErrInvalidConfig wraps every Config validation failure.
var ErrInvalidConfig = errors.New("invalid agent config")

// UI features that can be restricted to groups.
const (
	FeatureToolNames                   = "tool_names"
	FeatureToolArguments               = "tool_arguments"
	FeatureToolError                   = "tool_error"
	FeatureToolInvocationMessageInChat = "tool_invocation_message_in_chat"
	FeatureMemoryDetailedResults       = "memory_detailed_results"
)

// UiFeatures maps a feature to the groups allowed to see it.
type UiFeatures struct {
	FeatureGroupAccess map[string][]string `json:"feature_group_access" yaml:"feature_group_access" mapstructure:"feature_group_access"`
}

// DefaultUiFeatures shows tool names to everyone and keeps arguments, errors
// and detailed memory results to admins.
func DefaultUiFeatures() UiFeatures {
	admin := []string{"admin"}
	return UiFeatures{FeatureGroupAccess: map[string][]string{
		FeatureToolNames:                   {},
		FeatureToolArguments:               admin,
		FeatureToolError:                   admin,
		FeatureToolInvocationMessageInChat: admin,
		FeatureMemoryDetailedResults:       admin,
	}}
}

// CanUserAccess reports whether u may see feature. A feature with no
// configured groups is visible to everyone.
func (f UiFeatures) CanUserAccess(feature string, u *user.User) bool {
	groups := f.FeatureGroupAccess[feature]
	if len(groups) == 0 {
		return true
	}
	return u.InAnyGroup(groups)
}

// Available lists the features u may see, sorted.
func (f UiFeatures) Available(u *user.User) []string {
	out := []string{}
	for feature := range f.FeatureGroupAccess {
		if f.CanUserAccess(feature, u) {
			out = append(out, feature)
		}
	}
	sort.Strings(out)
	return out
}

// Config controls agent behavior.
type Config struct {
	MaxToolIterations         int          `json:"max_tool_iterations" yaml:"max_tool_iterations" mapstructure:"max_tool_iterations" env:"MAX_TOOL_ITERATIONS" validate:"gt=0"`
	StreamResponses           bool         `json:"stream_responses" yaml:"stream_responses" mapstructure:"stream_responses" env:"STREAM_RESPONSES"`
	AutoSaveConversations     bool         `json:"auto_save_conversations" yaml:"auto_save_conversations" mapstructure:"auto_save_conversations" env:"AUTO_SAVE_CONVERSATIONS"`
	IncludeThinkingIndicators bool         `json:"include_thinking_indicators" yaml:"include_thinking_indicators" mapstructure:"include_thinking_indicators" env:"INCLUDE_THINKING_INDICATORS"`
	Temperature               float64      `json:"temperature" yaml:"temperature" mapstructure:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens                 *int         `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens" validate:"omitempty,gt=0"`
	UiFeatures                UiFeatures   `json:"ui_features" yaml:"ui_features" mapstructure:"ui_features"`
	Audit                     audit.Config `json:"audit" yaml:"audit" mapstructure:"audit"`
	DetectToolLoops           bool         `json:"detect_tool_loops" yaml:"detect_tool_loops" mapstructure:"detect_tool_loops" env:"DETECT_TOOL_LOOPS"`
	LoopDetectionWindow       int          `json:"loop_detection_window" yaml:"loop_detection_window" mapstructure:"loop_detection_window" env:"LOOP_DETECTION_WINDOW" validate:"gte=0"`
}

// DefaultConfig returns the standard agent configuration.
func DefaultConfig() Config {
	return Config{
		MaxToolIterations:         10,
		StreamResponses:           true,
		AutoSaveConversations:     true,
		IncludeThinkingIndicators: true,
		Temperature:               0.7,
		UiFeatures:                DefaultUiFeatures(),
		Audit:                     audit.DefaultConfig(),
		LoopDetectionWindow:       10,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
