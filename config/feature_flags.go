package config

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags manages feature toggles with per-user overrides and
// percentage rollout.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// userOverrides pin a flag for single users, e.g. the admin testing it.
	userOverrides map[int64]map[string]bool // telegramID -> feature -> enabled
}

// Feature is one flag and its rollout.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is 0..100.
	RolloutPercent int
}

// Flags read by the bot.
const (
	FeatureJoinOnRead         = "stats.join_on_read"        // /stats and /leaderboard add the caller to the chat
	FeatureDuplicateNotice    = "score.duplicate_notice"    // Reply when today's result was already counted
	FeatureRetroactiveWarning = "score.retroactive_warning" // Reply when an older result was ignored
	FeatureAdminCommands      = "admin.commands"            // /adduser, /admingame, /purgetest, /restart
	FeatureClearChat          = "clear.chat"                // /clear in groups wipes the chat
	FeatureHTTPAPI            = "http.api"                  // Read-only JSON API
)

var defaultFeatures = []Feature{
	{Name: FeatureJoinOnRead, Description: "Join the chat on /stats and /leaderboard", Enabled: true, RolloutPercent: 100},
	{Name: FeatureDuplicateNotice, Description: "Tell users a result was already counted", Enabled: true, RolloutPercent: 100},
	{Name: FeatureRetroactiveWarning, Description: "Warn about ignored older results", Enabled: true, RolloutPercent: 100},
	{Name: FeatureAdminCommands, Description: "Operator commands in chat", Enabled: true, RolloutPercent: 100},
	{Name: FeatureClearChat, Description: "Clear a group leaderboard", Enabled: true, RolloutPercent: 100},
	{Name: FeatureHTTPAPI, Description: "Read-only stats API", Enabled: false, RolloutPercent: 0},
}

// featureKey maps a flag name to its config key.
// "score.duplicate_notice" -> "features.score_duplicate_notice"
func featureKey(name string) string {
	return "features." + strings.ReplaceAll(name, ".", "_")
}

// featureNameToEnvKey maps "stats.join_on_read" to FEATURE_STATS_JOIN_ON_READ.
// "score.duplicate_notice" -> "FEATURE_SCORE_DUPLICATE_NOTICE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

func setFeatureDefaults(v *viper.Viper) {
	for _, f := range defaultFeatures {
		key := featureKey(f.Name)
		v.SetDefault(key, strconv.FormatBool(f.Enabled))
		_ = v.BindEnv(key, featureNameToEnvKey(f.Name))
	}
}

// NewFeatureFlags returns flags with default values.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature, len(defaultFeatures)),
		userOverrides: make(map[int64]map[string]bool),
	}
	for _, f := range defaultFeatures {
		feature := f
		ff.features[f.Name] = &feature
	}
	return ff
}

// LoadFeatureFlags builds flags from the features.* keys.
// Values: true|false|<percent>
// Example: FEATURE_HTTP_API=true
// Example: FEATURE_SCORE_DUPLICATE_NOTICE=50 (50% rollout)
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := NewFeatureFlags()
	for name, feature := range ff.features {
		val := strings.TrimSpace(v.GetString(featureKey(name)))
		if val == "" {
			continue
		}

		// Try parsing as boolean
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		// Try parsing as percentage
		if p, err := strconv.Atoi(strings.TrimSuffix(val, "%")); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
	return ff
}

// IsEnabled reports whether a feature is on globally.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled && feature.RolloutPercent > 0
}

// EnabledFor reports whether a feature is on for the given user.
// Unknown features are off.
func (ff *FeatureFlags) EnabledFor(featureName string, userID int64) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// per-user override wins
	if userID != 0 {
		if overrides, ok := ff.userOverrides[userID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && userID != 0 {
		return isInRollout(userID, featureName, feature.RolloutPercent)
	}
	return feature.RolloutPercent > 0
}

// The bucket is fnv32a(name+userID) mod 100, so a user keeps it across restarts.
func isInRollout(userID int64, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(userID, 10)))

	bucket := int(h.Sum32() % 100)
	return bucket < percent
}

// SetUserOverride pins the flag for one Telegram user.
func (ff *FeatureFlags) SetUserOverride(userID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides drops every override of userID.
func (ff *FeatureFlags) ClearUserOverrides(userID int64) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent changes how many users see the flag.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature is SetRolloutPercent(name, 100).
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature is SetRolloutPercent(name, 0).
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// Snapshot returns copies of all features sorted by name.
func (ff *FeatureFlags) Snapshot() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Errors

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError is returned by the mutators.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
