package replayconfig

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Profile selects a bundle of concurrency/timeout defaults (spec §6).
type Profile string

const (
	Safe     Profile = "safe"
	Balanced Profile = "balanced"
	Fast     Profile = "fast"
)

// profileDefaults mirrors the three named profiles from spec §6. Values are
// only applied to an environment variable the caller has not already set.
var profileDefaults = map[Profile]map[string]string{
	Safe: {
		"SUI_OBJECT_FETCH_CONCURRENCY":  "4",
		"SUI_PACKAGE_FETCH_CONCURRENCY": "2",
	},
	Balanced: {
		"SUI_OBJECT_FETCH_CONCURRENCY":  "16",
		"SUI_PACKAGE_FETCH_CONCURRENCY": "8",
	},
	Fast: {
		"SUI_OBJECT_FETCH_CONCURRENCY":  "64",
		"SUI_PACKAGE_FETCH_CONCURRENCY": "32",
	},
}

// ParseProfile normalizes a profile name; unknown names fall back to Balanced.
func ParseProfile(s string) Profile {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case Safe:
		return Safe
	case Fast:
		return Fast
	default:
		return Balanced
	}
}

// EndpointConfig captures the handful of env vars read once at fetcher
// creation time (spec §6 "Environment variables (process-wide; read at
// fetcher creation)").
type EndpointConfig struct {
	GRPCEndpoint        string
	GRPCAPIKey          string
	GraphQLEndpoint     string
	CheckpointGraphQL   string
	ObjectConcurrency   int
	PackageConcurrency  int
}

const defaultGraphQLEndpoint = "https://sui-mainnet.mystenlabs.com/graphql"

var (
	endpointOnce sync.Once
	endpointCfg  EndpointConfig
)

// LoadEndpoints reads the environment exactly once per process (guarded the
// way the teacher guards its framework package cache with sync.Once), then
// applies profile defaults for any key the caller left unset. Subsequent
// calls return the memoized value, whatever profile they pass.
func LoadEndpoints(profile Profile) EndpointConfig {
	endpointOnce.Do(func() {
		applyProfileDefaults(profile)
		endpointCfg = EndpointConfig{
			GRPCEndpoint:       EnvOrDefault("SUI_HISTORICAL_GRPC_ENDPOINT", ""),
			GRPCAPIKey:         EnvOrDefault("SUI_HISTORICAL_GRPC_API_KEY", ""),
			GraphQLEndpoint:    EnvOrDefault("SUI_GRAPHQL_ENDPOINT", defaultGraphQLEndpoint),
			CheckpointGraphQL:  EnvOrDefault("SUI_CHECKPOINT_LOOKUP_GRAPHQL", ""),
			ObjectConcurrency:  EnvOrDefaultInt("SUI_OBJECT_FETCH_CONCURRENCY", 8),
			PackageConcurrency: EnvOrDefaultInt("SUI_PACKAGE_FETCH_CONCURRENCY", 4),
		}
	})
	return endpointCfg
}

func applyProfileDefaults(profile Profile) {
	for key, val := range profileDefaults[profile] {
		if _, ok := getCached(key); ok {
			continue
		}
		// Only seed process env when caller hasn't set it; viper.BindEnv
		// below still lets a genuine env var shadow this.
		if v := cachedEnv(key, ""); v == "" {
			_ = os.Setenv(key, val)
			_ = viper.BindEnv(key)
			viper.SetDefault(key, val)
		}
	}
}

// YAMLOverrides loads optional replay-profile overrides from a YAML file
// (e.g. concurrency tuning per deployment), the way the teacher's
// pkg/config.Load merges a YAML file via viper before env overrides apply.
func YAMLOverrides(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}
