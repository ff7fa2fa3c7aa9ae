package replayconfig

import "testing"

func TestEnvOrDefault(t *testing.T) {
	restore := ScopedOverride("SUI_TEST_STR", "hello")
	defer restore()
	if got := EnvOrDefault("SUI_TEST_STR", "fallback"); got != "hello" {
		t.Fatalf("EnvOrDefault = %q, want hello", got)
	}
	if got := EnvOrDefault("SUI_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("EnvOrDefault unset = %q, want fallback", got)
	}
}

func TestEnvOrDefaultInt(t *testing.T) {
	restore := ScopedOverride("SUI_TEST_INT", "42")
	defer restore()
	if got := EnvOrDefaultInt("SUI_TEST_INT", 7); got != 42 {
		t.Fatalf("EnvOrDefaultInt = %d, want 42", got)
	}
	if got := EnvOrDefaultInt("SUI_TEST_INT_UNSET", 7); got != 7 {
		t.Fatalf("EnvOrDefaultInt unset = %d, want 7", got)
	}
}

func TestEnvOrDefaultIntMalformedFallsBack(t *testing.T) {
	restore := ScopedOverride("SUI_TEST_INT_BAD", "not-a-number")
	defer restore()
	if got := EnvOrDefaultInt("SUI_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("EnvOrDefaultInt malformed = %d, want fallback 7", got)
	}
}

func TestEnvOrDefaultUint64(t *testing.T) {
	restore := ScopedOverride("SUI_TEST_U64", "18446744073709551615")
	defer restore()
	if got := EnvOrDefaultUint64("SUI_TEST_U64", 1); got != 18446744073709551615 {
		t.Fatalf("EnvOrDefaultUint64 = %d", got)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	restore := ScopedOverride("SUI_TEST_BOOL", "true")
	defer restore()
	if got := EnvOrDefaultBool("SUI_TEST_BOOL", false); !got {
		t.Fatal("EnvOrDefaultBool = false, want true")
	}
	if got := EnvOrDefaultBool("SUI_TEST_BOOL_UNSET", true); !got {
		t.Fatal("EnvOrDefaultBool unset = false, want fallback true")
	}
}

func TestScopedOverrideRestoresPriorValue(t *testing.T) {
	const key = "SUI_TEST_RESTORE"
	restoreOuter := ScopedOverride(key, "outer")
	func() {
		restoreInner := ScopedOverride(key, "inner")
		defer restoreInner()
		if got := EnvOrDefault(key, ""); got != "inner" {
			t.Fatalf("inner scope = %q, want inner", got)
		}
	}()
	if got := EnvOrDefault(key, ""); got != "outer" {
		t.Fatalf("after inner restore = %q, want outer", got)
	}
	restoreOuter()
	if got := EnvOrDefault(key, "gone"); got != "gone" {
		t.Fatalf("after outer restore = %q, want gone", got)
	}
}

func TestParseProfile(t *testing.T) {
	cases := map[string]Profile{
		"safe":     Safe,
		"SAFE":     Safe,
		"fast":     Fast,
		"balanced": Balanced,
		"bogus":    Balanced,
		"":         Balanced,
	}
	for in, want := range cases {
		if got := ParseProfile(in); got != want {
			t.Fatalf("ParseProfile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadEndpointsAppliesDefaults(t *testing.T) {
	cfg := LoadEndpoints(ParseProfile("balanced"))
	if cfg.GraphQLEndpoint == "" {
		t.Fatal("expected a default GraphQL endpoint")
	}
	if cfg.ObjectConcurrency <= 0 || cfg.PackageConcurrency <= 0 {
		t.Fatalf("expected positive concurrency defaults, got %+v", cfg)
	}
	// LoadEndpoints is memoized for the process; a second call with a
	// different profile must return the identical cached value.
	again := LoadEndpoints(ParseProfile("fast"))
	if again != cfg {
		t.Fatalf("expected LoadEndpoints to be memoized, got %+v then %+v", cfg, again)
	}
}
