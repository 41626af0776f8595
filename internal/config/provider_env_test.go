package config

import (
	"context"
	"testing"
)

func TestEnvVarProvider_GetParametersBatch(t *testing.T) {
	t.Setenv("PAYPROXY_TEST_SECRET_A", "value_a")
	t.Setenv("PAYPROXY_TEST_SECRET_B", "value_b")

	provider := NewEnvVarProvider()

	got, err := provider.GetParametersBatch(context.Background(), []string{
		"PAYPROXY_TEST_SECRET_A",
		"PAYPROXY_TEST_SECRET_B",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if got["PAYPROXY_TEST_SECRET_A"] != "value_a" {
		t.Errorf("unexpected value for A: %q", got["PAYPROXY_TEST_SECRET_A"])
	}
	if got["PAYPROXY_TEST_SECRET_B"] != "value_b" {
		t.Errorf("unexpected value for B: %q", got["PAYPROXY_TEST_SECRET_B"])
	}
}

func TestEnvVarProvider_MissingKeysOmitted(t *testing.T) {
	unsetEnv(t, "PAYPROXY_TEST_SECRET_MISSING")

	provider := NewEnvVarProvider()

	got, err := provider.GetParametersBatch(context.Background(), []string{
		"PAYPROXY_TEST_SECRET_MISSING",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, ok := got["PAYPROXY_TEST_SECRET_MISSING"]; ok {
		t.Error("missing keys must be omitted from the result, not returned empty")
	}
}

func TestEnvVarProvider_EmptyValuePresent(t *testing.T) {
	// A variable that exists with an empty value is still a resolution hit.
	t.Setenv("PAYPROXY_TEST_SECRET_EMPTY", "")

	provider := NewEnvVarProvider()

	got, err := provider.GetParametersBatch(context.Background(), []string{
		"PAYPROXY_TEST_SECRET_EMPTY",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if v, ok := got["PAYPROXY_TEST_SECRET_EMPTY"]; !ok || v != "" {
		t.Errorf("expected empty value returned for present variable, got %q (found=%v)", v, ok)
	}
}
