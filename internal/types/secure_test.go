package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestSecretString_FmtRedaction(t *testing.T) {
	secret := SecretString("sk_live_supersecret")

	for _, rendered := range []string{
		fmt.Sprintf("%s", secret),
		fmt.Sprintf("%v", secret),
		fmt.Sprint(secret),
	} {
		if strings.Contains(rendered, "sk_live_supersecret") {
			t.Errorf("secret leaked through fmt: %q", rendered)
		}
		if !strings.Contains(rendered, "REDACTED") {
			t.Errorf("expected redaction marker, got %q", rendered)
		}
	}
}

func TestSecretString_JSONRedaction(t *testing.T) {
	payload := struct {
		Key SecretString `json:"key"`
	}{Key: "whsec_supersecret"}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(out), "whsec_supersecret") {
		t.Errorf("secret leaked through JSON: %s", out)
	}
	if string(out) != `{"key":"***REDACTED***"}` {
		t.Errorf("unexpected JSON encoding: %s", out)
	}
}

func TestSecretString_Unmask(t *testing.T) {
	secret := SecretString("sk_test_abc")
	if secret.Unmask() != "sk_test_abc" {
		t.Errorf("Unmask must return the raw value, got %q", secret.Unmask())
	}
}

func TestIsTestKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"sk_test_abc", true},
		{"sk_live_abc", false},
		{"whsec_abc", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsTestKey(tc.key); got != tc.want {
			t.Errorf("IsTestKey(%q): expected %v, got %v", tc.key, tc.want, got)
		}
	}
}
