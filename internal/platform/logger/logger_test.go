package logger

import "testing"

func TestSanitizeKVsRedactsSensitiveKeys(t *testing.T) {
	kv := []interface{}{
		"api_key", "sk-abcdefghijklmnopqrstuvwxyz",
		"path", "/api/v1/funnel/simulate",
		"Authorization", "Bearer whatever",
	}
	out := sanitizeKVs(kv)
	if len(out) != len(kv) {
		t.Fatalf("expected %d elements, got %d", len(kv), len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", out[1])
	}
	if out[3] != "/api/v1/funnel/simulate" {
		t.Fatalf("path should pass through: %v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("authorization not redacted: %v", out[5])
	}
}

func TestSanitizeValueNestedMap(t *testing.T) {
	in := map[string]interface{}{
		"openai_api_key": "sk-123",
		"count":          3,
	}
	out := sanitizeValue("payload", in)
	m, ok := out.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", out)
	}
	if m["openai_api_key"] != "[REDACTED]" {
		t.Fatalf("nested key not redacted: %v", m["openai_api_key"])
	}
	if m["count"] != 3 {
		t.Fatalf("nested value should pass through: %v", m["count"])
	}
}

func TestLooksLikeBearerSecret(t *testing.T) {
	if !looksLikeBearerSecret("sk-abcdefghijklmnopqrstuvwxyz123456") {
		t.Fatalf("sk- style key should match")
	}
	if looksLikeBearerSecret("paid_search") {
		t.Fatalf("plain enum value should not match")
	}
}
