package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSecretsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	logger.Info("transfer requested", "transaction_secret", "0420", "Authorization", "Bearer abc", "amount", "12.00")

	if strings.Contains(buf.String(), "0420") || strings.Contains(buf.String(), "Bearer abc") {
		t.Fatalf("secret leaked into log: %s", buf.String())
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["transaction_secret"] != redacted {
		t.Fatalf("expected redacted secret, got %v", line["transaction_secret"])
	}
	if line["amount"] != "12.00" {
		t.Fatalf("expected amount to pass through, got %v", line["amount"])
	}
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "chatty")

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info level")
	}
	logger.Info("shown")
	if buf.Len() == 0 {
		t.Fatalf("info should be written")
	}
}
