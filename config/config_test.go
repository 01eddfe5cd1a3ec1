package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `vnflow:
  name: "TestApp"
  version: "1.0"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Feed.Broker != DefaultBroker {
		t.Errorf("unexpected broker: %s", cfg.Feed.Broker)
	}
	if cfg.Feed.Port != 443 || cfg.Feed.Path != "/wss" {
		t.Errorf("unexpected endpoint: %s:%d%s", cfg.Feed.Broker, cfg.Feed.Port, cfg.Feed.Path)
	}
	if cfg.Feed.KeepAlive != 120*time.Second {
		t.Errorf("unexpected keep alive: %v", cfg.Feed.KeepAlive)
	}
	if cfg.Feed.QoS != 2 {
		t.Errorf("unexpected qos: %d", cfg.Feed.QoS)
	}
	if len(cfg.Feed.Topics) != 2 || !strings.HasSuffix(cfg.Feed.Topics[1], "tick/+") {
		t.Errorf("unexpected default topics: %v", cfg.Feed.Topics)
	}
	if cfg.Reconnect.FirstDelay != time.Second || cfg.Reconnect.Rate != 2 ||
		cfg.Reconnect.MaxDelay != 60*time.Second || cfg.Reconnect.MaxAttempts != 12 {
		t.Errorf("unexpected reconnect defaults: %+v", cfg.Reconnect)
	}
	if cfg.Sink.Path != "tick_data.csv" {
		t.Errorf("unexpected sink path: %s", cfg.Sink.Path)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeTempConfig(t, `vnflow:
  name: "TestApp"
  version: "1.0"
feed:
  topics:
    - "plaintext/quotes/stock/tick/VIC"
reconnect:
  first_delay: 2s
  max_attempts: 3
sink:
  path: "/tmp/out.csv"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Feed.Topics) != 1 || cfg.Feed.Topics[0] != "plaintext/quotes/stock/tick/VIC" {
		t.Errorf("topics not overridden: %v", cfg.Feed.Topics)
	}
	if cfg.Reconnect.FirstDelay != 2*time.Second || cfg.Reconnect.MaxAttempts != 3 {
		t.Errorf("reconnect not overridden: %+v", cfg.Reconnect)
	}
	if cfg.Sink.Path != "/tmp/out.csv" {
		t.Errorf("sink path not overridden: %s", cfg.Sink.Path)
	}
}

func TestMetricsNamespaceDefaultsToAppName(t *testing.T) {
	path := writeTempConfig(t, `vnflow:
  name: "TestApp"
  version: "1.0"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Logging.MetricsNamespace != "TestApp" {
		t.Errorf("unexpected metrics namespace: %q", cfg.Logging.MetricsNamespace)
	}

	path = writeTempConfig(t, `vnflow:
  name: "TestApp"
  version: "1.0"
logging:
  metrics_namespace: "Custom"
`)
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Logging.MetricsNamespace != "Custom" {
		t.Errorf("metrics namespace not overridden: %q", cfg.Logging.MetricsNamespace)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "vnflow:\n  version: \"1.0\"\n"},
		{"bad qos", "vnflow:\n  name: a\n  version: \"1\"\nfeed:\n  qos: 3\n"},
		{"bad path", "vnflow:\n  name: a\n  version: \"1\"\nfeed:\n  path: wss\n"},
		{"empty topic", "vnflow:\n  name: a\n  version: \"1\"\nfeed:\n  topics: [\"\"]\n"},
		{"archive without bucket", "vnflow:\n  name: a\n  version: \"1\"\narchive:\n  enabled: true\n  region: ap-southeast-1\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeTempConfig(t, c.content)
			if _, err := LoadConfig(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIsProductionLike(t *testing.T) {
	cases := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"staging", true},
		{"development", false},
		{"local", false},
	}
	for _, c := range cases {
		if got := IsProductionLike(c.env); got != c.want {
			t.Errorf("IsProductionLike(%q) = %v, want %v", c.env, got, c.want)
		}
	}
}
