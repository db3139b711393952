package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "display.json", `{
		"ports": ["/dev/ttyACM0", "/dev/ttyACM1"],
		"serial": {"baud_rate": 115200},
		"read_timeout": "500ms",
		"sensor_identity": "Teensy2",
		"concurrent_writes": true
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Ports) != 2 || cfg.Serial.BaudRate != 115200 {
		t.Errorf("cfg = %+v", cfg)
	}
	if got := cfg.GetReadTimeout(); got != 500*time.Millisecond {
		t.Errorf("GetReadTimeout = %v", got)
	}
	if got := cfg.GetSensorIdentity(); got != "Teensy2" {
		t.Errorf("GetSensorIdentity = %q", got)
	}
	if !cfg.GetConcurrentWrites() {
		t.Error("GetConcurrentWrites = false")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "display.yaml", `
ports:
  - /dev/ttyACM3
serial:
  parity: even
identities: [Left, Right]
mask_path: /var/lib/display/mask.json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ports[0] != "/dev/ttyACM3" || cfg.Serial.Parity != "even" {
		t.Errorf("cfg = %+v", cfg)
	}
	if got := cfg.GetIdentities(); got != [2]string{"Left", "Right"} {
		t.Errorf("GetIdentities = %v", got)
	}
	if got := cfg.GetMaskPath(); got != "/var/lib/display/mask.json" {
		t.Errorf("GetMaskPath = %q", got)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &DisplayConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty config should validate: %v", err)
	}
	if cfg.GetReadTimeout() != 2*time.Second {
		t.Errorf("GetReadTimeout = %v", cfg.GetReadTimeout())
	}
	if cfg.GetIdentities() != [2]string{"Teensy1", "Teensy2"} {
		t.Errorf("GetIdentities = %v", cfg.GetIdentities())
	}
	if cfg.GetSensorIdentity() != "Teensy1" || cfg.GetListen() != "localhost:8080" || cfg.GetDBPath() != "display.db" {
		t.Error("unexpected string defaults")
	}
	if cfg.GetGeometryPath() != "" || cfg.GetConcurrentWrites() {
		t.Error("unexpected defaults")
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name, file, body, want string
	}{
		{"extension", "display.toml", `x = 1`, "extension"},
		{"syntax", "display.json", `{`, "failed to parse"},
		{"too many ports", "display.json", `{"ports": ["a", "b", "c"]}`, "at most"},
		{"duplicate ports", "display.json", `{"ports": ["a", "a"]}`, "must differ"},
		{"bad timeout", "display.json", `{"read_timeout": "soon"}`, "read_timeout"},
		{"negative timeout", "display.json", `{"read_timeout": "-1s"}`, "positive"},
		{"bad baud", "display.yaml", "serial:\n  baud_rate: 12345\n", "baud"},
		{"one identity", "display.json", `{"identities": ["Teensy1"]}`, "identities"},
		{"same identity", "display.json", `{"identities": ["A", "A"]}`, "distinct"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.file, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadTooLarge(t *testing.T) {
	big := `{"listen": "` + strings.Repeat("x", maxFileSize) + `"}`
	if _, err := Load(writeConfig(t, "big.json", big)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "display.example.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetIdentities(); got != [2]string{"Teensy1", "Teensy2"} {
		t.Errorf("GetIdentities = %v", got)
	}
	if got := cfg.GetImagesDir(); got != "/var/lib/display1593/images" {
		t.Errorf("GetImagesDir = %q", got)
	}
	if got := cfg.GetReadTimeout(); got != 2*time.Second {
		t.Errorf("GetReadTimeout = %v", got)
	}
}
