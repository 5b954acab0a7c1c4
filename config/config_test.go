package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bondvault/crypto"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bondvaultd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validDeployment(t *testing.T) string {
	t.Helper()
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0x01
	return crypto.NewAddress(crypto.BondPrefix, raw).String()
}

func TestLoadValidConfig(t *testing.T) {
	deployment := validDeployment(t)
	path := writeConfig(t, `
ChainID = 7
Deployment = "`+deployment+`"
DataDir = "/var/lib/bondvaultd"
ListenAddress = "127.0.0.1:8545"
Environment = "dev"

[ratelimit]
RequestsPerSecond = 50.0
Burst = 100

[log]
File = "/var/log/bondvaultd/bondvaultd.log"
MaxSizeMB = 64
MaxBackups = 4
MaxAgeDays = 14
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 7 {
		t.Fatalf("chain id: got %d want 7", cfg.ChainID)
	}
	if cfg.RateLimit.Burst != 100 {
		t.Fatalf("burst: got %d want 100", cfg.RateLimit.Burst)
	}
	addr, err := cfg.DeploymentAddress()
	if err != nil {
		t.Fatalf("deployment address: %v", err)
	}
	if addr.String() != deployment {
		t.Fatalf("deployment round trip mismatch")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	deployment := validDeployment(t)
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing chain id",
			body: "Deployment = \"" + deployment + "\"\nDataDir = \"/tmp/d\"\nListenAddress = \":8545\"\n",
			want: "ChainID",
		},
		{
			name: "missing deployment",
			body: "ChainID = 1\nDataDir = \"/tmp/d\"\nListenAddress = \":8545\"\n",
			want: "Deployment",
		},
		{
			name: "bad deployment",
			body: "ChainID = 1\nDeployment = \"not-bech32\"\nDataDir = \"/tmp/d\"\nListenAddress = \":8545\"\n",
			want: "Deployment",
		},
		{
			name: "zero deployment",
			body: "ChainID = 1\nDeployment = \"" + crypto.ZeroAddress().String() + "\"\nDataDir = \"/tmp/d\"\nListenAddress = \":8545\"\n",
			want: "zero address",
		},
		{
			name: "missing data dir",
			body: "ChainID = 1\nDeployment = \"" + deployment + "\"\nListenAddress = \":8545\"\n",
			want: "DataDir",
		},
		{
			name: "missing listen address",
			body: "ChainID = 1\nDeployment = \"" + deployment + "\"\nDataDir = \"/tmp/d\"\n",
			want: "ListenAddress",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
