package objectstore

import "testing"

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Endpoint == "" || cfg.BucketResults == "" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		Endpoint:      "localhost:9000",
		AccessKey:     "quarry",
		SecretKey:     "quarryminio",
		Region:        "us-east-1",
		BucketResults: "results",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	cfg := base
	cfg.Endpoint = "http://localhost:9000"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for endpoint with scheme")
	}

	cfg = base
	cfg.BucketResults = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for blank bucket")
	}

	cfg = base
	cfg.SecretKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing secret key")
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("", "Experiments/Descriptions/abc.json"); got != "Experiments/Descriptions/abc.json" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := objectKey(" runs/ ", "Heartbeat.log"); got != "runs/Heartbeat.log" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := objectKey("/deep/prefix/", "a/b.csv"); got != "deep/prefix/a/b.csv" {
		t.Fatalf("unexpected key %q", got)
	}
}
