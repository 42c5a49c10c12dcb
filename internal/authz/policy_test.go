package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dasch-swiss/sipi-go/internal/iiif"
)

func TestEvaluateWithNoPolicyAlwaysAllows(t *testing.T) {
	p := Policy{}

	req, err := iiif.Parse("bears/full/full/0/default.jpg")
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Evaluate(context.Background(), req, "127.0.0.1", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Allow {
		t.Fatalf("expected Allow with no policy loaded, got %v", res.Decision)
	}
}

func TestLoadAndEvaluateDenyRule(t *testing.T) {
	dir := t.TempDir()
	rego := `package iiif

decision = {"decision": "deny", "reason": "restricted"} {
	input.identifier == "secret"
}

decision = {"decision": "allow"} {
	input.identifier != "secret"
}
`
	file := filepath.Join(dir, "policy.rego")
	if err := os.WriteFile(file, []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load([]string{file})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Ready() {
		t.Fatal("expected policy to be ready after Load")
	}

	denyReq, _ := iiif.Parse("secret/full/full/0/default.jpg")
	res, err := p.Evaluate(context.Background(), denyReq, "127.0.0.1", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Deny {
		t.Fatalf("expected Deny, got %v (%s)", res.Decision, res.Reason)
	}

	allowReq, _ := iiif.Parse("bears/full/full/0/default.jpg")
	res, err = p.Evaluate(context.Background(), allowReq, "127.0.0.1", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Allow {
		t.Fatalf("expected Allow, got %v", res.Decision)
	}
}

func TestAllowCarriesWatermarkAndRestrictedSize(t *testing.T) {
	dir := t.TempDir()
	rego := `package iiif

decision = {"decision": "allow", "watermark": "confidential", "restricted_width": 128} {
	true
}
`
	file := filepath.Join(dir, "policy.rego")
	if err := os.WriteFile(file, []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load([]string{file})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := iiif.Parse("bears/full/max/0/default.jpg")
	res, err := p.Evaluate(context.Background(), req, "127.0.0.1", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Allow {
		t.Fatalf("expected Allow, got %v", res.Decision)
	}
	if res.WatermarkText != "confidential" {
		t.Fatalf("expected watermark to ride on Allow, got %q", res.WatermarkText)
	}
	if res.RestrictedSize == nil || res.RestrictedSize.Width != 128 {
		t.Fatalf("expected restricted_size to ride on Allow, got %+v", res.RestrictedSize)
	}
}

func TestSubstituteCarriesNewMasterPath(t *testing.T) {
	dir := t.TempDir()
	rego := `package iiif

decision = {"decision": "substitute", "new_master_path": "placeholders/redacted.jpg"} {
	true
}
`
	file := filepath.Join(dir, "policy.rego")
	if err := os.WriteFile(file, []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load([]string{file})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := iiif.Parse("bears/full/max/0/default.jpg")
	res, err := p.Evaluate(context.Background(), req, "127.0.0.1", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision != Substitute {
		t.Fatalf("expected Substitute, got %v", res.Decision)
	}
	if res.SubstitutePath != "placeholders/redacted.jpg" {
		t.Fatalf("expected new_master_path to decode into SubstitutePath, got %q", res.SubstitutePath)
	}
}
