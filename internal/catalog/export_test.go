package catalog_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"imagescout/internal/catalog"
	"imagescout/internal/testutil"
)

func TestExportRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newRepo(t)

	seed := []string{"python:3.12", "node:20"}
	if err := source.SaveAnalysis(ctx, testutil.NewAnalysis(seed[0],
		testutil.WithSystemPackages("curl", "git"),
		testutil.WithCapabilities("http_client"),
		testutil.WithVulnerabilities(0, 1, 0, 2),
	)); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if err := source.SaveAnalysis(ctx, testutil.NewAnalysis(seed[1],
		testutil.WithLanguage("node", "20.11.0", true),
		testutil.WithPackageManagers("npm"),
	)); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	snapshot, err := catalog.Export(ctx, source)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(snapshot.Images) != 2 {
		t.Fatalf("snapshot has %d images, want 2", len(snapshot.Images))
	}

	var buf bytes.Buffer
	if err := snapshot.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	decoded, err := catalog.ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	target := newRepo(t)
	restored, err := catalog.Restore(ctx, target, decoded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored != 2 {
		t.Fatalf("Restore = %d, want 2", restored)
	}

	for _, name := range seed {
		got, err := target.ImageByName(ctx, name)
		if err != nil {
			t.Fatalf("ImageByName %s: %v", name, err)
		}
		if got == nil {
			t.Fatalf("image %s missing after restore", name)
		}
	}

	py, err := target.ImageByName(ctx, "python:3.12")
	if err != nil {
		t.Fatalf("ImageByName: %v", err)
	}
	if len(py.SystemPackages) != 2 {
		t.Errorf("SystemPackages = %v, want 2 entries", py.SystemPackages)
	}
	if len(py.Capabilities) != 1 || py.Capabilities[0] != "http_client" {
		t.Errorf("Capabilities = %v, want [http_client]", py.Capabilities)
	}
	if py.Vulnerabilities.Total != 3 || py.Vulnerabilities.High != 1 {
		t.Errorf("Vulnerabilities = %+v, want total 3 high 1", py.Vulnerabilities)
	}
}

func TestReadSnapshotRejectsWrongVersion(t *testing.T) {
	input := strings.NewReader("version: 99\nimages: []\n")
	if _, err := catalog.ReadSnapshot(input); err == nil {
		t.Fatal("ReadSnapshot accepted unsupported version")
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	input := strings.NewReader("{not yaml at all::")
	if _, err := catalog.ReadSnapshot(input); err == nil {
		t.Fatal("ReadSnapshot accepted malformed input")
	}
}
