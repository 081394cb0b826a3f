package anonymizer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputPaths(t *testing.T) {
	input := filepath.Join("data", "study")
	output := filepath.Join("data", "study", "anonymized")

	outputPath, auditPath := outputPaths(input, output, filepath.Join(input, "series1", "im01.dcm"))
	if want := filepath.Join(output, "series1", "im01.dcm"); outputPath != want {
		t.Errorf("outputPath = %q, want %q", outputPath, want)
	}
	if want := filepath.Join(output, "series1", "im01.dcm.audit.json"); auditPath != want {
		t.Errorf("auditPath = %q, want %q", auditPath, want)
	}
}

func TestExcludeSubtree(t *testing.T) {
	outputDir := filepath.Join("in", "anonymized")
	files := []string{
		filepath.Join("in", "a.dcm"),
		filepath.Join("in", "anonymized", "a.dcm"),
		filepath.Join("in", "b.dcm"),
	}
	got := excludeSubtree(files, outputDir)
	if len(got) != 2 || got[0] != filepath.Join("in", "a.dcm") || got[1] != filepath.Join("in", "b.dcm") {
		t.Errorf("excludeSubtree() = %v", got)
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.dcm"), []byte("not a dicom"), 0644); err != nil {
		t.Fatal(err)
	}

	stats, err := Run(Config{InputDir: dir, DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Total != 1 || stats.Skipped != 1 || stats.Success != 0 {
		t.Errorf("stats = %+v, want 1 file skipped", stats)
	}
	if _, err := os.Stat(filepath.Join(dir, "anonymized", ".progress.json")); !os.IsNotExist(err) {
		t.Error("dry run must not write a progress file")
	}
}

func TestRunRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.dcm"), []byte("not a dicom"), 0644); err != nil {
		t.Fatal(err)
	}

	stats, err := Run(Config{InputDir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 failure", stats)
	}
	if _, err := os.Stat(filepath.Join(dir, "anonymized", ".progress.json")); err != nil {
		t.Errorf("progress file not written: %v", err)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	stats, err := Run(Config{InputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("stats = %+v, want empty", stats)
	}
}
