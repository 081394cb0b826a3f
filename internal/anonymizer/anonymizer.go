// Package anonymizer runs the de-identification engine over directories
// of DICOM files, mirroring the input layout under the output directory
// and writing one audit log next to each anonymized file.
package anonymizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"dcmkit/internal/deident"
	"dcmkit/internal/dicomio"
	"dcmkit/internal/progress"
)

// Config holds the anonymization configuration
type Config struct {
	InputDir       string
	OutputDir      string // defaults to <InputDir>/anonymized
	PolicyFile     string // empty means the bundled table
	PrivateFile    string // empty means the bundled table
	RecordRetained bool
	Recursive      bool
	DryRun         bool
	RetryFailed    bool
}

// Stats holds processing statistics
type Stats struct {
	Success int
	Failed  int
	Skipped int
	Total   int
}

// Run anonymizes every DICOM file found under the input directory.
// Progress is persisted so an interrupted run resumes where it stopped.
func Run(cfg Config) (*Stats, error) {
	policy, err := deident.LoadPolicyFiles(cfg.PolicyFile, cfg.PrivateFile)
	if err != nil {
		return nil, err
	}
	engine := deident.New(policy, deident.Options{RecordRetained: cfg.RecordRetained})

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(cfg.InputDir, "anonymized")
	}

	var tracker *progress.Tracker
	if !cfg.DryRun {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("could not create output directory: %w", err)
		}
		tracker = progress.NewTracker(filepath.Join(outputDir, ".progress.json"))
		if cfg.RetryFailed {
			tracker.ClearFailed()
		}
	}

	files, err := dicomio.FindFiles(cfg.InputDir, cfg.Recursive)
	if err != nil {
		return nil, fmt.Errorf("could not find DICOM files: %w", err)
	}
	// A rescan of the input tree must not pick up earlier output.
	files = excludeSubtree(files, outputDir)

	stats := &Stats{Total: len(files)}
	if len(files) == 0 {
		log.Warn().Str("dir", cfg.InputDir).Msg("no DICOM files found")
		return stats, nil
	}
	log.Info().Int("files", len(files)).Str("dir", cfg.InputDir).Msg("anonymizing")

	if cfg.DryRun {
		for _, filePath := range files {
			outputPath, auditPath := outputPaths(cfg.InputDir, outputDir, filePath)
			log.Info().Str("input", filePath).Str("output", outputPath).Str("audit", auditPath).Msg("would anonymize")
			stats.Skipped++
		}
		return stats, nil
	}

	bar := progressbar.Default(int64(len(files)), "anonymizing")
	for _, filePath := range files {
		bar.Add(1)

		if tracker.IsProcessed(filePath) {
			stats.Skipped++
			continue
		}

		outputPath, auditPath := outputPaths(cfg.InputDir, outputDir, filePath)
		if err := anonymizeFile(engine, filePath, outputPath, auditPath); err != nil {
			stats.Failed++
			tracker.MarkError(filePath, err.Error())
			log.Error().Err(err).Str("file", filePath).Msg("anonymization failed")
			continue
		}

		stats.Success++
		tracker.MarkSuccess(filePath, outputPath, auditPath)
	}

	log.Info().
		Int("success", stats.Success).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Str("output", outputDir).
		Msg("anonymization complete")
	return stats, nil
}

// anonymizeFile runs one file through the engine.
func anonymizeFile(engine *deident.Deidentifier, inputPath, outputPath, auditPath string) error {
	ds, err := dicomio.ReadFile(inputPath)
	if err != nil {
		return err
	}

	auditLog, err := engine.Deidentify(ds)
	if err != nil {
		return err
	}

	if err := dicomio.WriteFile(outputPath, ds); err != nil {
		return err
	}
	if err := auditLog.WriteFile(auditPath); err != nil {
		return err
	}

	log.Debug().Str("file", inputPath).Int("modifications", auditLog.Len()).Msg("anonymized")
	return nil
}

// outputPaths maps an input file to its anonymized twin and audit log,
// preserving the directory structure relative to the input root.
func outputPaths(inputDir, outputDir, filePath string) (outputPath, auditPath string) {
	relPath, err := filepath.Rel(inputDir, filePath)
	if err != nil {
		relPath = filepath.Base(filePath)
	}
	outputPath = filepath.Join(outputDir, relPath)
	auditPath = outputPath + ".audit.json"
	return outputPath, auditPath
}

func excludeSubtree(files []string, dir string) []string {
	prefix := dir + string(filepath.Separator)
	kept := files[:0]
	for _, f := range files {
		if strings.HasPrefix(f, prefix) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
