package stage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/webextract/relgate/internal/command"
	"github.com/webextract/relgate/internal/config"
	"github.com/webextract/relgate/internal/model"
)

// BuildStage runs the package build command and collects the artifacts it
// produces. Every matched artifact is recorded with its size and SHA-256
// digest so the release gate can verify what would be published. A build
// whose command succeeds but produces no artifacts fails the stage.
type BuildStage struct {
	// name is the stage name.
	name string

	// cfg is the stage definition.
	cfg config.StageConfig

	// runner executes the build command.
	runner *command.Runner

	// workDir anchors the artifact glob patterns.
	workDir string

	// timeout bounds the stage.
	timeout time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// NewBuildStage creates a build stage from its configuration.
func NewBuildStage(name string, cfg config.StageConfig, runner *command.Runner, workDir string, timeout time.Duration, logger *slog.Logger) *BuildStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildStage{
		name:    name,
		cfg:     cfg,
		runner:  runner,
		workDir: workDir,
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the stage name.
func (s *BuildStage) Name() string { return s.name }

// Needs returns the stage dependencies.
func (s *BuildStage) Needs() []string { return s.cfg.Needs }

// Required reports that the build stage gates the run.
func (s *BuildStage) Required() bool { return true }

// Do runs the build command and digests the produced artifacts.
func (s *BuildStage) Do(ctx context.Context, _ *model.RunReport) (*model.StageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := &model.StageResult{
		Name:      s.name,
		Needs:     s.cfg.Needs,
		Required:  true,
		StartedAt: time.Now(),
	}

	res, err := s.runner.Run(ctx, s.cfg.Run)
	if err != nil {
		result.Conclusion = model.ConclusionFailure
		result.Duration = time.Since(result.StartedAt)
		return result, err
	}

	result.Output = res.Output
	if !res.Success() {
		result.Conclusion = model.ConclusionFailure
		result.Duration = time.Since(result.StartedAt)
		return result, nil
	}

	artifacts, err := s.collectArtifacts()
	if err != nil {
		result.Conclusion = model.ConclusionFailure
		result.Duration = time.Since(result.StartedAt)
		return result, err
	}
	result.Artifacts = artifacts
	result.Duration = time.Since(result.StartedAt)

	if len(s.cfg.Artifacts) > 0 && len(artifacts) == 0 {
		s.logger.Error("build produced no artifacts",
			"stage", s.name,
			"patterns", s.cfg.Artifacts,
		)
		result.Conclusion = model.ConclusionFailure
		result.Output += "\n[no artifacts matched the configured patterns]"
		return result, nil
	}

	result.Conclusion = model.ConclusionSuccess
	return result, nil
}

// collectArtifacts globs the configured patterns and digests every match.
func (s *BuildStage) collectArtifacts() ([]model.Artifact, error) {
	var artifacts []model.Artifact
	seen := make(map[string]bool)

	for _, pattern := range s.cfg.Artifacts {
		matches, err := filepath.Glob(filepath.Join(s.workDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid artifact pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true

			artifact, err := digestArtifact(s.workDir, match)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, artifact)

			s.logger.Debug("collected artifact",
				"path", artifact.Path,
				"size", artifact.Size,
			)
		}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})

	return artifacts, nil
}

// digestArtifact records the artifact's size and SHA-256 content digest,
// with the path stored relative to the working directory.
func digestArtifact(workDir, path string) (model.Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	info, err := f.Stat()
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to digest artifact: %w", err)
	}

	rel := path
	if workDir != "" {
		if r, err := filepath.Rel(workDir, path); err == nil {
			rel = r
		}
	}

	return model.Artifact{
		Path:   rel,
		Size:   info.Size(),
		SHA256: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
