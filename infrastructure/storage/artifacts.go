package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"crm_automation/domain/interfaces"

	"github.com/google/uuid"
)

// Artifacts lays out the output of one run as <results>/<runID>/{screenshots,videos,traces}
type Artifacts struct {
	RunID string
	Root  string
}

// NewArtifacts - creates the directory tree for a new run under resultsDir
func NewArtifacts(resultsDir string) (*Artifacts, error) {
	if resultsDir == "" {
		resultsDir = "results"
	}

	runID := uuid.NewString()
	a := &Artifacts{
		RunID: runID,
		Root:  filepath.Join(resultsDir, runID),
	}

	for _, dir := range []string{a.ScreenshotDir(), a.VideoDir(), a.TraceDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	return a, nil
}

func (a *Artifacts) ScreenshotDir() string { return filepath.Join(a.Root, "screenshots") }
func (a *Artifacts) VideoDir() string      { return filepath.Join(a.Root, "videos") }
func (a *Artifacts) TraceDir() string      { return filepath.Join(a.Root, "traces") }

// Screenshot - returns a timestamped png path for a scenario
func (a *Artifacts) Screenshot(scenario string) string {
	name := fmt.Sprintf("%s_%s.png", slug(scenario), time.Now().Format("20060102_150405"))
	return filepath.Join(a.ScreenshotDir(), name)
}

// Session - returns the per-scenario video directory and trace archive path
func (a *Artifacts) Session(scenario string) interfaces.SessionArtifacts {
	s := slug(scenario)
	return interfaces.SessionArtifacts{
		VideoDir:  filepath.Join(a.VideoDir(), s),
		TracePath: filepath.Join(a.TraceDir(), s+".zip"),
	}
}

// SaveReport - writes the run report as report.json in the run directory
func (a *Artifacts) SaveReport(report interface{}) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.Root, "report.json"), data, 0644)
}

// LoadReport - reads report.json back into report
func (a *Artifacts) LoadReport(report interface{}) error {
	data, err := os.ReadFile(filepath.Join(a.Root, "report.json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, report)
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// slug - turns a scenario name into a file-system friendly name
func slug(name string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		return "scenario"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
