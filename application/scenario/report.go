package scenario

import (
	"time"

	"crm_automation/domain/entities"
)

// ScenarioReport records how one scenario ended and which steps needed a fallback
type ScenarioReport struct {
	Name       string             `json:"name"`
	Passed     bool               `json:"passed"`
	Error      string             `json:"error,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Fallbacks  int                `json:"fallbacks"`
	Screenshot string             `json:"screenshot,omitempty"`
	Steps      []string           `json:"step_screenshots,omitempty"`
	Outcomes   []entities.Outcome `json:"outcomes"`
}

// RunReport is written to report.json at the end of a run
type RunReport struct {
	RunID     string           `json:"run_id,omitempty"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Fallbacks int              `json:"fallbacks"`
	Scenarios []ScenarioReport `json:"scenarios"`
}

func newScenarioReport(st *scenarioState, err error) ScenarioReport {
	r := ScenarioReport{
		Name:     st.name,
		Passed:   err == nil,
		Duration: time.Since(st.started),
		Steps:    st.screenshots,
		Outcomes: st.outcomes,
	}
	if err != nil {
		r.Error = err.Error()
	}
	for _, o := range st.outcomes {
		if o.FallbackUsed {
			r.Fallbacks++
		}
	}
	return r
}

// Report - summarises every scenario finished so far
func (s *Suite) Report() RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := RunReport{Scenarios: append([]ScenarioReport(nil), s.reports...)}
	if s.artifacts != nil {
		report.RunID = s.artifacts.RunID
	}
	for _, r := range s.reports {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Fallbacks += r.Fallbacks
	}
	return report
}
