package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"crm_automation/domain/entities"

	"gopkg.in/yaml.v3"
)

// LoadWorkflows - reads one or more workflows from a YAML file; documents are separated by ---
func LoadWorkflows(path string) ([]entities.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &entities.LoadError{Source: path, Err: err}
	}
	return ParseWorkflows(path, data)
}

// ParseWorkflows - decodes workflows held in memory
func ParseWorkflows(name string, data []byte) ([]entities.Workflow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var workflows []entities.Workflow
	for {
		var wf entities.Workflow
		err := dec.Decode(&wf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &entities.LoadError{Source: name, Err: err}
		}
		if wf.Name == "" {
			return nil, &entities.LoadError{Source: name, Err: fmt.Errorf("workflow %d has no name", len(workflows)+1)}
		}
		if len(wf.Actions) == 0 {
			return nil, &entities.LoadError{Source: name, Err: fmt.Errorf("workflow %q has no actions", wf.Name)}
		}
		workflows = append(workflows, wf)
	}

	if len(workflows) == 0 {
		return nil, &entities.LoadError{Source: name, Err: errors.New("no workflows defined")}
	}
	return workflows, nil
}
