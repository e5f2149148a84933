package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"
)

// dataRefRe matches ${env.url}, ${user.admin.password}, ${address.US.city}, ${default.lead.status}
var dataRefRe = regexp.MustCompile(`\$\{(env|user|address|default)\.([^}]+)\}`)

// Expander substitutes test-data references in workflow values
type Expander struct {
	data        interfaces.TestDataStore
	environment string
}

// NewExpander - creates an expander bound to one environment
func NewExpander(data interfaces.TestDataStore, environment string) *Expander {
	return &Expander{data: data, environment: environment}
}

// Action - returns a copy of action with URL, Value and Params expanded
func (e *Expander) Action(action entities.Action) (entities.Action, error) {
	var err error
	if action.URL, err = e.String(action.URL); err != nil {
		return action, err
	}
	if action.Value, err = e.String(action.Value); err != nil {
		return action, err
	}
	if len(action.Params) > 0 {
		params := action.Params.Clone()
		for k, v := range params {
			if params[k], err = e.String(v); err != nil {
				return action, err
			}
		}
		action.Params = params
	}
	return action, nil
}

// String - replaces every data reference in s; unknown references are errors
func (e *Expander) String(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var firstErr error
	out := dataRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		m := dataRefRe.FindStringSubmatch(ref)
		value, err := e.lookup(m[1], strings.Split(m[2], "."))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cannot expand %s: %w", ref, err)
		}
		return value
	})
	if firstErr != nil {
		return s, firstErr
	}
	return out, nil
}

func (e *Expander) lookup(kind string, parts []string) (string, error) {
	if e.data == nil {
		return "", fmt.Errorf("no test data loaded")
	}

	switch kind {
	case "env":
		if len(parts) != 1 {
			return "", fmt.Errorf("expected ${env.url} or ${env.name}")
		}
		env, err := e.data.Environment(e.environment)
		if err != nil {
			return "", err
		}
		switch parts[0] {
		case "url":
			return env.URL, nil
		case "name":
			return env.Name, nil
		}
		return "", fmt.Errorf("unknown environment field %q", parts[0])

	case "user":
		if len(parts) != 2 {
			return "", fmt.Errorf("expected ${user.<role>.<field>}")
		}
		creds, err := e.data.User(e.environment, parts[0])
		if err != nil {
			return "", err
		}
		switch parts[1] {
		case "username":
			return creds.Username, nil
		case "password":
			return creds.Password, nil
		}
		return "", fmt.Errorf("unknown user field %q", parts[1])

	case "address":
		if len(parts) != 2 {
			return "", fmt.Errorf("expected ${address.<country>.<field>}")
		}
		addr, err := e.data.Address(parts[0])
		if err != nil {
			return "", err
		}
		value, ok := addr.Field(parts[1])
		if !ok {
			return "", fmt.Errorf("unknown address field %q", parts[1])
		}
		return value, nil

	default:
		if len(parts) != 2 {
			return "", fmt.Errorf("expected ${default.<form>.<field>}")
		}
		return e.data.Default(parts[0], parts[1])
	}
}
