package repository

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"aptchat/logging"
	"aptchat/models"
)

// catalogStep is the on-disk shape of one step. JSON catalogs decode too, since
// YAML is a superset of the JSON used by the backend's step file.
type catalogStep struct {
	Text    string          `yaml:"text"`
	Options []models.Option `yaml:"options"`
}

// LocalStepSource serves steps from an in-memory catalog.
type LocalStepSource struct {
	steps map[models.StepID]models.AssessmentStep
}

// NewLocalStepSource builds a source from already-parsed steps.
func NewLocalStepSource(steps map[models.StepID]models.AssessmentStep) *LocalStepSource {
	catalog := make(map[models.StepID]models.AssessmentStep, len(steps))
	for key, step := range steps {
		step.Key = key
		catalog[key] = step
	}
	return &LocalStepSource{steps: catalog}
}

// LoadStepCatalog reads a YAML or JSON file mapping step keys to step definitions.
func LoadStepCatalog(path string) (*LocalStepSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read step catalog %s: %w", path, err)
	}
	return ParseStepCatalog(data)
}

// ParseStepCatalog decodes catalog bytes.
func ParseStepCatalog(data []byte) (*LocalStepSource, error) {
	var raw map[string]catalogStep
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse step catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("step catalog is empty")
	}

	steps := make(map[models.StepID]models.AssessmentStep, len(raw))
	for key, step := range raw {
		steps[models.StepID(key)] = models.AssessmentStep{
			Key:     models.StepID(key),
			Text:    step.Text,
			Options: step.Options,
		}
	}
	logging.L().Infof("[StepCatalog] Loaded %d assessment steps.", len(steps))
	return NewLocalStepSource(steps), nil
}

func (s *LocalStepSource) FetchStep(_ context.Context, key models.StepID) (*models.AssessmentStep, error) {
	step, ok := s.steps[key]
	if !ok {
		return nil, fmt.Errorf("step '%s': %w", key, ErrStepNotFound)
	}
	return step.Clone(), nil
}

// Keys returns the catalog's step keys in sorted order.
func (s *LocalStepSource) Keys() []models.StepID {
	keys := make([]models.StepID, 0, len(s.steps))
	for key := range s.steps {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of steps in the catalog.
func (s *LocalStepSource) Len() int {
	return len(s.steps)
}

// Validate walks the step graph and reports every problem found: a missing first step,
// options without a resolvable target, dangling next keys and steps unreachable from "0".
func (s *LocalStepSource) Validate() []error {
	var problems []error

	if _, ok := s.steps[models.FirstStepID]; !ok {
		problems = append(problems, fmt.Errorf("catalog has no first step %q", models.FirstStepID))
	}

	for _, key := range s.Keys() {
		step := s.steps[key]
		if step.Text == "" {
			problems = append(problems, fmt.Errorf("step %q has no text", key))
		}
		if len(step.Options) == 0 {
			problems = append(problems, fmt.Errorf("step %q has no options", key))
		}
		for i, opt := range step.Options {
			kind, next := opt.Target()
			switch kind {
			case models.TargetInvalid:
				problems = append(problems, fmt.Errorf("step %q option %d (%q) has neither end nor next", key, i, opt.Text))
			case models.TargetRemote:
				if _, ok := s.steps[next]; !ok {
					problems = append(problems, fmt.Errorf("step %q option %d (%q) points to unknown step %q", key, i, opt.Text, next))
				}
			}
			if opt.Score < 0 {
				problems = append(problems, fmt.Errorf("step %q option %d (%q) has negative score %d", key, i, opt.Text, opt.Score))
			}
		}
	}

	reachable := s.reachableFrom(models.FirstStepID)
	for _, key := range s.Keys() {
		if !reachable[key] {
			problems = append(problems, fmt.Errorf("step %q is unreachable from %q", key, models.FirstStepID))
		}
	}
	return problems
}

func (s *LocalStepSource) reachableFrom(start models.StepID) map[models.StepID]bool {
	seen := map[models.StepID]bool{}
	if _, ok := s.steps[start]; !ok {
		return seen
	}
	queue := []models.StepID{start}
	seen[start] = true
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		for _, opt := range s.steps[key].Options {
			kind, next := opt.Target()
			if kind != models.TargetRemote || seen[next] {
				continue
			}
			if _, ok := s.steps[next]; !ok {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}
