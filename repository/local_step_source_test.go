package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptchat/models"
)

const sampleCatalog = `
"0":
  text: How often do you have a drink containing alcohol?
  options:
    - text: Never
      end: true
    - text: Monthly or less
      next: "q2"
      score: 1
"q2":
  text: How many drinks on a typical day?
  options:
    - text: 1 or 2
      next: result
    - text: 3 or more
      next: result
      score: 3
`

func TestParseStepCatalog_YAML(t *testing.T) {
	source, err := ParseStepCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	assert.Equal(t, 2, source.Len())
	assert.Equal(t, []models.StepID{"0", "q2"}, source.Keys())
	assert.Empty(t, source.Validate())

	step, err := source.FetchStep(context.Background(), "q2")
	require.NoError(t, err)
	assert.Equal(t, models.StepID("q2"), step.Key)
	assert.Equal(t, 3, step.Options[1].Score)
}

func TestParseStepCatalog_JSON(t *testing.T) {
	source, err := ParseStepCatalog([]byte(`{"0":{"text":"Q","options":[{"text":"A","next":"result","score":2}]}}`))
	require.NoError(t, err)

	step, err := source.FetchStep(context.Background(), models.FirstStepID)
	require.NoError(t, err)
	kind, next := step.Options[0].Target()
	assert.Equal(t, models.TargetResult, kind)
	assert.Equal(t, models.ResultStepID, next)
}

func TestParseStepCatalog_Errors(t *testing.T) {
	_, err := ParseStepCatalog([]byte(""))
	assert.ErrorContains(t, err, "empty")

	_, err = ParseStepCatalog([]byte("- just\n- a list\n"))
	assert.ErrorContains(t, err, "parse step catalog")
}

func TestLoadStepCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	source, err := LoadStepCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, source.Len())

	_, err = LoadStepCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read step catalog")
}

func TestLocalStepSource_FetchReturnsCopy(t *testing.T) {
	source, err := ParseStepCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	first, err := source.FetchStep(context.Background(), "0")
	require.NoError(t, err)
	first.Options[0].Text = "mutated"

	second, err := source.FetchStep(context.Background(), "0")
	require.NoError(t, err)
	assert.Equal(t, "Never", second.Options[0].Text)

	_, err = source.FetchStep(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestLocalStepSource_Validate(t *testing.T) {
	source := NewLocalStepSource(map[models.StepID]models.AssessmentStep{
		"start": {Text: "Not the first step", Options: []models.Option{{Text: "Go", Next: "ghost"}}},
		"orphan": {Text: "", Options: []models.Option{
			{Text: "Nowhere"},
			{Text: "Negative", Next: "result", Score: -2},
		}},
		"empty": {Text: "No options"},
	})

	problems := source.Validate()
	messages := make([]string, 0, len(problems))
	for _, p := range problems {
		messages = append(messages, p.Error())
	}

	assert.Contains(t, messages, `catalog has no first step "0"`)
	assert.Contains(t, messages, `step "start" option 0 ("Go") points to unknown step "ghost"`)
	assert.Contains(t, messages, `step "orphan" has no text`)
	assert.Contains(t, messages, `step "orphan" option 0 ("Nowhere") has neither end nor next`)
	assert.Contains(t, messages, `step "orphan" option 1 ("Negative") has negative score -2`)
	assert.Contains(t, messages, `step "empty" has no options`)
	assert.Contains(t, messages, `step "orphan" is unreachable from "0"`)
}
