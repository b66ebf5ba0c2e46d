// File: internal/workflow/catalog.go
package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Workflow is the ordered action list of one subtask.
type Workflow struct {
	SubtaskID string
	// ResumeStep is where repeat occurrences of the subtask start.
	ResumeStep int
	Actions    []Action
}

// Catalog maps subtask ids to their workflows.
type Catalog struct {
	workflows map[string]*Workflow
}

// NewCatalog builds a catalog from already constructed workflows.
func NewCatalog(workflows ...*Workflow) *Catalog {
	c := &Catalog{workflows: make(map[string]*Workflow, len(workflows))}
	for _, w := range workflows {
		c.workflows[w.SubtaskID] = w
	}
	return c
}

// Lookup returns the workflow for a subtask id.
func (c *Catalog) Lookup(subtaskID string) (*Workflow, bool) {
	w, ok := c.workflows[subtaskID]
	return w, ok
}

// IDs returns the configured subtask ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.workflows))
	for id := range c.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of configured subtasks.
func (c *Catalog) Len() int { return len(c.workflows) }

// LoadFile reads an action configuration file.
func LoadFile(path string, defaultResumeStep int) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action configuration '%s': %w", path, err)
	}
	return Decode(bytes.NewReader(raw), defaultResumeStep)
}

// Decode parses an action configuration document. Actions are ordered by
// step number; duplicate step numbers within a subtask are rejected.
// Subtasks without a resume_step use defaultResumeStep.
func Decode(r io.Reader, defaultResumeStep int) (*Catalog, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse action configuration: %w", err)
	}

	c := &Catalog{workflows: make(map[string]*Workflow, len(doc.Tasks))}
	for id, entry := range doc.Tasks {
		w := &Workflow{SubtaskID: id, ResumeStep: entry.Task.ResumeStep}
		if w.ResumeStep <= 0 {
			w.ResumeStep = defaultResumeStep
		}
		for i := range entry.Task.Actions {
			a, err := entry.Task.Actions[i].toAction()
			if err != nil {
				return nil, fmt.Errorf("subtask '%s': %w", id, err)
			}
			w.Actions = append(w.Actions, a)
		}
		sort.SliceStable(w.Actions, func(i, j int) bool { return w.Actions[i].Step() < w.Actions[j].Step() })
		for i := 1; i < len(w.Actions); i++ {
			if w.Actions[i].Step() == w.Actions[i-1].Step() {
				return nil, fmt.Errorf("subtask '%s': duplicate step_no %d", id, w.Actions[i].Step())
			}
		}
		c.workflows[id] = w
	}
	return c, nil
}
