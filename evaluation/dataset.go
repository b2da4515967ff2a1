package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/martinemde/vanna/user"
)

// Dataset is a named collection of test cases.
//
// Files may wrap the fields in a top-level "dataset" key:
//
//	dataset:
//	  name: SQL Generation Tasks
//	  test_cases:
//	    - id: sql_001
//	      user_id: test_user
//	      message: Show me total sales by region
//	      expected_outcome:
//	        tools_called: [run_sql]
//	        final_answer_contains: [region]
type Dataset struct {
	Name        string
	Description string
	TestCases   []TestCase
}

type testCaseFile struct {
	ID             string           `json:"id" yaml:"id"`
	UserID         string           `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Username       string           `json:"username,omitempty" yaml:"username,omitempty"`
	Email          string           `json:"email,omitempty" yaml:"email,omitempty"`
	Groups         []string         `json:"groups,omitempty" yaml:"groups,omitempty"`
	Message        string           `json:"message" yaml:"message"`
	ConversationID string           `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	Expected       *ExpectedOutcome `json:"expected_outcome,omitempty" yaml:"expected_outcome,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type datasetBody struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	TestCases   []testCaseFile `json:"test_cases" yaml:"test_cases"`
}

// datasetFile accepts both the wrapped and the bare layout.
type datasetFile struct {
	Dataset     *datasetBody   `json:"dataset" yaml:"dataset"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	TestCases   []testCaseFile `json:"test_cases" yaml:"test_cases"`
}

type savedDataset struct {
	Dataset datasetBody `json:"dataset" yaml:"dataset"`
}

// LoadYAML reads a dataset from a YAML file.
func LoadYAML(path string) (*Dataset, error) {
	return load(path, yaml.Unmarshal)
}

// LoadJSON reads a dataset from a JSON file.
func LoadJSON(path string) (*Dataset, error) {
	return load(path, json.Unmarshal)
}

func load(path string, unmarshal func([]byte, any) error) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var f datasetFile
	if err := unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	body := datasetBody{Name: f.Name, Description: f.Description, TestCases: f.TestCases}
	if f.Dataset != nil {
		body = *f.Dataset
	}

	ds := &Dataset{Name: body.Name, Description: body.Description}
	if ds.Name == "" {
		ds.Name = "Unnamed Dataset"
	}
	for i, tc := range body.TestCases {
		if tc.ID == "" || tc.Message == "" {
			return nil, fmt.Errorf("parse dataset %s: test case %d needs id and message", path, i)
		}
		ds.TestCases = append(ds.TestCases, tc.toTestCase())
	}
	return ds, nil
}

func (f testCaseFile) toTestCase() TestCase {
	id := f.UserID
	if id == "" {
		id = "test_user"
	}
	u := &user.User{ID: id, Username: f.Username, Email: f.Email, GroupMemberships: f.Groups}
	if u.Username == "" {
		u.Username = id
	}
	if u.Email == "" {
		u.Email = id + "@example.com"
	}
	metadata := f.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return TestCase{
		ID:             f.ID,
		User:           u,
		Message:        f.Message,
		ConversationID: f.ConversationID,
		Expected:       f.Expected,
		Metadata:       metadata,
	}
}

func fromTestCase(tc TestCase) testCaseFile {
	f := testCaseFile{
		ID:             tc.ID,
		Message:        tc.Message,
		ConversationID: tc.ConversationID,
		Metadata:       tc.Metadata,
	}
	if tc.User != nil {
		f.UserID = tc.User.ID
		f.Username = tc.User.Username
		f.Email = tc.User.Email
		f.Groups = tc.User.GroupMemberships
	}
	if e := tc.Expected; e != nil && !e.empty() {
		f.Expected = e
	}
	if len(f.Metadata) == 0 {
		f.Metadata = nil
	}
	return f
}

func (e *ExpectedOutcome) empty() bool {
	return len(e.ToolsCalled) == 0 && len(e.ToolsNotCalled) == 0 &&
		len(e.FinalAnswerContains) == 0 && len(e.FinalAnswerNotContains) == 0 &&
		e.MinComponents == nil && e.MaxComponents == nil && e.MaxExecutionTimeMs == nil &&
		len(e.Metadata) == 0
}

func (d *Dataset) saved() savedDataset {
	body := datasetBody{Name: d.Name, Description: d.Description, TestCases: make([]testCaseFile, len(d.TestCases))}
	for i, tc := range d.TestCases {
		body.TestCases[i] = fromTestCase(tc)
	}
	return savedDataset{Dataset: body}
}

// SaveYAML writes the dataset as YAML under a "dataset" key.
func (d *Dataset) SaveYAML(path string) error {
	data, err := yaml.Marshal(d.saved())
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// SaveJSON writes the dataset as indented JSON under a "dataset" key.
func (d *Dataset) SaveJSON(path string) error {
	data, err := json.MarshalIndent(d.saved(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FilterByMetadata returns the test cases whose metadata holds every given
// key with an equal value.
func (d *Dataset) FilterByMetadata(match map[string]any) *Dataset {
	out := &Dataset{
		Name:        d.Name + " (filtered)",
		Description: "Filtered from: " + d.Description,
	}
	for _, tc := range d.TestCases {
		keep := true
		for k, v := range match {
			if got, ok := tc.Metadata[k]; !ok || !reflect.DeepEqual(got, v) {
				keep = false
				break
			}
		}
		if keep {
			out.TestCases = append(out.TestCases, tc)
		}
	}
	return out
}

// Len returns the number of test cases.
func (d *Dataset) Len() int { return len(d.TestCases) }
