package models

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultMaxTurns bounds a call when the test case does not set max_turns.
const DefaultMaxTurns = 4

// TestCaseConfig controls how a single simulated call is driven.
type TestCaseConfig struct {
	PersonaName         string  `yaml:"persona_name" json:"persona_name"`
	BehaviorName        string  `yaml:"behavior_name" json:"behavior_name"`
	Question            string  `yaml:"question" json:"question"`
	SpecialInstructions *string `yaml:"special_instructions,omitempty" json:"special_instructions,omitempty"`
	MaxTurns            int     `yaml:"max_turns,omitempty" json:"max_turns"`
	FAQQuestion         *string `yaml:"faq_question,omitempty" json:"faq_question,omitempty"`
	ExpectedAnswer      *string `yaml:"expected_answer,omitempty" json:"expected_answer,omitempty"`
}

// TestCase is one named scenario to run against the agent.
type TestCase struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Config      TestCaseConfig `yaml:"config" json:"config"`
}

// TestSuite is a complete set of test cases loaded from a YAML file.
type TestSuite struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	TestCases   []TestCase `yaml:"test_cases" json:"test_cases"`
}

// LoadSuite loads and validates a test suite from a YAML file.
func LoadSuite(path string) (*TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", filepath.Base(path), err)
	}

	if err := suite.Validate(); err != nil {
		return nil, err
	}

	return &suite, nil
}

// Validate checks the suite and applies defaults to its test cases.
func (s *TestSuite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite name is required")
	}
	if len(s.TestCases) == 0 {
		return fmt.Errorf("suite %q has no test cases", s.Name)
	}
	seen := make(map[string]bool, len(s.TestCases))
	for i := range s.TestCases {
		tc := &s.TestCases[i]
		if tc.Name == "" {
			return fmt.Errorf("test case %d has no name", i)
		}
		if seen[tc.Name] {
			return fmt.Errorf("duplicate test case name %q", tc.Name)
		}
		seen[tc.Name] = true
		if tc.Config.PersonaName == "" {
			return fmt.Errorf("test case %q: persona_name is required", tc.Name)
		}
		if tc.Config.BehaviorName == "" {
			return fmt.Errorf("test case %q: behavior_name is required", tc.Name)
		}
		if tc.Config.Question == "" {
			return fmt.Errorf("test case %q: question is required", tc.Name)
		}
		if tc.Config.MaxTurns <= 0 {
			tc.Config.MaxTurns = DefaultMaxTurns
		}
		if (tc.Config.FAQQuestion == nil) != (tc.Config.ExpectedAnswer == nil) {
			return fmt.Errorf("test case %q: faq_question and expected_answer must be set together", tc.Name)
		}
	}
	return nil
}

// FindTestCase returns the named test case, or nil if absent.
func (s *TestSuite) FindTestCase(name string) *TestCase {
	for i := range s.TestCases {
		if s.TestCases[i].Name == name {
			return &s.TestCases[i]
		}
	}
	return nil
}
