package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona describes the simulated caller's identity.
type Persona struct {
	Name   string   `yaml:"name" json:"name"`
	Traits []string `yaml:"traits" json:"traits"`
}

// Behavior describes how the simulated caller acts on the call.
type Behavior struct {
	Name            string   `yaml:"name" json:"name"`
	Characteristics []string `yaml:"characteristics" json:"characteristics"`
}

// KnowledgeBase holds the ground truth the judge evaluates answers against.
type KnowledgeBase struct {
	FAQs      map[string]string `yaml:"faqs" json:"faqs"`
	IVRScript string            `yaml:"ivr_script,omitempty" json:"ivr_script,omitempty"`
}

// Catalog bundles the personas and behaviors available to test cases.
type Catalog struct {
	Personas  []Persona  `yaml:"personas" json:"personas"`
	Behaviors []Behavior `yaml:"behaviors" json:"behaviors"`
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// LoadKnowledgeBase reads the knowledge base from a YAML file.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kb KnowledgeBase
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	return &kb, nil
}

// FindPersona looks up a persona by name, case-insensitively.
func (c *Catalog) FindPersona(name string) *Persona {
	for i := range c.Personas {
		if strings.EqualFold(c.Personas[i].Name, name) {
			return &c.Personas[i]
		}
	}
	return nil
}

// FindBehavior looks up a behavior by name, case-insensitively.
func (c *Catalog) FindBehavior(name string) *Behavior {
	for i := range c.Behaviors {
		if strings.EqualFold(c.Behaviors[i].Name, name) {
			return &c.Behaviors[i]
		}
	}
	return nil
}
