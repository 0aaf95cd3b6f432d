// Package wizard builds test cases interactively for the `dialcheck new`
// command.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dialcheck/dialcheck/internal/models"
)

// RunTestCaseWizard runs an interactive huh form to collect a test case.
// Personas and behaviors are offered from the given catalog. If initialName
// is non-empty, it pre-populates the name field.
func RunTestCaseWizard(in io.Reader, out io.Writer, catalog *models.Catalog, initialName string) (*models.TestCase, error) {
	if len(catalog.Personas) == 0 || len(catalog.Behaviors) == 0 {
		return nil, fmt.Errorf("catalog has no personas or behaviors to choose from")
	}

	var (
		name         = initialName
		personaName  string
		behaviorName string
		question     string
		maxTurnsRaw  = strconv.Itoa(models.DefaultMaxTurns)
		instructions string
		faqQuestion  string
		faqAnswer    string
	)

	personaOpts := make([]huh.Option[string], 0, len(catalog.Personas))
	for _, p := range catalog.Personas {
		personaOpts = append(personaOpts, huh.NewOption(p.Name, p.Name))
	}
	behaviorOpts := make([]huh.Option[string], 0, len(catalog.Behaviors))
	for _, b := range catalog.Behaviors {
		behaviorOpts = append(behaviorOpts, huh.NewOption(b.Name, b.Name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Test case name").
				Description("A short name for this scenario").
				Placeholder("double-charge dispute").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Persona").
				Description("Who the simulated caller is").
				Options(personaOpts...).
				Value(&personaName),
			huh.NewSelect[string]().
				Title("Behavior").
				Description("How the caller acts on the call").
				Options(behaviorOpts...).
				Value(&behaviorName),
			huh.NewInput().
				Title("Question").
				Description("What the caller asks the agent").
				Placeholder("Why was I charged twice this month?").
				Value(&question).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("question is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Max turns").
				Description("How many caller turns before the call is cut off").
				Value(&maxTurnsRaw).
				Validate(validateMaxTurns),
			huh.NewInput().
				Title("Special instructions (optional)").
				Placeholder("Interrupt the agent once").
				Value(&instructions),
			huh.NewInput().
				Title("FAQ question (optional)").
				Description("Knowledge base entry to grade the answer against").
				Value(&faqQuestion),
			huh.NewInput().
				Title("Expected answer (optional)").
				Description("Required when an FAQ question is set").
				Value(&faqAnswer),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	tc := &models.TestCase{
		Name: strings.TrimSpace(name),
		Config: models.TestCaseConfig{
			PersonaName:  personaName,
			BehaviorName: behaviorName,
			Question:     strings.TrimSpace(question),
		},
	}
	tc.Config.MaxTurns, _ = strconv.Atoi(strings.TrimSpace(maxTurnsRaw))
	if s := strings.TrimSpace(instructions); s != "" {
		tc.Config.SpecialInstructions = &s
	}
	fq := strings.TrimSpace(faqQuestion)
	fa := strings.TrimSpace(faqAnswer)
	if fq != "" && fa == "" {
		return nil, fmt.Errorf("expected answer is required when an FAQ question is set")
	}
	if fq != "" {
		tc.Config.FAQQuestion = &fq
		tc.Config.ExpectedAnswer = &fa
	}
	return tc, nil
}

// GenerateSuiteYAML renders a single-case suite for the given test case,
// ready to append to or save as a suite file.
func GenerateSuiteYAML(suiteName string, tc *models.TestCase) (string, error) {
	suite := models.TestSuite{
		Name:      suiteName,
		TestCases: []models.TestCase{*tc},
	}
	data, err := yaml.Marshal(&suite)
	if err != nil {
		return "", fmt.Errorf("failed to render suite: %w", err)
	}
	return string(data), nil
}

func validateMaxTurns(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 1 || n > 20 {
		return fmt.Errorf("must be between 1 and 20")
	}
	return nil
}
