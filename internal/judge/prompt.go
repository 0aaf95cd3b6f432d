package judge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dialcheck/dialcheck/internal/models"
)

const systemPrompt = "You are an expert evaluator of customer service AI agents."

// Input is everything the judge needs to score one call.
type Input struct {
	TestCase      *models.TestCase
	Persona       *models.Persona
	Behavior      *models.Behavior
	Conversation  []models.ConversationTurn
	KnowledgeBase *models.KnowledgeBase
}

func (in *Input) validate() error {
	if in == nil || in.TestCase == nil {
		return fmt.Errorf("judge input requires a test case")
	}
	if len(in.Conversation) == 0 {
		return fmt.Errorf("judge input requires a non-empty conversation")
	}
	return nil
}

// BuildPrompt renders the evaluation prompt. Ground truth comes from the
// test case's FAQ pair when set, otherwise from the knowledge base.
func BuildPrompt(in *Input) string {
	var b strings.Builder

	b.WriteString("Evaluate the following phone conversation between a simulated customer and an AI call-center agent.\n\n")

	cfg := in.TestCase.Config
	fmt.Fprintf(&b, "Test case: %s\n", in.TestCase.Name)
	fmt.Fprintf(&b, "Customer question: %s\n", cfg.Question)
	if cfg.SpecialInstructions != nil {
		fmt.Fprintf(&b, "Special instructions for the caller: %s\n", *cfg.SpecialInstructions)
	}

	if in.Persona != nil {
		fmt.Fprintf(&b, "\nCaller persona: %s\n", in.Persona.Name)
		for _, trait := range in.Persona.Traits {
			fmt.Fprintf(&b, "- %s\n", trait)
		}
	}
	if in.Behavior != nil {
		fmt.Fprintf(&b, "\nCaller behavior: %s\n", in.Behavior.Name)
		for _, c := range in.Behavior.Characteristics {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	b.WriteString("\n--- Ground truth ---\n")
	if cfg.FAQQuestion != nil && cfg.ExpectedAnswer != nil {
		fmt.Fprintf(&b, "FAQ question: %s\n", *cfg.FAQQuestion)
		fmt.Fprintf(&b, "Expected answer: %s\n", *cfg.ExpectedAnswer)
	} else if in.KnowledgeBase != nil {
		// Stable FAQ order keeps prompts identical across runs, which the
		// evaluation cache depends on.
		questions := make([]string, 0, len(in.KnowledgeBase.FAQs))
		for q := range in.KnowledgeBase.FAQs {
			questions = append(questions, q)
		}
		sort.Strings(questions)
		for _, q := range questions {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", q, in.KnowledgeBase.FAQs[q])
		}
		if in.KnowledgeBase.IVRScript != "" {
			fmt.Fprintf(&b, "\nIVR script:\n%s\n", in.KnowledgeBase.IVRScript)
		}
	} else {
		b.WriteString("No ground truth available; score accuracy on internal consistency and plausibility.\n")
	}

	b.WriteString("\n--- Transcript ---\n")
	for _, turn := range in.Conversation {
		label := "Customer"
		if turn.Speaker == models.SpeakerAgent {
			label = "Agent"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Text)
	}

	b.WriteString(`
Score the agent from 0 to 10 on each dimension:
- accuracy: factual correctness of the agent's answers against the ground truth
- empathy: tone, patience, and appropriateness for this caller
- response_time: how promptly and directly the agent addressed the question

Respond with a JSON object with exactly these keys:
accuracy, accuracy_explanation, empathy, empathy_explanation, response_time, response_time_explanation, overall_feedback.
Scores must be numbers; explanations must be short strings.
`)

	return b.String()
}
