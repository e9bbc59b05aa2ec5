package driven

// PromptStore provides access to section prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. Templates use text/template syntax.
const (
	// PromptSystem is the system instruction shared by every section.
	PromptSystem = "system"

	// PromptAdmissionReason drafts the admission reason.
	PromptAdmissionReason = "admission_reason"

	// PromptMainDiagnosis drafts the main diagnosis.
	PromptMainDiagnosis = "main_diagnosis"

	// PromptEvolution drafts the evolution narrative for a live discharge.
	PromptEvolution = "evolution"

	// PromptEvolutionDeath drafts the evolution narrative when the patient died.
	PromptEvolutionDeath = "evolution_death"

	// PromptConsultations drafts the dated consultation list.
	PromptConsultations = "consultations"

	// PromptMedication drafts the medication list.
	PromptMedication = "medication"

	// PromptDischargeInstructions drafts discharge instructions.
	PromptDischargeInstructions = "discharge_instructions"

	// PromptRecommendations drafts follow-up recommendations.
	PromptRecommendations = "recommendations"

	// PromptReformulate is appended when a response could not be parsed.
	PromptReformulate = "reformulate"
)

// PromptNames lists every well-known prompt.
func PromptNames() []string {
	return []string{
		PromptSystem,
		PromptAdmissionReason,
		PromptMainDiagnosis,
		PromptEvolution,
		PromptEvolutionDeath,
		PromptConsultations,
		PromptMedication,
		PromptDischargeInstructions,
		PromptRecommendations,
		PromptReformulate,
	}
}
