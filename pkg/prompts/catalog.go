package prompts

import "strings"

// Entry is one named item of a curated list.
type Entry struct {
	Name        string
	Description string
}

var docTypes = map[string]struct {
	name     string
	guidance string
}{
	"prd": {
		name: "Product Requirements Document",
		guidance: "Judge it as a product document: problem statement, target users, measurable success " +
			"criteria, scope and explicit non-goals, user stories with acceptance criteria, and open risks.",
	},
	"tech": {
		name: "Technical Specification",
		guidance: "Judge it as an engineering document: architecture and component boundaries, data model, " +
			"interfaces and error handling, concurrency and failure modes, security, operability, and testability.",
	},
}

var focusAreas = []Entry{
	{Name: "security", Description: "Threat model, authentication and authorization, secrets handling, input validation, data exposure."},
	{Name: "scalability", Description: "Growth limits, horizontal scaling, partitioning, hot spots, capacity planning."},
	{Name: "performance", Description: "Latency budgets, throughput, caching, expensive queries, resource usage."},
	{Name: "ux", Description: "User journeys, error states, empty states, accessibility, consistency of interaction."},
	{Name: "reliability", Description: "Failure modes, retries and timeouts, degradation, recovery, monitoring and alerting."},
	{Name: "cost", Description: "Infrastructure and vendor spend, cost drivers, budgets, cheaper alternatives."},
}

var personas = []Entry{
	{Name: "security-engineer", Description: "a security engineer who assumes every input is hostile and every secret will leak"},
	{Name: "oncall-engineer", Description: "an on-call engineer who will be paged at 3am when this breaks and needs to debug it fast"},
	{Name: "junior-developer", Description: "a junior developer who must implement this without asking questions, so every ambiguity is a blocker"},
	{Name: "qa-engineer", Description: "a QA engineer looking for untestable requirements, missing edge cases and unclear acceptance criteria"},
	{Name: "site-reliability", Description: "a site reliability engineer focused on observability, capacity and safe rollouts"},
	{Name: "product-manager", Description: "a product manager checking that every requirement traces back to a user problem and a metric"},
	{Name: "data-engineer", Description: "a data engineer concerned with schemas, migrations, data quality and retention"},
	{Name: "mobile-developer", Description: "a mobile developer worried about flaky networks, offline use and API payload sizes"},
	{Name: "accessibility-specialist", Description: "an accessibility specialist checking the design against WCAG and assistive technology"},
	{Name: "legal-compliance", Description: "a compliance reviewer checking privacy, consent, data residency and audit obligations"},
}

// DocTypeName returns the display name of a document type tag.
func DocTypeName(docType string) string {
	if dt, ok := docTypes[strings.ToLower(strings.TrimSpace(docType))]; ok {
		return dt.name
	}
	return docTypes["tech"].name
}

// ValidDocType reports whether docType is one of prd or tech.
func ValidDocType(docType string) bool {
	_, ok := docTypes[strings.ToLower(strings.TrimSpace(docType))]
	return ok
}

func docTypeGuidance(docType string) string {
	if dt, ok := docTypes[strings.ToLower(strings.TrimSpace(docType))]; ok {
		return dt.guidance
	}
	return docTypes["tech"].guidance
}

// FocusAreas lists the curated focus areas.
func FocusAreas() []Entry {
	return append([]Entry(nil), focusAreas...)
}

// Personas lists the curated personas.
func Personas() []Entry {
	return append([]Entry(nil), personas...)
}

// FocusDescription expands a curated focus name; unknown names are used verbatim.
func FocusDescription(focus string) string {
	return lookup(focusAreas, focus)
}

// PersonaDescription expands a curated persona name; free-form personas are used verbatim.
func PersonaDescription(persona string) string {
	return lookup(personas, persona)
}

func lookup(entries []Entry, name string) string {
	trimmed := strings.TrimSpace(name)
	key := strings.ToLower(strings.ReplaceAll(trimmed, " ", "-"))
	for _, entry := range entries {
		if entry.Name == key {
			return entry.Description
		}
	}
	return trimmed
}
