// Package fhir reduces a raw FHIR bundle into the size-bounded clinical
// context a session carries for its whole lifetime. The reduction is a
// deterministic projection: bookkeeping metadata, provenance and narrative
// duplicates are dropped, clinically meaningful fields (codes, display text,
// dates, status, dosage, values and units) are kept, and whole records are
// truncated lowest-priority category first when the result is still over the
// configured ceiling.
package fhir

// Coding is a single simplified code entry. Only the primary coding of a
// CodeableConcept survives reduction.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept pairs the primary coding with its free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Quantity is a measured value with its unit.
type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

// Period is a start/end date range.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Reference is a resource pointer reduced to its target and display text.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Dosage keeps the free-text dosage instruction; structured timing and route
// carry no extra meaning for a patient-facing explanation.
type Dosage struct {
	Text string `json:"text,omitempty"`
}

// Component is one component of a multi-part observation (e.g. blood
// pressure systolic/diastolic).
type Component struct {
	Code          *CodeableConcept `json:"code,omitempty"`
	ValueQuantity *Quantity        `json:"valueQuantity,omitempty"`
	ValueString   string           `json:"valueString,omitempty"`
}

// Record is a minimized clinical resource. Field presence depends on the
// resource type; absent fields are omitted from serialization so the
// reduced context stays compact.
type Record struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id,omitempty"`
	Status             string           `json:"status,omitempty"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty"`

	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueString          string           `json:"valueString,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`

	EffectiveDateTime string  `json:"effectiveDateTime,omitempty"`
	OnsetDateTime     string  `json:"onsetDateTime,omitempty"`
	RecordedDate      string  `json:"recordedDate,omitempty"`
	Date              string  `json:"date,omitempty"`
	Period            *Period `json:"period,omitempty"`

	Subject   *Reference `json:"subject,omitempty"`
	Encounter *Reference `json:"encounter,omitempty"`

	// MedicationStatement / MedicationRequest
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Dosage                    []Dosage         `json:"dosage,omitempty"`

	// Condition
	Severity *CodeableConcept `json:"severity,omitempty"`
	BodySite *CodeableConcept `json:"bodySite,omitempty"`

	// Observation
	Interpretation *CodeableConcept `json:"interpretation,omitempty"`
	Component      []Component      `json:"component,omitempty"`

	// Encounter
	Class *Coding `json:"class,omitempty"`
}

// Patient carries the demographics retained outside the truncation order.
// They are small and feed tool-argument derivation (ZIP code), so they are
// never dropped.
type Patient struct {
	Name       string `json:"name,omitempty"`
	BirthDate  string `json:"birthDate,omitempty"`
	Gender     string `json:"gender,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// ReducedContext is the session-scoped projection of a clinical bundle,
// grouped by category. TruncationNote is set whenever records were dropped
// or a hard cut applied, so the model never sees a silently incomplete
// context.
type ReducedContext struct {
	Patient        *Patient `json:"patient,omitempty"`
	Conditions     []Record `json:"conditions,omitempty"`
	Medications    []Record `json:"medications,omitempty"`
	Observations   []Record `json:"observations,omitempty"`
	Encounters     []Record `json:"encounters,omitempty"`
	TruncationNote string   `json:"truncationNote,omitempty"`

	// promptJSON is the serialized form handed to the model, computed once
	// by Reduce. It is always within the configured ceiling.
	promptJSON string
}

// PromptJSON returns the serialized context for inclusion in the model
// request.
func (rc *ReducedContext) PromptJSON() string { return rc.promptJSON }

// Size returns the serialized size in bytes.
func (rc *ReducedContext) Size() int { return len(rc.promptJSON) }
