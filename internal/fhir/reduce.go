package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category names used in the truncation priority order.
const (
	CategoryConditions   = "conditions"
	CategoryMedications  = "medications"
	CategoryObservations = "observations"
	CategoryEncounters   = "encounters"
)

// DefaultPriority lists categories from lowest to highest retention
// priority: conditions are preserved longest.
var DefaultPriority = []string{CategoryEncounters, CategoryObservations, CategoryMedications, CategoryConditions}

// Options bound the reduction.
type Options struct {
	// CeilingBytes is the maximum serialized size of the reduced context.
	CeilingBytes int
	// Priority is the truncation order, lowest priority first. Nil means
	// DefaultPriority.
	Priority []string
}

// ErrEmptyBundle is returned when the input holds no parseable content.
var ErrEmptyBundle = errors.New("fhir: empty bundle")

type rawBundle struct {
	ResourceType string     `json:"resourceType"`
	Entry        []rawEntry `json:"entry"`
}

type rawEntry struct {
	Resource json.RawMessage `json:"resource"`
}

type rawHumanName struct {
	Text   string   `json:"text"`
	Family string   `json:"family"`
	Given  []string `json:"given"`
}

type rawAddress struct {
	PostalCode json.RawMessage `json:"postalCode"`
}

// rawResource is the permissive superset of fields the reduction reads.
// Everything else in the resource is bookkeeping and is dropped by not being
// declared here.
type rawResource struct {
	ResourceType         string           `json:"resourceType"`
	ID                   string           `json:"id"`
	Status               string           `json:"status"`
	ClinicalStatus       *CodeableConcept `json:"clinicalStatus"`
	VerificationStatus   *CodeableConcept `json:"verificationStatus"`
	Code                 *CodeableConcept `json:"code"`
	ValueQuantity        *Quantity        `json:"valueQuantity"`
	ValueString          string           `json:"valueString"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept"`

	EffectiveDateTime string  `json:"effectiveDateTime"`
	OnsetDateTime     string  `json:"onsetDateTime"`
	RecordedDate      string  `json:"recordedDate"`
	Date              string  `json:"date"`
	Period            *Period `json:"period"`

	Subject   *Reference `json:"subject"`
	Encounter *Reference `json:"encounter"`

	MedicationCodeableConcept *CodeableConcept  `json:"medicationCodeableConcept"`
	Dosage                    []Dosage          `json:"dosage"`
	Severity                  *CodeableConcept  `json:"severity"`
	BodySite                  []CodeableConcept `json:"bodySite"`
	Interpretation            []CodeableConcept `json:"interpretation"`
	Component                 []Component       `json:"component"`
	Class                     *Coding           `json:"class"`

	Name      []rawHumanName `json:"name"`
	BirthDate string         `json:"birthDate"`
	Gender    string         `json:"gender"`
	Address   []rawAddress   `json:"address"`
}

// Reduce projects a raw FHIR bundle (or a single resource) into a
// ReducedContext whose serialized size never exceeds opts.CeilingBytes.
// The projection is deterministic: identical input bytes yield a
// byte-identical serialized context. Resources that fail to parse are
// skipped rather than failing the whole bundle.
func Reduce(raw []byte, opts Options) (*ReducedContext, error) {
	if opts.CeilingBytes <= 0 {
		return nil, fmt.Errorf("fhir: ceiling must be positive, got %d", opts.CeilingBytes)
	}
	priority := opts.Priority
	if len(priority) == 0 {
		priority = DefaultPriority
	}

	resources, err := collectResources(raw)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, ErrEmptyBundle
	}

	rc := &ReducedContext{}
	for _, res := range resources {
		switch res.ResourceType {
		case "Patient":
			if rc.Patient == nil {
				rc.Patient = minimizePatient(res)
			}
		case "Condition":
			rc.Conditions = append(rc.Conditions, minimizeRecord(res))
		case "MedicationStatement", "MedicationRequest":
			rc.Medications = append(rc.Medications, minimizeRecord(res))
		case "Observation":
			rc.Observations = append(rc.Observations, minimizeRecord(res))
		case "Encounter":
			rc.Encounters = append(rc.Encounters, minimizeRecord(res))
		}
	}

	if err := rc.truncate(opts.CeilingBytes, priority); err != nil {
		return nil, err
	}
	return rc, nil
}

func collectResources(raw []byte) ([]rawResource, error) {
	var bundle rawBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("fhir: parse bundle: %w", err)
	}

	if bundle.ResourceType != "Bundle" {
		// A direct resource rather than a bundle.
		var res rawResource
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("fhir: parse resource: %w", err)
		}
		return []rawResource{res}, nil
	}

	resources := make([]rawResource, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		if len(entry.Resource) == 0 {
			continue
		}
		var res rawResource
		if err := json.Unmarshal(entry.Resource, &res); err != nil {
			continue
		}
		resources = append(resources, res)
	}
	return resources, nil
}

func minimizeRecord(res rawResource) Record {
	rec := Record{
		ResourceType:         res.ResourceType,
		ID:                   res.ID,
		Status:               res.Status,
		ClinicalStatus:       simplifyConcept(res.ClinicalStatus),
		VerificationStatus:   simplifyConcept(res.VerificationStatus),
		Code:                 simplifyConcept(res.Code),
		ValueQuantity:        res.ValueQuantity,
		ValueString:          res.ValueString,
		ValueCodeableConcept: simplifyConcept(res.ValueCodeableConcept),
		EffectiveDateTime:    res.EffectiveDateTime,
		OnsetDateTime:        res.OnsetDateTime,
		RecordedDate:         res.RecordedDate,
		Date:                 res.Date,
		Period:               res.Period,
		Subject:              res.Subject,
		Encounter:            res.Encounter,
	}

	switch res.ResourceType {
	case "MedicationStatement", "MedicationRequest":
		rec.MedicationCodeableConcept = simplifyConcept(res.MedicationCodeableConcept)
		if len(res.Dosage) > 0 {
			rec.Dosage = res.Dosage[:1]
		}
	case "Condition":
		rec.Severity = simplifyConcept(res.Severity)
		if len(res.BodySite) > 0 {
			rec.BodySite = simplifyConcept(&res.BodySite[0])
		}
	case "Observation":
		if len(res.Interpretation) > 0 {
			rec.Interpretation = simplifyConcept(&res.Interpretation[0])
		}
		if len(res.Component) > 3 {
			rec.Component = res.Component[:3]
		} else {
			rec.Component = res.Component
		}
	case "Encounter":
		rec.Class = res.Class
	}
	return rec
}

func minimizePatient(res rawResource) *Patient {
	p := &Patient{
		BirthDate: res.BirthDate,
		Gender:    res.Gender,
	}
	if len(res.Name) > 0 {
		p.Name = formatName(res.Name[0])
	}
	if len(res.Address) > 0 {
		p.PostalCode = normalizePostalCode(res.Address[0].PostalCode)
	}
	return p
}

func formatName(n rawHumanName) string {
	if n.Text != "" {
		return n.Text
	}
	parts := append([]string{}, n.Given...)
	if n.Family != "" {
		parts = append(parts, n.Family)
	}
	return strings.Join(parts, " ")
}

// normalizePostalCode accepts either a JSON string or number, strips a ZIP+4
// suffix, and left-pads digit-only codes to five characters so leading zeros
// survive numeric encodings.
func normalizePostalCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		s = n.String()
	}
	s = strings.TrimSpace(strings.SplitN(s, "-", 2)[0])
	if s != "" && isDigits(s) && len(s) < 5 {
		s = strings.Repeat("0", 5-len(s)) + s
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// simplifyConcept keeps only the primary coding entry plus the concept text.
func simplifyConcept(cc *CodeableConcept) *CodeableConcept {
	if cc == nil {
		return nil
	}
	out := &CodeableConcept{Text: cc.Text}
	if len(cc.Coding) > 0 {
		primary := cc.Coding[0]
		out.Coding = []Coding{{System: primary.System, Code: primary.Code, Display: primary.Display}}
	}
	if out.Text == "" && out.Coding == nil {
		return nil
	}
	return out
}

// truncate enforces the size ceiling: whole records are dropped from the
// lowest-priority category first, and a hard byte cut is the last resort.
// In every case the serialized context says explicitly when content was
// omitted.
func (rc *ReducedContext) truncate(ceiling int, priority []string) error {
	total := len(rc.Conditions) + len(rc.Medications) + len(rc.Observations) + len(rc.Encounters)
	omitted := 0

	serialize := func() ([]byte, error) {
		if omitted > 0 {
			rc.TruncationNote = fmt.Sprintf(
				"%d of %d clinical records omitted to fit the context size limit; lowest-priority categories were dropped first",
				omitted, total)
		}
		return json.Marshal(rc)
	}

	data, err := serialize()
	if err != nil {
		return fmt.Errorf("fhir: serialize reduced context: %w", err)
	}

	for _, cat := range priority {
		recs := rc.category(cat)
		for len(data) > ceiling && len(*recs) > 0 {
			*recs = (*recs)[:len(*recs)-1]
			omitted++
			if data, err = serialize(); err != nil {
				return fmt.Errorf("fhir: serialize reduced context: %w", err)
			}
		}
	}

	if len(data) > ceiling {
		// Hard cut. The marker must fit inside the ceiling too.
		marker := fmt.Sprintf("\n[clinical context truncated: %d bytes omitted to fit the %d-byte limit]",
			len(data)-ceiling, ceiling)
		keep := ceiling - len(marker)
		if keep < 0 {
			keep = 0
			marker = marker[:ceiling]
		}
		rc.promptJSON = string(data[:keep]) + marker
		return nil
	}

	rc.promptJSON = string(data)
	return nil
}

func (rc *ReducedContext) category(name string) *[]Record {
	switch name {
	case CategoryConditions:
		return &rc.Conditions
	case CategoryMedications:
		return &rc.Medications
	case CategoryObservations:
		return &rc.Observations
	case CategoryEncounters:
		return &rc.Encounters
	default:
		empty := []Record{}
		return &empty
	}
}
