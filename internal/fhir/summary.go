package fhir

import "fmt"

// ZIPCode returns the patient's five-digit ZIP code from the reduced
// demographics, or "" when none is on record. Tools use this as the implicit
// location when the model omits one.
func (rc *ReducedContext) ZIPCode() string {
	if rc.Patient == nil {
		return ""
	}
	return rc.Patient.PostalCode
}

// ActiveConditions returns the display names of conditions whose clinical
// status is active, in bundle order.
func (rc *ReducedContext) ActiveConditions() []string {
	var active []string
	for _, c := range rc.Conditions {
		if !isActive(c.ClinicalStatus) {
			continue
		}
		if name := conceptDisplay(c.Code); name != "" {
			active = append(active, name)
		}
	}
	return active
}

// HealthSummary produces the one-line overview shown when a session is
// created.
func (rc *ReducedContext) HealthSummary() string {
	active := rc.ActiveConditions()
	switch {
	case len(active) == 1:
		return "Active condition: " + active[0]
	case len(active) == 2:
		return "Active conditions: " + active[0] + " and " + active[1]
	case len(active) > 2:
		return fmt.Sprintf("%d active conditions, including %s", len(active), active[0])
	case len(rc.Conditions) > 0:
		return fmt.Sprintf("%d condition(s) on record", len(rc.Conditions))
	case len(rc.Medications) > 0:
		return fmt.Sprintf("%d medication(s) on record", len(rc.Medications))
	case len(rc.Encounters) > 0:
		return "Health record available with encounter history"
	default:
		return "Limited health data available"
	}
}

// LastEncounterDate returns the latest encounter period start, or "" when no
// encounter carries one. ISO-8601 date strings compare lexicographically.
func (rc *ReducedContext) LastEncounterDate() string {
	var last string
	for _, e := range rc.Encounters {
		if e.Period != nil && e.Period.Start > last {
			last = e.Period.Start
		}
	}
	return last
}

func isActive(status *CodeableConcept) bool {
	if status == nil {
		return false
	}
	for _, c := range status.Coding {
		if c.Code == "active" {
			return true
		}
	}
	return false
}

func conceptDisplay(cc *CodeableConcept) string {
	if cc == nil {
		return ""
	}
	if len(cc.Coding) > 0 && cc.Coding[0].Display != "" {
		return cc.Coding[0].Display
	}
	return cc.Text
}
