package domain

import (
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is the tagged variant produced by resolving a dotted field path
// against a ticket. Rule conditions never see raw ticket fields, only Values.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func NullValue() Value            { return Value{Kind: KindNull} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }

// IsEmpty reports whether the value is null or a blank string.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.Str) == ""
	}
	return false
}

// AsString renders the value for text comparison.
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// AsNumber coerces the value to a number. A false second return means the
// value is not numeric; numeric comparisons then evaluate as non-match.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ValueOf wraps a raw custom field value in the variant.
func ValueOf(raw any) Value {
	switch typed := raw.(type) {
	case nil:
		return NullValue()
	case string:
		return StringValue(typed)
	case bool:
		return BoolValue(typed)
	case float64:
		return NumberValue(typed)
	case float32:
		return NumberValue(float64(typed))
	case int:
		return NumberValue(float64(typed))
	case int64:
		return NumberValue(float64(typed))
	}
	return NullValue()
}

func optionalString(s *string) Value {
	if s == nil {
		return NullValue()
	}
	return StringValue(*s)
}

const customFieldPrefix = "custom_fields."

// ResolveTicketPath resolves a dotted field path against a ticket snapshot.
// The second return is false for paths the engine does not know; at
// evaluation time an unknown path behaves as null rather than an error,
// because paths are already rejected at rule-save time.
func ResolveTicketPath(t *Ticket, path string) (Value, bool) {
	switch path {
	case "subject":
		return StringValue(t.Subject), true
	case "description":
		return StringValue(t.Description), true
	case "help_topic_id":
		return StringValue(t.HelpTopicID), true
	case "priority_id":
		return StringValue(t.PriorityID), true
	case "company_id":
		return optionalString(t.CompanyID), true
	case "device_id":
		return optionalString(t.DeviceID), true
	case "problem_type_id":
		return optionalString(t.ProblemTypeID), true
	case "current_stage_id":
		return StringValue(t.CurrentStageID), true
	case "workflow_id":
		return StringValue(t.WorkflowID), true
	case "ticket_number":
		return NumberValue(float64(t.TicketNumber)), true
	case "is_open":
		return BoolValue(t.IsOpen), true
	case "approval_hold":
		return BoolValue(t.ApprovalHold), true
	case "tags":
		return StringValue(strings.Join(t.Tags, ",")), true
	case "assignment.status":
		if t.Assignment == nil {
			return NullValue(), true
		}
		return StringValue(string(t.Assignment.Status)), true
	case "assignment.technician_id":
		if t.Assignment == nil {
			return NullValue(), true
		}
		return StringValue(t.Assignment.TechnicianID), true
	}
	if slug, ok := strings.CutPrefix(path, customFieldPrefix); ok {
		raw, present := t.CustomFieldValues[slug]
		if !present {
			return NullValue(), true
		}
		return ValueOf(raw), true
	}
	return NullValue(), false
}

// KnownTicketPath reports whether a condition field path is resolvable, given
// the custom form schema in force for the rule's tenant. Used at rule-save
// time so misconfigured paths never reach evaluation.
func KnownTicketPath(path string, schema *CustomFormSchema) bool {
	if slug, ok := strings.CutPrefix(path, customFieldPrefix); ok {
		_, found := schema.FieldBySlug(slug)
		return found
	}
	probe := &Ticket{}
	_, known := ResolveTicketPath(probe, path)
	return known
}
