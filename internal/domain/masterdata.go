package domain

// Master data is owned externally; the engine only reads it.

// Priority is a reference priority level. Level orders priorities for the
// escalate action (higher means more urgent).
type Priority struct {
	ID       string
	Name     string
	Level    int
	IsActive bool
}

// HelpTopic categorizes tickets and optionally binds a custom form schema.
type HelpTopic struct {
	ID           string
	Name         string
	CustomFormID *string
	IsActive     bool
}

// ProblemType is a reference classification used by the set_category action.
type ProblemType struct {
	ID       string
	Name     string
	IsActive bool
}

// Technician is reference data about a field engineer. The engine only needs
// identity and team membership to route offers; contact details stay external.
type Technician struct {
	ID       string
	Name     string
	TeamID   string
	IsActive bool
}

// FieldType enumerates custom form field types.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeBool   FieldType = "bool"
	FieldTypeSelect FieldType = "select"
	FieldTypeDate   FieldType = "date"
)

// FieldDef describes one custom form field. Ticket custom_field_values form a
// closed map validated against these definitions at write time.
type FieldDef struct {
	Slug     string    `json:"slug"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Order    int       `json:"order"`
}

// CustomFormSchema is an ordered field list attached to a help topic.
type CustomFormSchema struct {
	ID     string
	Fields []FieldDef
}

// FieldBySlug looks up a field definition.
func (s *CustomFormSchema) FieldBySlug(slug string) (*FieldDef, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Fields {
		if s.Fields[i].Slug == slug {
			return &s.Fields[i], true
		}
	}
	return nil, false
}
