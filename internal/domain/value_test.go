package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTicketPath(t *testing.T) {
	company := "comp-1"
	ticket := &Ticket{
		Subject:        "router offline",
		TicketNumber:   17,
		CompanyID:      &company,
		CurrentStageID: "new",
		IsOpen:         true,
		Tags:           []string{"network", "urgent"},
		CustomFieldValues: map[string]any{
			"vlan":    float64(120),
			"on_site": true,
		},
	}

	tests := []struct {
		path  string
		known bool
		want  Value
	}{
		{"subject", true, StringValue("router offline")},
		{"ticket_number", true, NumberValue(17)},
		{"company_id", true, StringValue("comp-1")},
		{"device_id", true, NullValue()},
		{"is_open", true, BoolValue(true)},
		{"tags", true, StringValue("network,urgent")},
		{"custom_fields.vlan", true, NumberValue(120)},
		{"custom_fields.on_site", true, BoolValue(true)},
		{"custom_fields.absent", true, NullValue()},
		{"assignment.status", true, NullValue()},
		{"no_such_field", false, NullValue()},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			got, known := ResolveTicketPath(ticket, tc.path)
			assert.Equal(t, tc.known, known)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveAssignmentPaths(t *testing.T) {
	ticket := &Ticket{Assignment: &Assignment{TechnicianID: "tech-7", Status: AssignmentRescheduled}}

	status, known := ResolveTicketPath(ticket, "assignment.status")
	require.True(t, known)
	assert.Equal(t, StringValue("RESCHEDULED"), status)

	technician, known := ResolveTicketPath(ticket, "assignment.technician_id")
	require.True(t, known)
	assert.Equal(t, StringValue("tech-7"), technician)
}

func TestValueCoercions(t *testing.T) {
	assert.True(t, NullValue().IsEmpty())
	assert.True(t, StringValue("   ").IsEmpty())
	assert.False(t, StringValue("x").IsEmpty())
	assert.False(t, NumberValue(0).IsEmpty())
	assert.False(t, BoolValue(false).IsEmpty())

	assert.Equal(t, "3.5", NumberValue(3.5).AsString())
	assert.Equal(t, "true", BoolValue(true).AsString())
	assert.Equal(t, "", NullValue().AsString())

	n, ok := StringValue(" 42 ").AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 42.0, n)

	_, ok = StringValue("not a number").AsNumber()
	assert.False(t, ok)

	n, ok = BoolValue(true).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 1.0, n)

	_, ok = NullValue().AsNumber()
	assert.False(t, ok)
}

func TestValueOf(t *testing.T) {
	assert.Equal(t, NullValue(), ValueOf(nil))
	assert.Equal(t, StringValue("x"), ValueOf("x"))
	assert.Equal(t, BoolValue(true), ValueOf(true))
	assert.Equal(t, NumberValue(7), ValueOf(float64(7)))
	assert.Equal(t, NumberValue(7), ValueOf(int(7)))
	assert.Equal(t, NumberValue(7), ValueOf(int64(7)))
	assert.Equal(t, NullValue(), ValueOf(map[string]any{}), "unsupported shapes resolve to null")
}

func TestKnownTicketPath(t *testing.T) {
	schema := &CustomFormSchema{Fields: []FieldDef{{Slug: "serial_number", Type: FieldTypeText}}}

	assert.True(t, KnownTicketPath("subject", nil))
	assert.True(t, KnownTicketPath("assignment.status", nil))
	assert.False(t, KnownTicketPath("severity", nil))
	assert.True(t, KnownTicketPath("custom_fields.serial_number", schema))
	assert.False(t, KnownTicketPath("custom_fields.unknown", schema))
	assert.False(t, KnownTicketPath("custom_fields.anything", nil))
}
