package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/internal/infrastructure/storage"
)

func valid() roster.Student {
	return roster.Student{
		Name:       "Ayesha Malik",
		FatherName: "Tariq Malik",
		Phone:      "0300-1234567",
		ClassName:  "5",
	}
}

func messages(fields []shared.FieldError) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestValidateStudent_Valid(t *testing.T) {
	assert.Empty(t, New().ValidateStudent(valid()))
}

func TestValidateStudent_Phone(t *testing.T) {
	v := New()
	tests := []struct {
		phone string
		ok    bool
	}{
		{"0300-1234567", true},
		{roster.NormalizePhone("03001234567"), true},
		{roster.NormalizePhone("030012345"), false},
		{"0300-123456", false},
		{"03001234567", false},
		{"", false},
	}
	for _, tt := range tests {
		s := valid()
		s.Phone = tt.phone
		_, failed := messages(v.ValidateStudent(s))["phone"]
		assert.Equal(t, !tt.ok, failed, tt.phone)
	}
}

func TestValidateStudent_ClassLabel(t *testing.T) {
	v := New()
	for _, class := range []string{"1", "5", "10"} {
		s := valid()
		s.ClassName = class
		assert.Empty(t, v.ValidateStudent(s), class)
	}
	for _, class := range []string{"0", "11", "five", "-1", ""} {
		s := valid()
		s.ClassName = class
		assert.Contains(t, messages(v.ValidateStudent(s)), "className", class)
	}
}

func TestValidateStudent_AggregatesAllFields(t *testing.T) {
	fields := New().ValidateStudent(roster.Student{Name: "A", Phone: "123", ClassName: "12"})
	msgs := messages(fields)

	require.Len(t, fields, 4)
	assert.Equal(t, "name must be at least 2 characters", msgs["name"])
	assert.Equal(t, "fatherName is required", msgs["fatherName"])
	assert.Equal(t, "phone format should be 03XX-XXXXXXX", msgs["phone"])
	assert.Equal(t, "class must be a number from 1 to 10", msgs["className"])
}

func TestValidateStudent_NameCharacters(t *testing.T) {
	s := valid()
	s.Name = "R2D2"
	assert.Equal(t, "name can only contain letters and spaces", messages(New().ValidateStudent(s))["name"])
}

func TestValidator_WiredIntoRoster(t *testing.T) {
	repo := roster.NewRepository(storage.NewMemoryStore(), roster.Options{Validator: New()})

	_, err := repo.Add(context.Background(), roster.NewStudent{
		Name: "Ayesha Malik", FatherName: "Tariq Malik", Phone: "03001234567", ClassName: "11",
	})
	ve, ok := shared.AsValidation(err)
	require.True(t, ok)
	f, has := ve.Field("className")
	assert.True(t, has)
	assert.Equal(t, "class must be a number from 1 to 10", f.Message)
	assert.Zero(t, repo.Len())
}
