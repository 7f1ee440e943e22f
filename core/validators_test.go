package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedPayload struct {
	Username string `json:"username" validate:"omitempty,alphanum_"`
	Alias    string `json:"alias" validate:"omitempty,alias"`
	Role     string `json:"role" validate:"omitempty,role"`
}

func TestInitValidators(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	InitValidators(validate, translator, []string{"student", "teacher"})

	tests := []struct {
		name      string
		payload   taggedPayload
		wantField string
		wantText  string
	}{
		{name: "valid", payload: taggedPayload{Username: "jdoe_1", Alias: "go-101", Role: "teacher"}},
		{name: "bad username", payload: taggedPayload{Username: "j.doe"}, wantField: "username", wantText: alphaNumUnderText},
		{name: "uppercase alias", payload: taggedPayload{Alias: "Go-101"}, wantField: "alias", wantText: aliasText},
		{name: "alias with space", payload: taggedPayload{Alias: "go 101"}, wantField: "alias", wantText: aliasText},
		{name: "unknown role", payload: taggedPayload{Role: "admin"}, wantField: "role", wantText: roleText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.payload)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs := err.(validator.ValidationErrors)
			require.Len(t, vErrs, 1)
			assert.Equal(t, tt.wantField, vErrs[0].Field())
			assert.Equal(t, tt.wantText, vErrs[0].Translate(translator))
		})
	}
}
