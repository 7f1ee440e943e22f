package user

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/minerva/core"
)

type stdLogger struct{ *log.Logger }

func (l stdLogger) Debug(msg string, _ ...interface{}) { l.Println(msg) }
func (l stdLogger) Info(msg string, _ ...interface{})  { l.Println(msg) }
func (l stdLogger) Warn(msg string, _ ...interface{})  { l.Println(msg) }
func (l stdLogger) Error(msg string, _ ...interface{}) { l.Println(msg) }
func (l stdLogger) Fatal(msg string, _ ...interface{}) { l.Fatalln(msg) }

func newValidator(t *testing.T) (*validator.Validate, ut.Translator) {
	t.Helper()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator, AllRoles)
	InitValidators(validate, translator)
	LoadCommonPasswords(stdLogger{log.New(os.Stderr, "TEST : ", 0)})
	return validate, translator
}

func TestPasswordPolicy(t *testing.T) {
	validate, translator := newValidator(t)

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{name: "too short", pwd: "Ab1!", wantErr: pwdMinLenText},
		{name: "whitespace", pwd: "Abcdef1! x", wantErr: pwdNoSpaceText},
		{name: "all numeric", pwd: "1234567890", wantErr: pwdNotAllNumText},
		{name: "no special", pwd: "Abcdefg12", wantErr: pwdComplexityText},
		{name: "no upper", pwd: "abcdefg1!", wantErr: pwdComplexityText},
		{name: "similar to username", pwd: "Jdoeteacher1!", wantErr: pwdAttrSimText},
		{name: "common", pwd: "P@ssw0rd", wantErr: pwdNoCommonText},
		{name: "valid", pwd: "Tr0ub4dor&3x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "John Doe",
				Username:        "jdoeteacher",
				Email:           "jdoe@test.cd",
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
				Role:            RoleTeacher,
			}
			err := validate.Struct(nu)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			require.Len(t, vErrs, 1)
			assert.Equal(t, "password", vErrs[0].Field())
			assert.Equal(t, tt.wantErr, vErrs[0].Translate(translator))
		})
	}
}

func TestRoleValidation(t *testing.T) {
	validate, translator := newValidator(t)

	uu := UpdateUser{Role: "superuser"}
	err := validate.Struct(uu)
	require.Error(t, err)
	vErrs := err.(validator.ValidationErrors)
	require.Len(t, vErrs, 1)
	assert.Equal(t, "role", vErrs[0].Field())
	assert.Equal(t, "invalid role", vErrs[0].Translate(translator))

	for _, role := range AllRoles {
		assert.NoError(t, validate.Struct(UpdateUser{Role: role}))
	}
}

func TestRolePriority(t *testing.T) {
	assert.Greater(t, RolePriority(RoleAdmin), RolePriority(RoleTeacher))
	assert.Greater(t, RolePriority(RoleTeacher), RolePriority(RoleStudent))
	assert.Zero(t, RolePriority("unknown"))
}
