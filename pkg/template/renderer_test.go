package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

func TestRender_BindsVariablesNameAndPhone(t *testing.T) {
	r := NewRenderer()
	recipient := domain.Recipient{
		PhoneNumber: "+905551234567",
		Name:        "Ayse",
		Variables:   map[string]string{"code": "SPRING20"},
	}

	out, err := r.Render("Hi {{ name }}, use {{ code }} ({{ phone }})", recipient)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ayse, use SPRING20 (+905551234567)", out)
}

func TestRender_DefaultFilter(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(`Hello {{ name | default: "there" }}!`, domain.Recipient{PhoneNumber: "+15551234567"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", out)
}

func TestValidate_RejectsBrokenSyntax(t *testing.T) {
	r := NewRenderer()

	assert.NoError(t, r.Validate("Hi {{ name }}"))
	assert.ErrorIs(t, r.Validate("Hi {% if name %}"), domain.ErrInvalidInput)
}

func TestRender_FirstNameFilter(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render("Hi {{ name | first_name }}", domain.Recipient{Name: "Ayse Yilmaz"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ayse", out)
}
