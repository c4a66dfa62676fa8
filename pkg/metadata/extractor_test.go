package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

const sampleDefinition = `<?xml version="1.0" encoding="UTF-8"?>
<jasperReport name="Loan Portfolio Summary">
	<parameter name="BorrowerKey" class="java.lang.Integer">
		<parameterDescription><![CDATA[Borrower surrogate key]]></parameterDescription>
		<defaultValueExpression><![CDATA[0]]></defaultValueExpression>
	</parameter>
	<parameter name="Region" class="java.lang.String">
		<defaultValueExpression><![CDATA["WEST"]]></defaultValueExpression>
	</parameter>
	<parameter name="AsOfDate" class="java.util.Date"/>
	<parameter name="REPORT_LOCALE" class="java.util.Locale"/>
	<parameter name="InternalFlag" class="java.lang.Boolean" isForPrompting="false">
		<defaultValueExpression><![CDATA[true]]></defaultValueExpression>
	</parameter>
	<queryString><![CDATA[SELECT * FROM loans]]></queryString>
</jasperReport>`

func TestExtract_Basic(t *testing.T) {
	name, params, err := Extract("loan_portfolio.jrxml", []byte(sampleDefinition))
	require.NoError(t, err)

	assert.Equal(t, "Loan Portfolio Summary", name)
	require.Len(t, params, 3)

	assert.Equal(t, "BorrowerKey", params[0].Name)
	assert.Equal(t, types.ParamInteger, params[0].Type)
	assert.Equal(t, "Borrower surrogate key", params[0].Description)
	assert.Equal(t, "0", params[0].Default)
	assert.False(t, params[0].Required)

	assert.Equal(t, "Region", params[1].Name)
	assert.Equal(t, types.ParamString, params[1].Type)
	assert.Equal(t, "WEST", params[1].Default)
	assert.False(t, params[1].Required)

	assert.Equal(t, "AsOfDate", params[2].Name)
	assert.Equal(t, types.ParamDate, params[2].Type)
	assert.True(t, params[2].Required)
}

func TestExtract_Deterministic(t *testing.T) {
	name1, params1, err1 := Extract("loan_portfolio.jrxml", []byte(sampleDefinition))
	name2, params2, err2 := Extract("loan_portfolio.jrxml", []byte(sampleDefinition))

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, name1, name2)
	assert.Equal(t, params1, params2)
}

func TestExtract_FiltersBuiltInsAndNonPrompting(t *testing.T) {
	_, params, err := Extract("x.jrxml", []byte(sampleDefinition))
	require.NoError(t, err)

	for _, p := range params {
		assert.NotEqual(t, "REPORT_LOCALE", p.Name)
		assert.NotEqual(t, "InternalFlag", p.Name)
	}
}

func TestExtract_RequiredExactlyWhenNoDefault(t *testing.T) {
	src := `<jasperReport name="r">
		<parameter name="HasDefault" class="java.lang.String">
			<defaultValueExpression><![CDATA["x"]]></defaultValueExpression>
		</parameter>
		<parameter name="EmptyDefault" class="java.lang.String">
			<defaultValueExpression></defaultValueExpression>
		</parameter>
		<parameter name="NoDefault" class="java.lang.String"/>
	</jasperReport>`

	_, params, err := Extract("r.jrxml", []byte(src))
	require.NoError(t, err)
	require.Len(t, params, 3)

	assert.False(t, params[0].Required)
	assert.False(t, params[1].Required) // default expression present, even if empty
	assert.True(t, params[2].Required)
}

func TestExtract_RootNameFallsBackToFileName(t *testing.T) {
	name, _, err := Extract("quarterly statement.jrxml", []byte(`<jasperReport></jasperReport>`))
	require.NoError(t, err)
	assert.Equal(t, "quarterly statement", name)
}

func TestExtract_UnknownTypeDefaultsToString(t *testing.T) {
	src := `<jasperReport name="r">
		<parameter name="Weird" class="com.example.Custom"/>
	</jasperReport>`

	_, params, err := Extract("r.jrxml", []byte(src))
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, types.ParamString, params[0].Type)
}

func TestExtract_RejectsDoctype(t *testing.T) {
	src := `<?xml version="1.0"?>
<!DOCTYPE jasperReport [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
<jasperReport name="evil"/>`

	name, params, err := Extract("evil.jrxml", []byte(src))
	assert.ErrorIs(t, err, ErrDoctypeNotAllowed)
	assert.Equal(t, "evil", name)
	assert.Empty(t, params)
}

func TestExtract_MalformedYieldsFallback(t *testing.T) {
	name, params, err := Extract("broken.jrxml", []byte(`<jasperReport name="x"><parameter`))
	assert.Error(t, err)
	assert.Equal(t, "broken", name)
	assert.Empty(t, params)
}

func TestInterpretLiteral(t *testing.T) {
	tests := []struct {
		expr string
		typ  types.ParamType
		want string
	}{
		{"42", types.ParamInteger, "42"},
		{"-7", types.ParamLong, "-7"},
		{"new Integer(5)", types.ParamInteger, "new Integer(5)"},
		{"TRUE", types.ParamBoolean, "true"},
		{`"hello"`, types.ParamString, "hello"},
		{"3.25d", types.ParamDouble, "3.25"},
		{"1.5F", types.ParamFloat, "1.5"},
		{"99.99", types.ParamDecimal, "99.99"},
		{"new java.util.Date()", types.ParamDate, "new java.util.Date()"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, interpretLiteral(tc.expr, tc.typ), "expr %q", tc.expr)
	}
}
