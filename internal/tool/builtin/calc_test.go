package builtin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcTool_Invoke(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
		wantValue  float64
	}{
		{"mixed precedence", "(2 + 3) * 4.5 - 1", "21.5", 21.5},
		{"multiplication binds tighter", "2 + 3 * 4", "14", 14},
		{"division", "7 / 2", "3.5", 3.5},
		{"power right associative", "2 ^ 3 ^ 2", "512", 512},
		{"unary minus", "-3 + 5", "2", 2},
		{"negation binds looser than power", "-2^2", "-4", -4},
		{"negative exponent", "2 ^ -3", "0.125", 0.125},
		{"parenthesized negative base", "(-2) ^ 2", "4", 4},
		{"nested parens", "((1 + 2) * (3 + 4))", "21", 21},
		{"plain number", "42", "42", 42},
	}

	calc := &CalcTool{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := calc.Invoke(map[string]interface{}{"expression": tc.expression})
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Content)
			assert.InDelta(t, tc.wantValue, result.Metadata["value"], 1e-9)
			assert.False(t, result.IsError())
		})
	}
}

func TestCalcTool_InvokeErrors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"division by zero", "1 / 0"},
		{"unbalanced paren", "(1 + 2"},
		{"trailing operator", "1 +"},
		{"garbage", "two plus two"},
		{"trailing garbage", "1 + 2 x"},
		{"too long", strings.Repeat("1+", maxExpressionLen) + "1"},
	}

	calc := &CalcTool{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Invoke(map[string]interface{}{"expression": tc.expression})
			require.Error(t, err)
		})
	}
}

func TestCalcTool_SchemaRequiresExpression(t *testing.T) {
	schema := (&CalcTool{}).Schema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"expression"}, schema["required"])
	assert.Equal(t, false, schema["additionalProperties"])
}
