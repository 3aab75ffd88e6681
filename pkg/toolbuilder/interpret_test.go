package toolbuilder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
)

func compileLogic(t *testing.T, logic ...*models.LogicStep) *Program {
	t.Helper()

	program, err := Compile(&models.Tool{Logic: logic})
	require.NoError(t, err)

	return program
}

func TestRunCalculation(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "double",
		Type:   models.LogicStepCalculation,
		Config: map[string]any{"formula": "inputNumber * 2"},
	})

	output, err := program.Run(context.Background(), Env{}, map[string]any{"inputNumber": 15.0})
	require.NoError(t, err)

	assert.Equal(t, 30.0, output["result"])
}

func TestRunCalculationDivisionByZero(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "ratio",
		Type:   models.LogicStepCalculation,
		Config: map[string]any{"formula": "amount / divisor"},
	})

	output, err := program.Run(context.Background(), Env{}, map[string]any{
		"amount":  10.0,
		"divisor": 0.0,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, output["result"])
}

func TestRunCalculationUndefinedVariable(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "bad",
		Type:   models.LogicStepCalculation,
		Config: map[string]any{"formula": "missing + 1"},
	})

	_, err := program.Run(context.Background(), Env{}, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALCULATION_FAILED")
}

func TestRunConditionSelectsElseBranch(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "age_check",
		Type:   models.LogicStepCondition,
		Config: map[string]any{"expression": "age > 18"},
		Then: []*models.LogicStep{
			{ID: "adult", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "age * 2"}},
		},
		Else: []*models.LogicStep{
			{ID: "minor", Type: models.LogicStepTransform, Config: map[string]any{"function": "capitalize", "field": "label"}},
		},
	})

	output, err := program.Run(context.Background(), Env{}, map[string]any{
		"age":   15.0,
		"label": "minor",
	})
	require.NoError(t, err)

	// Only the else branch ran; the then-side calculation would have
	// left a number here.
	assert.Equal(t, "Minor", output["result"])
}

func TestRunConditionThenBranchSeesMarker(t *testing.T) {
	program := compileLogic(t,
		&models.LogicStep{
			ID:     "check",
			Type:   models.LogicStepCondition,
			Config: map[string]any{"expression": "amount >= 100"},
			Then: []*models.LogicStep{
				{ID: "bonus", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "amount * 1.5"}},
			},
		},
	)

	output, err := program.Run(context.Background(), Env{}, map[string]any{"amount": 100.0})
	require.NoError(t, err)

	assert.Equal(t, 150.0, output["result"])
}

func TestRunConditionStringEquality(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "status_check",
		Type:   models.LogicStepCondition,
		Config: map[string]any{"expression": "status == active"},
		Then: []*models.LogicStep{
			{ID: "yes", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "1"}},
		},
		Else: []*models.LogicStep{
			{ID: "no", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "0"}},
		},
	})

	output, err := program.Run(context.Background(), Env{}, map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, output["result"])
}

func TestRunConditionOrderingOnStringsFails(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "bad",
		Type:   models.LogicStepCondition,
		Config: map[string]any{"expression": "name > other"},
	})

	_, err := program.Run(context.Background(), Env{}, map[string]any{
		"name":  "alice",
		"other": "bob",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONDITION_INVALID")
}

func TestRunSwitchMatchesCase(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "tier",
		Type:   models.LogicStepSwitch,
		Config: map[string]any{"field": "plan"},
		Cases: []models.SwitchCase{
			{Value: "gold", Steps: []*models.LogicStep{
				{ID: "gold_rate", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "amount * 0.8"}},
			}},
			{Value: "silver", Steps: []*models.LogicStep{
				{ID: "silver_rate", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "amount * 0.9"}},
			}},
		},
		Default: []*models.LogicStep{
			{ID: "full_rate", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "amount"}},
		},
	})

	output, err := program.Run(context.Background(), Env{}, map[string]any{
		"plan":   "silver",
		"amount": 100.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 90.0, output["result"])

	output, err = program.Run(context.Background(), Env{}, map[string]any{
		"plan":   "unknown",
		"amount": 100.0,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, output["result"])
}

func TestRunLookup(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:   "country_name",
		Type: models.LogicStepLookup,
		Config: map[string]any{
			"field":   "code",
			"table":   map[string]any{"de": "Germany", "fr": "France"},
			"default": "Unknown",
		},
	})

	output, err := program.Run(context.Background(), Env{}, map[string]any{"code": "de"})
	require.NoError(t, err)
	assert.Equal(t, "Germany", output["result"])

	output, err = program.Run(context.Background(), Env{}, map[string]any{"code": "xx"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", output["result"])
}

func TestRunLookupWithoutDefaultFails(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:   "strict",
		Type: models.LogicStepLookup,
		Config: map[string]any{
			"field": "code",
			"table": map[string]any{"de": "Germany"},
		},
	})

	_, err := program.Run(context.Background(), Env{}, map[string]any{"code": "xx"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOOKUP_NO_MATCH")
}

func TestRunTransformMissingFieldFails(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "shout",
		Type:   models.LogicStepTransform,
		Config: map[string]any{"function": "uppercase", "field": "missing"},
	})

	_, err := program.Run(context.Background(), Env{}, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRANSFORM_FIELD_MISSING")
}

func TestRunStepsChainThroughContext(t *testing.T) {
	program := compileLogic(t,
		&models.LogicStep{
			ID:     "base",
			Type:   models.LogicStepCalculation,
			Config: map[string]any{"formula": "amount * 2"},
		},
		&models.LogicStep{
			ID:     "final",
			Type:   models.LogicStepCalculation,
			Config: map[string]any{"formula": "step_base + 5"},
		},
	)

	output, err := program.Run(context.Background(), Env{}, map[string]any{"amount": 10.0})
	require.NoError(t, err)

	assert.Equal(t, 25.0, output["result"])
}

func TestRunOutputTemplate(t *testing.T) {
	program, err := Compile(&models.Tool{
		Logic: []*models.LogicStep{
			{ID: "total", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "price * quantity"}},
		},
		OutputTemplate: "Total: {step_total}",
	})
	require.NoError(t, err)

	output, err := program.Run(context.Background(), Env{}, map[string]any{
		"price":    3.0,
		"quantity": 4.0,
	})
	require.NoError(t, err)

	assert.Equal(t, "Total: 12", output["result"])
}

func TestRunAPICall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/42", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total": 99}`))
	}))
	defer server.Close()

	program := compileLogic(t, &models.LogicStep{
		ID:     "fetch",
		Type:   models.LogicStepAPICall,
		Config: map[string]any{"url": server.URL + "/orders/{order_id}"},
	})

	env := Env{Policy: ssrf.Policy{AllowLoopback: true}}

	output, err := program.Run(context.Background(), env, map[string]any{"order_id": 42})
	require.NoError(t, err)

	result, ok := output["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 99.0, result["total"])
}

func TestRunAPICallBlocksInternalTargets(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "probe",
		Type:   models.LogicStepAPICall,
		Config: map[string]any{"url": "http://169.254.169.254/latest/meta-data/"},
	})

	_, err := program.Run(context.Background(), Env{Policy: ssrf.Policy{AllowLoopback: true}}, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSRF_BLOCKED")
}

func TestRunAPICallStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	program := compileLogic(t, &models.LogicStep{
		ID:     "fetch",
		Type:   models.LogicStepAPICall,
		Config: map[string]any{"url": server.URL},
	})

	_, err := program.Run(context.Background(), Env{Policy: ssrf.Policy{AllowLoopback: true}}, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_STATUS")
	assert.Contains(t, err.Error(), "502")
}

func TestRunAIAnalysis(t *testing.T) {
	client := &ai.StubClient{Response: "Looks healthy."}

	program := compileLogic(t, &models.LogicStep{
		ID:     "review",
		Type:   models.LogicStepAIAnalysis,
		Config: map[string]any{"prompt": "Review sleep of {hours} hours"},
	})

	output, err := program.Run(context.Background(), Env{AIClient: client}, map[string]any{"hours": 7.5})
	require.NoError(t, err)

	assert.Equal(t, "Looks healthy.", output["result"])
	require.Len(t, client.Requests, 1)
	assert.Equal(t, "Review sleep of 7.5 hours", client.Requests[0].Messages[0].Content)
}

func TestRunAIAnalysisWithoutProvider(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "review",
		Type:   models.LogicStepAIAnalysis,
		Config: map[string]any{"prompt": "hello"},
	})

	_, err := program.Run(context.Background(), Env{}, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_MISSING_KEY")
}

func TestRunCustomStepRefused(t *testing.T) {
	program := compileLogic(t, &models.LogicStep{
		ID:     "script",
		Type:   models.LogicStepCustom,
		Config: map[string]any{"code": "return 1;"},
	})

	_, err := program.Run(context.Background(), Env{}, map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUSTOM_NOT_SUPPORTED")
}

func TestCompileRejectsBadSteps(t *testing.T) {
	tests := []struct {
		name string
		step *models.LogicStep
	}{
		{"calculation without formula", &models.LogicStep{Type: models.LogicStepCalculation}},
		{"condition without expression", &models.LogicStep{Type: models.LogicStepCondition}},
		{"transform without field", &models.LogicStep{Type: models.LogicStepTransform, Config: map[string]any{"function": "uppercase"}}},
		{"lookup without table", &models.LogicStep{Type: models.LogicStepLookup, Config: map[string]any{"field": "x"}}},
		{"api_call without url", &models.LogicStep{Type: models.LogicStepAPICall}},
		{"unknown type", &models.LogicStep{Type: "teleport"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&models.Tool{Logic: []*models.LogicStep{tt.step}})
			assert.Error(t, err)
		})
	}
}
