package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/ai"
	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/persistence"
	"github.com/flowmatic/flowmatic/pkg/persistence/file"
	"github.com/flowmatic/flowmatic/pkg/registry"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
	"github.com/flowmatic/flowmatic/pkg/toolbuilder"
	"github.com/flowmatic/flowmatic/pkg/web"
	"github.com/flowmatic/flowmatic/pkg/workflow"
)

type nopInvoker struct{}

func (nopInvoker) InvokeTool(context.Context, string, map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.HealthCheck(context.Background()))

	logger := slog.Default()

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(registry.Dependencies{
		Policy:   ssrf.Policy{AllowLoopback: true},
		AIClient: &ai.StubClient{Response: "ok"},
		Tools:    nopInvoker{},
	})

	repository := workflow.NewRepository(store)
	executor := workflow.NewExecutor(logger, store, reg)
	engine := toolbuilder.NewEngine(logger, store, toolbuilder.Env{})

	handlers := web.NewAPIHandlers(repository, executor, engine, store, reg)

	app := fiber.New()
	web.Register(app, handlers)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, payload
}

func linearWorkflowRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:     "Greeting flow",
		UserID:   "user-1",
		IsActive: true,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeTrigger, Data: map[string]any{}},
			{ID: "shout", Type: models.NodeTypeTransform, Data: map[string]any{
				"function": "uppercase",
				"field":    "trigger.text",
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "shout"},
		},
	}
}

func TestCreateAndGetWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", linearWorkflowRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Greeting flow", created.Name)

	resp, body = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestCreateWorkflowRejectsInvalidBody(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		Name: "ab",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "validation_error")
}

func TestGetWorkflowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/ghost", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not_found")
}

func TestExecuteWorkflowEndToEnd(t *testing.T) {
	app, store := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/workflows/", linearWorkflowRequest())

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		UserID:      "user-1",
		TriggerData: map[string]any{"text": "hi"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	steps, err := store.Executions().StepsByExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+execution.ID+"/steps", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "\"shout\"")
}

func TestExecuteInactiveWorkflowSurfacesFailedRun(t *testing.T) {
	app, _ := setupTestApp(t)

	request := linearWorkflowRequest()
	request.IsActive = false

	_, body := doJSON(t, app, http.MethodPost, "/workflows/", request)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		UserID: "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Preconditions surface as a failed execution payload, not a
	// problem document.
	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "WORKFLOW_INACTIVE")
}

func TestExecuteUnknownWorkflowSurfacesFailedRun(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/wf-missing/execute", web.ExecuteWorkflowRequest{
		UserID: "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "WORKFLOW_NOT_FOUND")
}

func TestValidateWorkflowReportsProblems(t *testing.T) {
	app, _ := setupTestApp(t)

	request := linearWorkflowRequest()
	// Break the graph: drop the trigger.
	request.Nodes = request.Nodes[1:]

	_, body := doJSON(t, app, http.MethodPost, "/workflows/", request)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateWorkflowResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Problems)
}

func toolRequest() web.CreateToolRequest {
	return web.CreateToolRequest{
		Name:   "Doubler",
		UserID: "user-1",
		Inputs: []models.ToolInput{
			{Name: "inputNumber", Type: models.ToolInputNumber, Required: true},
		},
		Logic: []*models.LogicStep{
			{ID: "double", Type: models.LogicStepCalculation, Config: map[string]any{"formula": "inputNumber * 2"}},
		},
	}
}

func TestToolLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/tools/", toolRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Tool
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, models.ToolStatusDraft, created.Status)

	// Draft tools cannot be invoked.
	resp, body = doJSON(t, app, http.MethodPost, "/tools/"+created.ID+"/run", web.RunToolRequest{
		Input: map[string]any{"inputNumber": 15},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "tool_not_published")

	// Test runs work on drafts.
	resp, body = doJSON(t, app, http.MethodPost, "/tools/"+created.ID+"/test-run", web.RunToolRequest{
		Input: map[string]any{"inputNumber": 15},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "30")

	resp, _ = doJSON(t, app, http.MethodPost, "/tools/"+created.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/tools/"+created.ID+"/run", web.RunToolRequest{
		Input: map[string]any{"inputNumber": 15},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "30")
}

func TestRunToolValidationError(t *testing.T) {
	app, store := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/tools/", toolRequest())

	var created models.Tool
	require.NoError(t, json.Unmarshal(body, &created))

	created.Status = models.ToolStatusPublished
	require.NoError(t, store.Tools().Save(context.Background(), &created))

	resp, body := doJSON(t, app, http.MethodPost, "/tools/"+created.ID+"/run", web.RunToolRequest{
		Input: map[string]any{},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "VALIDATION_ERROR")
}

func TestPublishBlocksDangerousCustomCode(t *testing.T) {
	app, _ := setupTestApp(t)

	request := toolRequest()
	request.Logic = append(request.Logic, &models.LogicStep{
		ID:     "script",
		Type:   models.LogicStepCustom,
		Config: map[string]any{"code": `eval("boom")`},
	})

	_, body := doJSON(t, app, http.MethodPost, "/tools/", request)

	var created models.Tool
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doJSON(t, app, http.MethodPost, "/tools/"+created.ID+"/publish", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "security_error")
}

func TestGetToolResolver(t *testing.T) {
	app, _ := setupTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/tools/", toolRequest())

	var created models.Tool
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body := doJSON(t, app, http.MethodGet, "/tools/"+created.ID+"/resolver", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resolver web.ResolverResponse
	require.NoError(t, json.Unmarshal(body, &resolver))
	assert.Contains(t, resolver.Source, `context["inputNumber"]`)
}
