package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/serverutils"
	"narrative-engine-be/internal/service"
	"narrative-engine-be/pkg/engine/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTurnService struct {
	createErr error
	created   *dto.CreateTurnRequest
	limit     int
}

func (f *fakeTurnService) TurnUpdated(ctx context.Context, turn *entity.Turn) {}

func (f *fakeTurnService) Create(ctx context.Context, req *dto.CreateTurnRequest) (*dto.CreateTurnResponse, error) {
	f.created = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &dto.CreateTurnResponse{TurnId: uuid.New(), TurnNumber: 1, Status: "processing"}, nil
}

func (f *fakeTurnService) Submit(ctx context.Context, sessionID uuid.UUID, input pipeline.Input) (*entity.Turn, error) {
	return nil, nil
}

func (f *fakeTurnService) Get(ctx context.Context, id uuid.UUID) (*dto.TurnResponse, error) {
	return nil, service.ErrTurnNotFound
}

func (f *fakeTurnService) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.TurnResponse, error) {
	f.limit = limit
	return []*dto.TurnResponse{{TurnId: uuid.New(), SessionId: sessionID, StartedAt: time.Now()}}, nil
}

func (f *fakeTurnService) Conversation(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.ConversationEntryResponse, error) {
	f.limit = limit
	return nil, nil
}

func newApp(register func(r fiber.Router)) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(service.ErrorStatuses))
	register(app.Group("/api"))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, serverutils.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out serverutils.Response
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func turnApp(svc *fakeTurnService) *fiber.App {
	return newApp(NewTurnController(svc, serverutils.JwtMiddleware("secret", false)).RegisterRoutes)
}

func TestTurnController_CreateAccepted(t *testing.T) {
	svc := &fakeTurnService{}
	sessionID := uuid.New()

	status, res := do(t, turnApp(svc), "POST", "/api/turn/v1", `{"sessionId":"`+sessionID.String()+`","input":"open the door"}`)

	assert.Equal(t, fiber.StatusAccepted, status)
	assert.True(t, res.Success)
	require.NotNil(t, svc.created)
	assert.Equal(t, sessionID, svc.created.SessionId)
	assert.Equal(t, "open the door", svc.created.Input)
}

func TestTurnController_CreateValidation(t *testing.T) {
	status, res := do(t, turnApp(&fakeTurnService{}), "POST", "/api/turn/v1", `{"sessionId":"`+uuid.NewString()+`"}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, res.Success)
}

func TestTurnController_CreateMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrTurnInProgress, fiber.StatusConflict},
		{service.ErrSessionNotFound, fiber.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, res := do(t, turnApp(&fakeTurnService{createErr: tc.err}), "POST", "/api/turn/v1", `{"sessionId":"`+uuid.NewString()+`","input":"hi"}`)
			assert.Equal(t, tc.code, status)
			assert.Equal(t, tc.err.Error(), res.Message)
		})
	}
}

func TestTurnController_ShowNotFound(t *testing.T) {
	status, _ := do(t, turnApp(&fakeTurnService{}), "GET", "/api/turn/v1/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTurnController_ShowRejectsBadID(t *testing.T) {
	status, _ := do(t, turnApp(&fakeTurnService{}), "GET", "/api/turn/v1/not-a-uuid", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestTurnController_ListUsesLimit(t *testing.T) {
	svc := &fakeTurnService{}
	app := turnApp(svc)

	status, _ := do(t, app, "GET", "/api/turn/v1/session/"+uuid.NewString()+"?limit=7", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 7, svc.limit)

	status, _ = do(t, app, "GET", "/api/turn/v1/session/"+uuid.NewString()+"/conversation", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 50, svc.limit)
}

func TestTurnController_RequiredAuth(t *testing.T) {
	app := newApp(NewTurnController(&fakeTurnService{}, serverutils.JwtMiddleware("secret", true)).RegisterRoutes)

	status, _ := do(t, app, "GET", "/api/turn/v1/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
