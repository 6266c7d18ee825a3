package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/XXUCHAN/gapboard/internal/models"
	"github.com/XXUCHAN/gapboard/internal/price"
	"github.com/XXUCHAN/gapboard/internal/session"
	"github.com/XXUCHAN/gapboard/internal/sim"
	"github.com/XXUCHAN/gapboard/internal/stream"
)

type testEnv struct {
	router   *gin.Engine
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := stream.NewHub(nil)
	sessions := session.NewManager(price.NewMockSourceSeeded(3), nil)
	simulator := sim.NewSeeded(hub, nil, 10000, 3)

	router := gin.New()
	(&StrategyHandler{Sessions: sessions}).Register(router)
	(&BlockHandler{Sessions: sessions, Hub: hub}).Register(router)
	(&ExecutionHandler{Sessions: sessions, Simulator: simulator}).Register(router)

	return &testEnv{router: router, sessions: sessions}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope: %v (%s)", method, path, err, w.Body.String())
	}
	return w, env
}

func (e *testEnv) newStrategy(t *testing.T) string {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/v1/strategies", map[string]any{"name": "Test"})
	if w.Code != http.StatusOK {
		t.Fatalf("create strategy: %d %s", w.Code, w.Body.String())
	}
	var view struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatal(err)
	}
	return view.ID
}

func TestStrategyCRUD(t *testing.T) {
	e := newTestEnv(t)
	id := e.newStrategy(t)

	w, env := e.do(t, http.MethodGet, "/api/v1/strategies", nil)
	if w.Code != http.StatusOK || env.Meta["total"].(float64) != 1 {
		t.Fatalf("list: %d meta %v", w.Code, env.Meta)
	}

	w, _ = e.do(t, http.MethodPut, "/api/v1/strategies/"+id, map[string]any{"name": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename: %d", w.Code)
	}

	w, _ = e.do(t, http.MethodDelete, "/api/v1/strategies/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w, _ = e.do(t, http.MethodGet, "/api/v1/strategies/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d, want 404", w.Code)
	}
}

func TestBlockLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.newStrategy(t)
	base := "/api/v1/strategies/" + id

	w, env := e.do(t, http.MethodPost, base+"/blocks", map[string]any{"kind": "GAP"})
	if w.Code != http.StatusOK {
		t.Fatalf("create gap: %d %s", w.Code, w.Body.String())
	}
	var gap struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &gap); err != nil {
		t.Fatal(err)
	}

	for _, market := range []string{"spot", "perp"} {
		w, _ = e.do(t, http.MethodPost, base+"/gaps/"+gap.ID+"/drop", map[string]any{
			"payload": map[string]any{
				"action": "create",
				"kind":   "PRICE_REF",
				"market": market,
				"symbol": "BTCUSDT",
			},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("gap drop %s: %d %s", market, w.Code, w.Body.String())
		}
	}

	w, env = e.do(t, http.MethodGet, base+"/blocks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list blocks: %d", w.Code)
	}
	var blocks []map[string]any
	if err := json.Unmarshal(env.Data, &blocks); err != nil {
		t.Fatal(err)
	}
	// Gap plus its result mirror.
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(blocks))
	}

	w, _ = e.do(t, http.MethodDelete, base+"/blocks/"+gap.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete gap: %d", w.Code)
	}
	_, env = e.do(t, http.MethodGet, base+"/blocks", nil)
	if env.Meta["total"].(float64) != 0 {
		t.Fatalf("blocks after cascade = %v", env.Meta)
	}
}

func TestConditionLeftCoercion(t *testing.T) {
	e := newTestEnv(t)
	id := e.newStrategy(t)
	base := "/api/v1/strategies/" + id

	_, env := e.do(t, http.MethodPost, base+"/blocks", map[string]any{"kind": "CONDITION"})
	var cond struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &cond); err != nil {
		t.Fatal(err)
	}

	set := func(body map[string]any) models.Condition {
		t.Helper()
		w, _ := e.do(t, http.MethodPatch, base+"/conditions/"+cond.ID, body)
		if w.Code != http.StatusOK {
			t.Fatalf("patch condition: %d %s", w.Code, w.Body.String())
		}
		s, err := e.sessions.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		blk, _ := s.Engine.Blocks().Find(cond.ID)
		return blk.(models.Condition)
	}

	if c := set(map[string]any{"left": 12.5}); c.Left == nil || *c.Left != 12.5 {
		t.Fatalf("numeric left = %v", c.Left)
	}
	if c := set(map[string]any{"left": "7.25"}); c.Left == nil || *c.Left != 7.25 {
		t.Fatalf("numeric string left = %v", c.Left)
	}
	if c := set(map[string]any{"left": "abc"}); c.Left != nil {
		t.Fatalf("junk string should clear left, got %v", *c.Left)
	}
}

func TestCanvasDropIgnoredPayload(t *testing.T) {
	e := newTestEnv(t)
	id := e.newStrategy(t)

	w, env := e.do(t, http.MethodPost, "/api/v1/strategies/"+id+"/drop", map[string]any{
		"payload": map[string]any{"action": "move", "kind": "PRICE_REF", "id": "ghost"},
		"x":       1, "y": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ignored drop: %d", w.Code)
	}
	if env.Meta["ignored"] != true {
		t.Fatalf("meta = %v, want ignored", env.Meta)
	}
}

func TestExecutionOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.newStrategy(t)
	base := "/api/v1/strategies/" + id

	_, env := e.do(t, http.MethodPost, base+"/blocks", map[string]any{"kind": "ACTION"})
	var act struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &act); err != nil {
		t.Fatal(err)
	}
	w, _ := e.do(t, http.MethodPost, base+"/actions/"+act.ID+"/intents", map[string]any{
		"type": "binance_buy_spot_max_long",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add intent: %d", w.Code)
	}

	w, _ = e.do(t, http.MethodPost, base+"/executions", map[string]any{"actionIds": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty start: %d, want 400", w.Code)
	}

	w, env = e.do(t, http.MethodPost, base+"/executions", map[string]any{"actionIds": []string{act.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	var exec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &exec); err != nil {
		t.Fatal(err)
	}

	_, env = e.do(t, http.MethodGet, base+"/executions/log", nil)
	if env.Meta["total"].(float64) != 2 {
		t.Fatalf("log total = %v, want pending and executing", env.Meta)
	}

	w, _ = e.do(t, http.MethodDelete, "/api/v1/executions/"+exec.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: %d", w.Code)
	}
	w, _ = e.do(t, http.MethodDelete, "/api/v1/executions/"+exec.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("double stop: %d, want 404", w.Code)
	}
}
