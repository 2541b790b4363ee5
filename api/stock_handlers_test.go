package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mellovesfromage/warehouse-system/report"
	"github.com/mellovesfromage/warehouse-system/stock"
)

func TestGetStock_SeededBalances(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	tests := []struct {
		name   string
		path   string
		status int
		qty    int64
	}{
		{"central stock", "/api/stock/1/4", http.StatusOK, 2543},
		{"sub stock", "/api/stock/2/16", http.StatusOK, 8},
		{"known pair never moved", "/api/stock/2/18", http.StatusOK, 0},
		{"unknown warehouse", "/api/stock/9/1", http.StatusNotFound, 0},
		{"unknown product", "/api/stock/1/99", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, managerID, nil)

			requireStatus(t, rec, tt.status)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.qty, decode[StockLevelDTO](t, rec).Quantity)
			}
		})
	}
}

func TestListStock_OneRowPerNonZeroKey(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	levels := decode[[]StockLevelDTO](t, env.do(t, http.MethodGet, "/api/stock", managerID, nil))

	assert.Len(t, levels, 19)
	assert.Equal(t, "1", levels[0].WarehouseID)
}

func TestAdjustStock(t *testing.T) {
	env := newTestEnv(t, stock.Strict)

	// WHEN: Stock is added
	rec := env.do(t, http.MethodPost, "/api/stock/adjust", managerID, AdjustRequest{
		WarehouseID: "2", ProductID: "5", Delta: 30, Note: "delivery",
	})

	// THEN: The movement carries the new balance
	requireStatus(t, rec, http.StatusCreated)
	m := decode[stock.Movement](t, rec)
	assert.Equal(t, stock.MoveAdjustment, m.Kind)
	assert.Equal(t, int64(30), m.BalanceAfter)
	assert.Equal(t, managerID, m.Actor.ID)
}

func TestAdjustStock_ValidationDetails(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	rec := env.do(t, http.MethodPost, "/api/stock/adjust", managerID, map[string]any{
		"warehouse_id": "1",
		"kind":         "theft",
	})

	requireStatus(t, rec, http.StatusBadRequest)
	resp := decode[struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "invalid_input", resp.Code)
	assert.Equal(t, map[string]string{
		"product_id": "required",
		"delta":      "required",
		"kind":       "oneof",
	}, resp.Details)
}

func TestAdjustStock_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	req := httptest.NewRequest(http.MethodPost, "/api/stock/adjust", bytes.NewBufferString(`{"warehouse_id":`))
	req.Header.Set(ActorHeader, managerID)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	requireStatus(t, rec, http.StatusBadRequest)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "invalid JSON")
}

func TestTransferStock_StrictShortfall(t *testing.T) {
	env := newTestEnv(t, stock.Strict)

	// GIVEN: Product 2 has no stock anywhere
	// WHEN: A transfer is attempted
	rec := env.do(t, http.MethodPost, "/api/stock/transfer", managerID, TransferRequest{
		FromWarehouseID: "1", ToWarehouseID: "2", ProductID: "2", Quantity: 5,
	})

	// THEN: 422 with the shortfall, and no movements were written
	requireStatus(t, rec, http.StatusUnprocessableEntity)
	resp := decode[struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	}](t, rec)
	assert.Equal(t, "insufficient_stock", resp.Code)
	assert.EqualValues(t, 0, resp.Details["available"])
	assert.EqualValues(t, 5, resp.Details["requested"])
	assert.Equal(t, 19, env.movs.Len())
}

func TestTransferStock_SameWarehouseRejected(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	rec := env.do(t, http.MethodPost, "/api/stock/transfer", managerID, TransferRequest{
		FromWarehouseID: "1", ToWarehouseID: "1", ProductID: "4", Quantity: 5,
	})

	requireStatus(t, rec, http.StatusBadRequest)
}

func TestTransferStock_MovesBothSides(t *testing.T) {
	env := newTestEnv(t, stock.Strict)

	rec := env.do(t, http.MethodPost, "/api/stock/transfer", managerID, TransferRequest{
		FromWarehouseID: "1", ToWarehouseID: "2", ProductID: "4", Quantity: 43,
	})

	requireStatus(t, rec, http.StatusCreated)
	resp := decode[TransferResponse](t, rec)
	assert.Equal(t, int64(2500), resp.Out.BalanceAfter)
	assert.Equal(t, int64(63), resp.In.BalanceAfter)
	assert.Equal(t, resp.Out.ReferenceID, resp.In.ReferenceID)
}

func TestListMovements_Filters(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)
	rec := env.do(t, http.MethodPost, "/api/stock/transfer", managerID, TransferRequest{
		FromWarehouseID: "1", ToWarehouseID: "2", ProductID: "4", Quantity: 1,
	})
	requireStatus(t, rec, http.StatusCreated)
	ref := decode[TransferResponse](t, rec).Out.ReferenceID

	byRef := decode[[]stock.Movement](t, env.do(t, http.MethodGet, "/api/movements?reference="+ref, managerID, nil))
	require.Len(t, byRef, 2)
	assert.Equal(t, stock.MoveTransferIn, byRef[0].Kind, "newest first")

	limited := decode[[]stock.Movement](t, env.do(t, http.MethodGet, "/api/movements?kind=adjustment&limit=3", managerID, nil))
	assert.Len(t, limited, 3)

	none := env.do(t, http.MethodGet, "/api/movements?reference=missing", managerID, nil)
	requireStatus(t, none, http.StatusOK)
	assert.JSONEq(t, `[]`, none.Body.String())

	bad := env.do(t, http.MethodGet, "/api/movements?kind=theft", managerID, nil)
	requireStatus(t, bad, http.StatusBadRequest)
}

func TestExportStock_Workbook(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	rec := env.do(t, http.MethodGet, "/api/stock/export", managerID, nil)

	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stock_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.StockSheet)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "SKU", rows[0][0])
}

func TestExportMovements_Workbook(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	rec := env.do(t, http.MethodGet, "/api/movements/export?warehouse=2", managerID, nil)

	requireStatus(t, rec, http.StatusOK)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.MovementSheet)
	require.NoError(t, err)
	// header + the six opening movements for the Sub Warehouse
	assert.Len(t, rows, 7)
}

func TestReconcile_AdminOnly(t *testing.T) {
	env := newTestEnv(t, stock.Permissive)

	rec := env.do(t, http.MethodPost, "/api/admin/reconcile", managerID, nil)
	requireStatus(t, rec, http.StatusForbidden)

	rec = env.do(t, http.MethodPost, "/api/admin/reconcile", adminID, nil)
	requireStatus(t, rec, http.StatusOK)
	rep := decode[stock.ReconcileReport](t, rec)
	assert.Equal(t, 19, rep.Movements)
	assert.Empty(t, rep.Drift)

	runs := env.do(t, http.MethodGet, "/api/admin/reconcile/runs", adminID, nil)
	requireStatus(t, runs, http.StatusOK)
	assert.JSONEq(t, `[]`, runs.Body.String())
}
