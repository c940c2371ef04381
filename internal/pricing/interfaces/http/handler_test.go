package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionpricing/internal/pricing/application"
	"github.com/wyfcoding/optionpricing/internal/pricing/domain"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := domain.NewEngine(domain.DefaultEngineConfig())
	require.NoError(t, err)
	svc := application.NewPricingService(engine, nil, nil, application.ServiceConfig{
		Precision:        4,
		BatchConcurrency: 2,
		MaxBatchSize:     10,
	})

	r := gin.New()
	NewPricingHandler(svc).RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPriceEndpoint(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		body string
		want float64
	}{
		{`{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"call"}`, 8.916037},
		{`{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"put","greek":"price"}`, 6.935905},
		{`{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"CALL","greek":"delta"}`, 0.5792597},
		{`{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"call","greek":"gamma"}`, 0.019552135},
		{`{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"call","greek":"vega"}`, 0.391042694},
	}
	for _, tc := range cases {
		w := post(t, r, "/price", tc.body)
		require.Equal(t, http.StatusOK, w.Code, tc.body)
		assert.InDelta(t, tc.want, decode(t, w)["value"], 1e-5, tc.body)
	}
}

func TestPriceEndpointErrors(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"S":100,`, http.StatusBadRequest},
		{"zero sigma", `{"S":100,"K":100,"T":1,"sigma":0,"optionType":"call"}`, http.StatusBadRequest},
		{"missing spot", `{"K":100,"T":1,"sigma":0.2,"optionType":"call"}`, http.StatusBadRequest},
		{"unknown type", `{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"straddle"}`, http.StatusBadRequest},
		{"unknown greek", `{"S":100,"K":100,"T":1,"sigma":0.2,"optionType":"call","greek":"vanna"}`, http.StatusBadRequest},
		{"overflow", `{"S":100,"K":100,"T":1.7976931348623157e308,"sigma":10,"optionType":"call"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, r, "/price", tc.body)
			assert.Equal(t, tc.code, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestQuoteEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := post(t, r, "/api/v1/pricing/option/quote",
		`{"symbol":"AAPL-C-100","option_type":"call","underlying_price":100,"strike_price":100,"time_to_expiry":1,"volatility":0.2}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "AAPL-C-100", body["symbol"])
	assert.Equal(t, "CALL", body["option_type"])
	assert.Equal(t, 8.916, body["price"])
	assert.Equal(t, 0.5793, body["delta"])
	assert.Equal(t, 0.0196, body["gamma"])
	assert.Equal(t, 0.391, body["vega"])
	assert.Equal(t, "BlackScholes", body["pricing_model"])
}

func TestBatchEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := post(t, r, "/api/v1/pricing/option/batch", `{"batch_id":"b-1","contracts":[
		{"symbol":"A","option_type":"call","underlying_price":100,"strike_price":100,"time_to_expiry":1,"volatility":0.2},
		{"symbol":"B","option_type":"put","underlying_price":100,"strike_price":0,"time_to_expiry":1,"volatility":0.2}
	]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res application.BatchQuoteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "b-1", res.BatchID)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	require.Len(t, res.Results, 2)
	assert.Equal(t, 8.916, res.Results[0].Quote.Price)
	assert.Equal(t, "INVALID_INPUT", res.Results[1].ErrorCode)

	w = post(t, r, "/api/v1/pricing/option/batch", `{"contracts":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(&domain.InputError{Field: "volatility"}))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(domain.ErrNumericOverflow))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
