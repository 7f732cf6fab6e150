package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/auction-service/internal/api/http/handlers"
	"github.com/spec-kit/auction-service/internal/auth"
	"github.com/spec-kit/auction-service/internal/clock"
	"github.com/spec-kit/auction-service/internal/observability"
	"github.com/spec-kit/auction-service/internal/repository/memory"
	"github.com/spec-kit/auction-service/internal/service"
	"github.com/spec-kit/auction-service/internal/worker"
)

type testServer struct {
	app       *fiber.App
	tokens    *auth.TokenManager
	clock     *clock.Fake
	scheduler *worker.AuctionScheduler
	notifier  *service.NotificationService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	store := memory.NewStore()
	fake := clock.NewFake(time.Now().UTC())

	ledger := service.NewBidLedger(service.BidLedgerDependencies{BidRepo: store.Bids(), Logger: logger, Metrics: metrics})
	engine := service.NewAutoBidEngine(service.AutoBidDependencies{
		AutoBidRepo: store.AutoBids(),
		AuctionRepo: store.Auctions(),
		Reader:      ledger,
		Writer:      ledger,
		Logger:      logger,
		Metrics:     metrics,
	})
	auctions := service.NewAuctionService(service.AuctionDependencies{AuctionRepo: store.Auctions(), Logger: logger})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Logger:           logger,
		Metrics:          metrics,
	})
	scheduler := worker.NewAuctionScheduler(worker.SchedulerDependencies{
		AuctionRepo: store.Auctions(),
		BidReader:   ledger,
		Notifier:    notifications,
		Clock:       fake,
		Logger:      logger,
		Metrics:     metrics,
	})

	tokens := auth.NewTokenManager("test-secret", 10)
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("auction-service", "test", map[string]handlers.Pinger{"postgres": nil}, nil),
		Auctions:       handlers.NewAuctionsHandler(auctions, ledger, engine),
		Notifications:  handlers.NewNotificationsHandler(notifications, service.NewStatisticsService(store.Statistics())),
		Metrics:        observability.Handler(registry),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, nil),
	})

	return &testServer{app: app, tokens: tokens, clock: fake, scheduler: scheduler, notifier: notifications}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(userID)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, userID))
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func errorReason(body map[string]any) any {
	errBody, _ := body["error"].(map[string]any)
	return errBody["reason"]
}

func TestAuctionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/v1/auctions", "owner", map[string]any{
		"title":          "Vintage radio",
		"description":    "Works, minor scratches",
		"starting_price": "100",
		"ends_at":        time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	auctionID := body["data"].(map[string]any)["id"].(string)
	bidsPath := "/api/v1/auctions/" + auctionID + "/bids"

	status, body = s.do(t, fiber.MethodPost, bidsPath, "owner", map[string]any{"amount": "150"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "OwnerCannotBid", errorReason(body))

	status, _ = s.do(t, fiber.MethodPost, bidsPath, "alice", map[string]any{"amount": "150"})
	require.Equal(t, fiber.StatusCreated, status)

	status, body = s.do(t, fiber.MethodPost, bidsPath, "bob", map[string]any{"amount": "140"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "BidTooLow", errorReason(body))

	status, body = s.do(t, fiber.MethodPost, bidsPath, "bob", map[string]any{"amount": 200})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "WINNING", body["data"].(map[string]any)["status"])

	status, body = s.do(t, fiber.MethodGet, bidsPath, "carol", nil)
	require.Equal(t, fiber.StatusOK, status)
	bids := body["data"].([]any)
	require.Len(t, bids, 2)
	assert.Equal(t, "bob", bids[0].(map[string]any)["bidder_id"])
	assert.Equal(t, "OUTBID", bids[1].(map[string]any)["status"])

	status, body = s.do(t, fiber.MethodPost, "/api/v1/auctions/"+auctionID+"/auto-bids", "carol",
		map[string]any{"increment_amount": "50", "max_amount": "50"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "MaxMustExceedIncrement", errorReason(body))

	s.clock.Set(time.Now().Add(2 * time.Hour))
	result, err := s.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClosedCount)
	s.notifier.Wait()

	status, body = s.do(t, fiber.MethodGet, "/api/v1/auctions/"+auctionID, "carol", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "CLOSED", body["data"].(map[string]any)["status"])
	assert.Equal(t, "200", body["data"].(map[string]any)["closed_price"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/notifications", "bob", nil)
	require.Equal(t, fiber.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	data := items[0].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "WON", data["bidStatus"])
	assert.EqualValues(t, 200, data["outcome"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/notifications", "alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	data = body["data"].([]any)[0].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "CLOSED", data["outcome"])

	status, body = s.do(t, fiber.MethodDelete, "/api/v1/notifications", "alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["deleted"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/statistics", "owner", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "200", body["data"].(map[string]any)["earnings"])
	assert.EqualValues(t, 1, body["data"].(map[string]any)["posted_auctions"])

	status, body = s.do(t, fiber.MethodPost, bidsPath, "carol", map[string]any{"amount": "500"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "AuctionNotActive", errorReason(body))
}

func (s *testServer) createAuction(t *testing.T, ownerID, title string) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/v1/auctions", ownerID, map[string]any{
		"title":          title,
		"description":    "Listed for a test",
		"starting_price": "100",
		"ends_at":        time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["data"].(map[string]any)["id"].(string)
}

func TestBidsStayOnTheirAuctionAcrossRequests(t *testing.T) {
	s := newTestServer(t)

	first := s.createAuction(t, "owner", "Desk lamp")
	second := s.createAuction(t, "owner", "Armchair")

	status, _ := s.do(t, fiber.MethodPost, "/api/v1/auctions/"+first+"/bids", "alice", map[string]any{"amount": "150"})
	require.Equal(t, fiber.StatusCreated, status)
	for i, bidder := range []string{"bob", "carol", "dave"} {
		status, _ = s.do(t, fiber.MethodPost, "/api/v1/auctions/"+second+"/bids", bidder,
			map[string]any{"amount": 110 + i*10})
		require.Equal(t, fiber.StatusCreated, status)
	}

	s.clock.Set(time.Now().Add(2 * time.Hour))
	result, err := s.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ClosedCount)
	s.notifier.Wait()

	status, body := s.do(t, fiber.MethodGet, "/api/v1/auctions/"+first, "alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "150", body["data"].(map[string]any)["closed_price"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/auctions/"+second, "alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "130", body["data"].(map[string]any)["closed_price"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/auctions/"+first+"/bids", "alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	bids := body["data"].([]any)
	require.Len(t, bids, 1)
	assert.Equal(t, "alice", bids[0].(map[string]any)["bidder_id"])
	assert.Equal(t, "WON", bids[0].(map[string]any)["status"])
}

func TestAuthAndErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, fiber.MethodGet, "/api/v1/auctions", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := s.do(t, fiber.MethodPost, "/api/v1/auctions/missing/bids", "alice", map[string]any{"amount": "10"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "AuctionNotFound", errorReason(body))

	status, _ = s.do(t, fiber.MethodGet, "/api/v1/auctions/missing", "alice", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = s.do(t, fiber.MethodGet, "/api/v1/auctions", "alice", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "memory", body["dependencies"].(map[string]any)["postgres"])

	status, _ = s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}
