// Package integration runs the registration pipeline end to end against live
// PostgreSQL and MySQL databases, with an in-memory broker and Redis.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lottery/internal/app"
	"github.com/allisson/lottery/internal/broker"
	"github.com/allisson/lottery/internal/config"
	"github.com/allisson/lottery/internal/lottery/domain"
	"github.com/allisson/lottery/internal/lottery/http/dto"
	"github.com/allisson/lottery/internal/testutil"
)

const winnerLimit = 2

// integrationTestContext holds all dependencies and state for one driver run.
type integrationTestContext struct {
	container  *app.Container
	server     *httptest.Server
	redis      *miniredis.Miniredis
	dbDriver   string
	campaignID int64
}

func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := testutil.SetupDB(t, dbDriver)
	campaignID := testutil.CreateTestCampaign(t, db, dbDriver, winnerLimit)
	testutil.TeardownDB(t, db)

	dsn := testutil.GetPostgresTestDSN()
	if dbDriver == "mysql" {
		dsn = testutil.GetMySQLTestDSN()
	}

	redis := miniredis.RunT(t)
	topic := fmt.Sprintf("mem://lottery-%s-%s", dbDriver, uuid.NewString())

	cfg := &config.Config{
		DBDriver:                dbDriver,
		DBConnectionString:      dsn,
		DBMaxOpenConnections:    10,
		DBMaxIdleConnections:    5,
		DBConnMaxLifetime:       time.Hour,
		ServerHost:              "localhost",
		ServerPort:              8080,
		LogLevel:                "error",
		RedisURL:                "redis://" + redis.Addr() + "/0",
		BrokerDriver:            broker.DriverPubSub,
		PubSubTopicURL:          topic,
		PubSubSubscriptionURL:   topic,
		IngestQueueCapacity:     100,
		IngestBatchSize:         50,
		IngestFlushInterval:     50 * time.Millisecond,
		IngestRetryDelay:        50 * time.Millisecond,
		ProcessorCampaignID:     campaignID,
		ProcessorBatchSize:      20,
		ProcessorPollInterval:   20 * time.Millisecond,
		ProcessorWinnerLimit:    winnerLimit,
		ProcessorMaxParallelism: 4,
		ProcessorCounterKey:     "lottery:success_count",
		ProcessorStuckThreshold: time.Hour,
		ProcessorErrorDelay:     50 * time.Millisecond,
		StatusTTL:               30 * 24 * time.Hour,
		CampaignCacheDefaultTTL: 24 * time.Hour,
		CampaignLocalCacheTTL:   30 * time.Second,
	}

	container := app.NewContainer(cfg)
	t.Cleanup(func() {
		_ = container.Shutdown(context.Background())
	})

	// The consumer opens the producer first so the in-memory topic exists
	// before its subscription.
	_, err := container.Consumer()
	require.NoError(t, err, "failed to open consumer")

	server, err := container.HTTPServer()
	require.NoError(t, err, "failed to build http server")

	httpServer := httptest.NewServer(server.GetHandler())
	t.Cleanup(httpServer.Close)

	return &integrationTestContext{
		container:  container,
		server:     httpServer,
		redis:      redis,
		dbDriver:   dbDriver,
		campaignID: campaignID,
	}
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	_ = resp.Body.Close()

	return resp, respBody
}

func (ctx *integrationTestContext) register(t *testing.T, nationalCode string) uuid.UUID {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodPost, "/api/lottery/register", dto.RegisterRequest{
		FirstName:    "Sara",
		LastName:     "Ahmadi",
		Phone:        "+989121234567",
		NationalCode: nationalCode,
		CampaignID:   ctx.campaignID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out dto.RegisterResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "/api/lottery/status/"+out.RequestID, resp.Header.Get("Location"))
	return uuid.MustParse(out.RequestID)
}

func (ctx *integrationTestContext) status(t *testing.T, requestID uuid.UUID) (int, dto.StatusResponse) {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodGet, "/api/lottery/status/"+requestID.String(), nil)

	var out dto.StatusResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

// startPipelines runs ingestion and the processor until the returned stop is called.
func (ctx *integrationTestContext) startPipelines(t *testing.T) func() {
	t.Helper()

	ingest, err := ctx.container.IngestUseCase()
	require.NoError(t, err)
	processor, err := ctx.container.ProcessorUseCase()
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = ingest.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		_ = processor.Run(runCtx)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

func TestRegistrationPipeline(t *testing.T) {
	for _, dbDriver := range []string{"postgres", "mysql"} {
		t.Run(dbDriver, func(t *testing.T) {
			testutil.SkipIfNoDB(t, dbDriver)

			ctx := setupIntegrationTest(t, dbDriver)

			t.Run("health and readiness", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/health", nil)
				assert.Equal(t, http.StatusOK, resp.StatusCode)

				resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", nil)
				assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			})

			t.Run("unknown campaign is rejected", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodPost, "/api/lottery/register", dto.RegisterRequest{
					FirstName:    "Ali",
					LastName:     "Rezaei",
					Phone:        "09121234567",
					NationalCode: "0012345678",
					CampaignID:   ctx.campaignID + 1000,
				})
				assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			})

			const submissions = 6
			requestIDs := make([]uuid.UUID, 0, submissions)
			for i := range submissions {
				requestIDs = append(requestIDs, ctx.register(t, fmt.Sprintf("00123456%02d", i)))
			}

			t.Run("pending before ingestion comes from the cache", func(t *testing.T) {
				code, status := ctx.status(t, requestIDs[0])
				require.Equal(t, http.StatusOK, code)
				assert.Equal(t, domain.StatusPending, status.Status)
				assert.NotNil(t, status.CreatedAt)
				assert.Nil(t, status.ProcessedAt)
			})

			producer, err := ctx.container.Producer()
			require.NoError(t, err)
			require.NoError(t, producer.Publish(context.Background(), []byte("junk"), []byte("{not json")))

			stop := ctx.startPipelines(t)
			defer stop()

			t.Run("every registration reaches a terminal status", func(t *testing.T) {
				require.Eventually(t, func() bool {
					for _, id := range requestIDs {
						code, status := ctx.status(t, id)
						if code != http.StatusOK || !status.Status.Terminal() {
							return false
						}
					}
					return true
				}, 15*time.Second, 50*time.Millisecond)

				db, err := ctx.container.DB()
				require.NoError(t, err)
				assert.Equal(t, submissions, testutil.CountRegistrations(t, db, dbDriver, ctx.campaignID))

				winners := 0
				for _, id := range requestIDs {
					code, status := ctx.status(t, id)
					require.Equal(t, http.StatusOK, code)
					assert.NotNil(t, status.ProcessedAt)
					if testutil.GetRegistrationStatus(t, db, dbDriver, id) == domain.StatusSuccess {
						winners++
					}
				}
				assert.LessOrEqual(t, winners, winnerLimit)
			})

			t.Run("cached projection follows the decision", func(t *testing.T) {
				require.Eventually(t, func() bool {
					for _, id := range requestIDs {
						cached := ctx.redis.HGet(domain.StatusCacheKey(id), domain.StatusFieldStatus)
						if cached != "Success" && cached != "Failed" {
							return false
						}
					}
					return true
				}, 5*time.Second, 20*time.Millisecond)
			})

			t.Run("unknown request id", func(t *testing.T) {
				code, _ := ctx.status(t, uuid.Must(uuid.NewV7()))
				assert.Equal(t, http.StatusNotFound, code)
			})
		})
	}
}
