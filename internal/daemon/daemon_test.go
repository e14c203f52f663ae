package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/harun/lineapi/internal/config"
	"github.com/harun/lineapi/internal/logger"
	"github.com/harun/lineapi/pkg/messaging"
	"github.com/harun/lineapi/pkg/webhook"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeReplier struct {
	mu      sync.Mutex
	replies map[string]string
}

func (f *fakeReplier) ReplyMessage(_ context.Context, replyToken string, messages ...messaging.Message) (*messaging.SentMessages, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies == nil {
		f.replies = make(map[string]string)
	}
	f.replies[replyToken] = messages[0].(messaging.TextMessage).Text
	return &messaging.SentMessages{}, nil
}

func (f *fakeReplier) get(token string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.replies[token]
	return text, ok
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Line.ChannelSecret = testSecret
	cfg.Webhook.Host = "127.0.0.1"
	cfg.Webhook.ShutdownTimeoutSeconds = 2
	return cfg
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Console: true})
	require.NoError(t, err)
	return log
}

func createTestDaemon(t *testing.T, cfg *config.Config, options Options) *Daemon {
	t.Helper()
	d, err := New(cfg, testLogger(t), options)
	require.NoError(t, err)
	return d
}

func messageBody(eventID, replyToken, text string) []byte {
	return []byte(fmt.Sprintf(`{"destination":"Ubot","events":[{"type":"message","timestamp":1625665242211,`+
		`"source":{"type":"user","userId":"U1"},"mode":"active","webhookEventId":%q,`+
		`"deliveryContext":{"isRedelivery":false},"replyToken":%q,`+
		`"message":{"id":"M1","type":"text","text":%q}}]}`, eventID, replyToken, text))
}

func post(t *testing.T, h http.Handler, body []byte) webhook.WebhookResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(body, testSecret))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp webhook.WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := New(cfg, testLogger(t), Options{})
	assert.ErrorContains(t, err, "channel_secret")
}

func TestEchoBotReplies(t *testing.T) {
	replier := &fakeReplier{}
	d := createTestDaemon(t, testConfig(), Options{Replier: replier})
	t.Cleanup(d.release)

	require.NotNil(t, d.Bot())

	resp := post(t, d.Handler(), messageBody("E1", "R1", "echo hi there"))
	assert.True(t, resp.OK())
	assert.Equal(t, 1, resp.ProcessedEvents)

	require.Eventually(t, func() bool {
		_, ok := replier.get("R1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	text, _ := replier.get("R1")
	assert.Equal(t, "🔄 You said: hi there", text)
}

func TestEchoBotDisabledWithoutToken(t *testing.T) {
	d := createTestDaemon(t, testConfig(), Options{})
	t.Cleanup(d.release)

	assert.Nil(t, d.Bot())
	assert.Equal(t, 0, d.Dispatcher().HandlerCount())

	// Deliveries are still acknowledged
	resp := post(t, d.Handler(), messageBody("E1", "R1", "hello"))
	assert.Equal(t, 1, resp.ProcessedEvents)
}

func TestMessagingClientFromConfig(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sentMessages":[{"id":"1","quoteToken":"q"}]}`))
	}))
	defer api.Close()

	cfg := testConfig()
	cfg.Line.ChannelAccessToken = "test-token"
	cfg.Line.APIBaseURL = api.URL
	d := createTestDaemon(t, cfg, Options{})
	t.Cleanup(d.release)

	post(t, d.Handler(), messageBody("E1", "R1", "status"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return auth == "Bearer test-token"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	d := createTestDaemon(t, testConfig(), Options{Replier: &fakeReplier{}})
	t.Cleanup(d.release)

	post(t, d.Handler(), messageBody("E1", "R1", "hello"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	d.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "line_webhook_deliveries_total")
	assert.Contains(t, w.Body.String(), `line_webhook_events_total{kind="message",outcome="processed"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	d := createTestDaemon(t, cfg, Options{})
	t.Cleanup(d.release)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	d.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedisDeduplication(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	// Two replicas sharing one redis
	first := createTestDaemon(t, cfg, Options{})
	t.Cleanup(first.release)
	second := createTestDaemon(t, cfg, Options{})
	t.Cleanup(second.release)

	body := messageBody("E-shared", "R1", "hello")
	assert.Equal(t, 1, post(t, first.Handler(), body).ProcessedEvents)
	assert.Equal(t, 0, post(t, second.Handler(), body).ProcessedEvents)

	assert.True(t, mr.Exists("line:webhook:E-shared"))
}

func TestRedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(cfg, testLogger(t), Options{})
	assert.ErrorContains(t, err, "redis")
}

func TestNATSRelay(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(10*time.Second))
	t.Cleanup(ns.Shutdown)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	received := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("bot.events.>", received)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	cfg := testConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.URL = ns.ClientURL()
	cfg.NATS.SubjectPrefix = "bot.events"
	d := createTestDaemon(t, cfg, Options{})
	t.Cleanup(d.release)

	post(t, d.Handler(), messageBody("E1", "R1", "hello"))

	select {
	case msg := <-received:
		assert.Equal(t, "bot.events.message", msg.Subject)
		var relayed map[string]interface{}
		require.NoError(t, json.Unmarshal(msg.Data, &relayed))
		assert.Equal(t, "message", relayed["kind"])
		assert.Equal(t, "E1", relayed["eventId"])
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Webhook.Port = freePort(t)
	pidFile := t.TempDir() + "/lineapi.pid"

	d := createTestDaemon(t, cfg, Options{PIDFile: pidFile, Replier: &fakeReplier{}})

	assert.False(t, d.Status().Running)
	require.NoError(t, d.Start())
	assert.True(t, d.Status().Running)
	assert.Error(t, d.Start(), "second start fails")
	assert.True(t, IsRunning(pidFile))

	url := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Webhook.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)
	assert.False(t, IsRunning(pidFile))
	assert.Error(t, d.Stop(), "second stop fails")
}

func TestAuditLogRecordsRejections(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.AuditFile = filepath.Join(t.TempDir(), "audit.log")
	d := createTestDaemon(t, cfg, Options{Replier: &fakeReplier{}})

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(messageBody("E1", "R1", "hi")))
	req.Header.Set(webhook.SignatureHeader, "forged")
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	d.release()

	data, err := os.ReadFile(cfg.Logging.AuditFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"delivery_rejected"`)
	assert.Contains(t, string(data), `"type":"security"`)
}

func TestNewRejectsHealthRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Webhook.Path = "/health"

	var err error
	assert.NotPanics(t, func() {
		_, err = New(cfg, testLogger(t), Options{Replier: &fakeReplier{}})
	})
	assert.ErrorContains(t, err, "reserved")
}
