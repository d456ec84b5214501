package main

import (
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"baken/internal/config"
	"baken/internal/publisher"
	"baken/pkg/capture"
	"baken/pkg/ticket"
)

func pad(s string, n int) string { return s + strings.Repeat("0", n-len(s)) }

func counting(from, to int) string {
	var b strings.Builder
	for i := from; i < to; i++ {
		b.WriteByte(byte('0' + i%10))
	}
	return b.String()
}

// Two tickets sharing the printed back half: a 1,200 yen win on horse 7
// and a 500 yen win on horse 3, both Tokyo 2024 kai 2 day 3.
var (
	frontHalf  = pad(pad("105000240203110", ticket.NominalBodyOffset)+"10700012", ticket.FragmentLen)
	otherFront = pad(pad("105000240203120", ticket.NominalBodyOffset)+"10300005", ticket.FragmentLen)
	backHalf   = "07290531840266" + counting(14, ticket.FragmentLen)
	codeA      = frontHalf + backHalf
	codeB      = otherFront + backHalf
)

const testSecret = "test-secret"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)
	s := newStore(db, nil)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// memPublisher records published messages.
type memPublisher struct {
	mu      sync.Mutex
	msgs    []*publisher.Message
	batches int
}

func (p *memPublisher) Publish(_ context.Context, msg *publisher.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *memPublisher) PublishBatch(_ context.Context, msgs []*publisher.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches++
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

// stubEngine returns the same payload for every frame.
type stubEngine struct{ text string }

func (e stubEngine) Name() string { return "stub" }

func (e stubEngine) Detect(context.Context, image.Image) (string, error) {
	if e.text == "" {
		return "", capture.ErrNoCode
	}
	return e.text, nil
}

type testServer struct {
	r     *gin.Engine
	s     *server
	store *Store
	pub   *memPublisher
	token string
}

func setupServer(t *testing.T, detected string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newTestStore(t)
	pub := &memPublisher{}
	detector := capture.NewDetector([]capture.Engine{stubEngine{text: detected}}, []capture.Profile{{MaxDim: 64, CropRatio: 1}}, nil)
	noise := config.DecoderConfig{FirstNoise: ticket.FirstSlotNoise, SecondNoise: ticket.SecondSlotNoise}
	s := newServer(newRecorder(store, pub, nil), detector, []byte(testSecret), noise, nil)
	r := gin.New()
	s.setupRoutes(r)
	token, err := issueToken([]byte(testSecret), "tester", time.Hour)
	require.NoError(t, err)
	return &testServer{r: r, s: s, store: store, pub: pub, token: token}
}

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
