package main

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"baken/internal/config"
	"baken/models"
	"baken/pkg/capture"
	"baken/pkg/ticket"
)

// setupPostgresServer runs the API against a real Postgres database.
// Integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
func setupPostgresServer(t *testing.T) *testServer {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN is not set")
	}
	gin.SetMode(gin.TestMode)
	store, err := openStore(config.StoreConfig{Driver: "postgres", DatabaseURL: dsn, AutoMigrate: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		store.db.Where("code IN ?", []string{codeA, codeB}).Delete(&models.Ticket{})
		_ = store.Close()
	})
	// leftovers from an aborted run would make the first save look like a re-save
	store.db.Where("code IN ?", []string{codeA, codeB}).Delete(&models.Ticket{})

	pub := &memPublisher{}
	noise := config.DecoderConfig{FirstNoise: ticket.FirstSlotNoise, SecondNoise: ticket.SecondSlotNoise}
	s := newServer(newRecorder(store, pub, nil), capture.NewDetector(nil, nil, nil), []byte(testSecret), noise, nil)
	r := gin.Default()
	s.setupRoutes(r)
	token, err := issueToken([]byte(testSecret), "integration", time.Hour)
	require.NoError(t, err)
	return &testServer{r: r, s: s, store: store, pub: pub, token: token}
}

func TestFullFlow(t *testing.T) {
	ts := setupPostgresServer(t)

	// 1. Open a scan session
	resp := ts.post(t, "/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	id, _ := decodeJSON(t, resp)["id"].(string)

	// 2. Feed the back half, then the front half
	resp = ts.post(t, "/sessions/"+id+"/fragments", map[string]string{"digits": backHalf, "engine": "qr"})
	if resp.Code != http.StatusOK {
		t.Fatalf("first fragment failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = ts.post(t, "/sessions/"+id+"/fragments", map[string]string{"digits": frontHalf, "engine": "qr"})
	if resp.Code != http.StatusOK {
		t.Fatalf("second fragment failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	body := decodeJSON(t, resp)
	if created, _ := body["created"].(bool); !created {
		t.Fatalf("expected a new ticket: %+v", body)
	}
	tk, _ := body["ticket"].(map[string]any)

	// 3. Save another ticket directly and list both
	resp = ts.post(t, "/tickets", map[string]string{"code": codeB, "source": "integration"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create ticket failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = ts.get("/tickets?limit=2")
	if resp.Code != http.StatusOK {
		t.Fatalf("list tickets failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Fetch the scanned ticket with its sources
	resp = ts.get(fmt.Sprintf("/tickets/%v", tk["id"]))
	if resp.Code != http.StatusOK {
		t.Fatalf("get ticket failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	stored := decodeJSON(t, resp)
	if sources, _ := stored["sources"].([]any); len(sources) != 2 {
		t.Fatalf("expected 2 scan sources, got %+v", stored["sources"])
	}
	if ts.pub.count() != 2 {
		t.Fatalf("expected 2 published tickets, got %d", ts.pub.count())
	}
}
