package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReplayDecodesEveryLine(t *testing.T) {
	input := strings.Join([]string{
		"# header comment",
		codeA,
		"",
		backHalf + " " + frontHalf,
		frontHalf + "\t" + otherFront,
		"123",
		"a b c",
	}, "\n")

	results, err := replay(context.Background(), strings.NewReader(input), 3)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, 2, results[0].Line)
	assert.Equal(t, codeA, results[0].Result.Code)

	assert.Equal(t, 4, results[1].Line)
	assert.Equal(t, codeA, results[1].Result.Code)
	assert.True(t, results[1].Result.Resolution.Swapped)

	assert.True(t, results[2].Result.Rejected())

	assert.NotEmpty(t, results[3].Error)
	assert.Nil(t, results[3].Result)
	assert.Contains(t, results[4].Error, "expected 1 or 2 fields")
}

func TestSaveReplayedPublishesNewTicketsInOneBatch(t *testing.T) {
	input := strings.Join([]string{
		codeA,
		backHalf + " " + frontHalf,
		codeB,
		frontHalf + " " + otherFront,
	}, "\n")
	results, err := replay(context.Background(), strings.NewReader(input), 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	pub := &memPublisher{}
	saveReplayed(context.Background(), newRecorder(newTestStore(t), pub, nil), results)

	assert.True(t, results[0].Created)
	assert.NotZero(t, results[0].TicketID)
	assert.False(t, results[1].Created)
	assert.Equal(t, results[0].TicketID, results[1].TicketID)
	assert.True(t, results[2].Created)
	assert.Zero(t, results[3].TicketID)
	assert.Empty(t, results[3].Error)

	assert.Equal(t, 1, pub.batches)
	assert.Equal(t, 2, pub.count())
}

func TestShutdownWaitsForInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("done"))
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	type reply struct {
		body string
		err  error
	}
	replies := make(chan reply, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			replies <- reply{err: err}
			return
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		replies <- reply{body: string(raw), err: err}
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdownOnDone(ctx, srv, 5*time.Second))

	got := <-replies
	require.NoError(t, got.err)
	assert.Equal(t, "done", got.body)
}

func TestWriteResultFormats(t *testing.T) {
	res, err := decodeInput(codeA, nil)
	require.NoError(t, err)

	var js bytes.Buffer
	require.NoError(t, writeResult(&js, formatJSON, res))
	assert.Contains(t, js.String(), `"offset_reason": "fixed-42"`)

	var ym bytes.Buffer
	require.NoError(t, writeResult(&ym, formatYAML, res))
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &back))
	assert.Equal(t, codeA, back["code"])
	outcome := back["outcome"].(map[string]any)
	assert.Equal(t, "fixed-42", outcome["offset_reason"])

	assert.Error(t, writeResult(&js, "xml", res))
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# local settings\nBAKEN_TEST_DOTENV_A=\"from-file\"\nBAKEN_TEST_DOTENV_B=from-file\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("BAKEN_TEST_DOTENV_B", "from-env")
	// registers cleanup for a variable loadDotEnv is about to set
	t.Setenv("BAKEN_TEST_DOTENV_A", "")
	require.NoError(t, os.Unsetenv("BAKEN_TEST_DOTENV_A"))

	loadDotEnv(path)
	assert.Equal(t, "from-file", os.Getenv("BAKEN_TEST_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("BAKEN_TEST_DOTENV_B"))

	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func TestDecodeCommandPrintsOutcome(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"decode", "--format", "yaml", codeA})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		decodeFormat = formatJSON
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "offset_reason: fixed-42")
	assert.Contains(t, out.String(), "tansho")
}
