package commands //nolint:testpackage // overrides the .env path of the command.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chatfang/pkg/config"
	"github.com/Sumatoshi-tech/chatfang/pkg/ingest"
	"github.com/Sumatoshi-tech/chatfang/pkg/report"
)

const header = "AuthorID,Author,Date,Content,Attachments,Reactions\n"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(header+body), 0o600))
	}

	return dir
}

func newTestCommand(t *testing.T, out *bytes.Buffer, args ...string) *cobra.Command {
	t.Helper()

	cmd := NewRunCommand()
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().Bool("quiet", true, "")

	// No .env, no config search outside the test's own files.
	cfgPath := filepath.Join(t.TempDir(), "chatfang.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())

	return cmd
}

func TestRunCommand_EndToEnd(t *testing.T) {
	t.Parallel()

	src := writeSource(t, map[string]string{
		"general.csv": "42,alice,05-Mar-21 09:41 PM,hello world,,\n" +
			"42,alice,05-Mar-21 09:42 PM,hello?,,\n",
		"random.csv": "7,bob,06-Mar-21 10:02 AM,hi there,https://cdn.example.com/a.png,👍 (2)\n",
	})
	out := filepath.Join(t.TempDir(), "out")

	var stdout bytes.Buffer

	cmd := newTestCommand(t, &stdout,
		"-s", src, "-e", out, "-w", "3", "--format", "json,csv,text", "--no-color")
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(out, report.JSONName))
	require.NoError(t, err)

	var summary report.Summary
	require.NoError(t, json.Unmarshal(data, &summary))

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, map[uint64]string{1: "general", 2: "random"}, summary.Channels)
	assert.Equal(t, uint64(3), summary.Server.Stats.Messages)
	assert.Equal(t, uint64(5), summary.Server.Stats.Words)
	assert.Equal(t, uint64(1), summary.Server.Stats.Attachments)
	require.Len(t, summary.Authors, 2)
	assert.Equal(t, "bob", summary.Authors[0].Name)
	assert.Equal(t, "alice", summary.Authors[1].Name)

	_, err = os.Stat(filepath.Join(out, report.ServerCSVName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "authors", "alice.csv"))
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Chat Statistics")
}

func TestRunCommand_ExportDefaultsToSource(t *testing.T) {
	t.Parallel()

	src := writeSource(t, map[string]string{"c.csv": "1,a,05-Mar-21 09:41 PM,x,,\n"})

	cmd := newTestCommand(t, &bytes.Buffer{}, "-s", src, "--format", "yaml")
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(src, report.YAMLName))
	require.NoError(t, err)
}

func TestRunCommand_MissingSource(t *testing.T) {
	t.Parallel()

	cmd := newTestCommand(t, &bytes.Buffer{})

	require.ErrorIs(t, cmd.Execute(), config.ErrMissingSource)
}

func TestRunCommand_UnknownFormat(t *testing.T) {
	t.Parallel()

	src := writeSource(t, map[string]string{"c.csv": ""})

	cmd := newTestCommand(t, &bytes.Buffer{}, "-s", src, "--format", "pdf")

	require.ErrorIs(t, cmd.Execute(), config.ErrInvalidFormat)
}

func TestRunCommand_MalformedInputFails(t *testing.T) {
	t.Parallel()

	src := writeSource(t, map[string]string{"c.csv": "1,a,not a date,x,,\n"})
	out := t.TempDir()

	cmd := newTestCommand(t, &bytes.Buffer{}, "-s", src, "-e", out, "--format", "json")
	err := cmd.Execute()

	var recErr *ingest.RecordError
	require.ErrorAs(t, err, &recErr)

	_, statErr := os.Stat(filepath.Join(out, report.JSONName))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunCommand_MetricsTextfile(t *testing.T) {
	t.Parallel()

	src := writeSource(t, map[string]string{"c.csv": "1,a,05-Mar-21 09:41 PM,x,,\n"})
	prom := filepath.Join(t.TempDir(), "chatfang.prom")

	cmd := newTestCommand(t, &bytes.Buffer{}, "-s", src, "--format", "json", "--metrics-textfile", prom)
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chatfang_messages")
}

func TestExecute_DownloadsAttachments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "png")
	}))
	t.Cleanup(srv.Close)

	src := writeSource(t, map[string]string{
		"c.csv": "1,alice,05-Mar-21 09:41 PM,look,\"" + srv.URL + "/img/cat.png\",\n",
	})
	out := t.TempDir()

	v := config.New()
	v.Set("source_dir", src)
	v.Set("export_dir", out)
	v.Set("report.formats", []string{"json"})
	v.Set("attachments.enabled", true)
	v.Set("attachments.rate_per_second", 0)

	cfgPath := filepath.Join(t.TempDir(), "chatfang.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	cfg, err := config.Load(v, cfgPath)
	require.NoError(t, err)

	err = Execute(context.Background(), cfg, Deps{Logger: quietLogger, Out: io.Discard, RunID: "r"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "attachments", "alice-cat.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestExecute_AnonymizedAttachmentNames(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "png")
	}))
	t.Cleanup(srv.Close)

	src := writeSource(t, map[string]string{
		"c.csv": "1,alice,05-Mar-21 09:41 PM,look,\"" + srv.URL + "/img/cat.png\",\n" +
			"2,bob,05-Mar-21 09:42 PM,mine,\"" + srv.URL + "/img/dog.png\",\n",
	})
	out := t.TempDir()

	v := config.New()
	v.Set("source_dir", src)
	v.Set("export_dir", out)
	v.Set("report.formats", []string{"json"})
	v.Set("report.anonymize", true)
	v.Set("attachments.enabled", true)
	v.Set("attachments.rate_per_second", 0)

	cfgPath := filepath.Join(t.TempDir(), "chatfang.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	cfg, err := config.Load(v, cfgPath)
	require.NoError(t, err)

	err = Execute(context.Background(), cfg, Deps{Logger: quietLogger, Out: io.Discard, RunID: "r"})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(out, "attachments"))
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.ElementsMatch(t, []string{"Author-A-cat.png", "Author-B-dog.png"}, names)

	for _, name := range names {
		assert.NotContains(t, name, "alice")
		assert.NotContains(t, name, "bob")
	}
}
