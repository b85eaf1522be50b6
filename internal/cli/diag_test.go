package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/store"
)

// seedJournal writes diagnostics straight into a fresh journal file.
func seedJournal(t *testing.T, ds ...diag.Diagnostic) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diag.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	for _, d := range ds {
		_, err := st.WriteDiagnostic(context.Background(), d)
		require.NoError(t, err)
	}
	return path
}

var seedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDiag_ListsEntriesAndCounts(t *testing.T) {
	path := seedJournal(t,
		diag.Diagnostic{Kind: diag.KindBoundedTimeout, At: seedAt, Opcode: "GET_FORBIDDEN_PLMNS", Instance: "phone0", Tag: "com.example.settings", Detail: "2s"},
		diag.Diagnostic{Kind: diag.KindLateCompletion, At: seedAt.Add(time.Second), Opcode: "GET_FORBIDDEN_PLMNS", Instance: "phone0"},
		diag.Diagnostic{Kind: diag.KindOrphanCompletion, At: seedAt.Add(2 * time.Second), Opcode: "GET_CLIR"},
	)

	out, _, err := execute(t, "--journal", path, "diag")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Entries ===")
	assert.Contains(t, out, "[1] 2024-01-01T00:00:00Z bounded_timeout GET_FORBIDDEN_PLMNS instance=phone0 tag=com.example.settings detail=2s")
	assert.Contains(t, out, "[3] 2024-01-01T00:00:02Z orphan_completion GET_CLIR")
	assert.Contains(t, out, "=== Counts ===")
	assert.Contains(t, out, "late_completion")
}

func TestDiag_FilterJSON(t *testing.T) {
	path := seedJournal(t,
		diag.Diagnostic{Kind: diag.KindBoundedTimeout, At: seedAt, Opcode: "GET_FORBIDDEN_PLMNS", Instance: "phone0"},
		diag.Diagnostic{Kind: diag.KindLateCompletion, At: seedAt, Opcode: "GET_FORBIDDEN_PLMNS", Instance: "phone0"},
		diag.Diagnostic{Kind: diag.KindLateCompletion, At: seedAt, Opcode: "GET_CLIR", Instance: "phone1"},
	)

	out, _, err := execute(t, "--journal", path, "--format", "json", "diag", "--kind", "late_completion", "--instance", "phone1")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   DiagReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, "GET_CLIR", resp.Data.Entries[0].Opcode)
	assert.Equal(t, 2, resp.Data.Counts[diag.KindLateCompletion])
	assert.Equal(t, 1, resp.Data.Counts[diag.KindBoundedTimeout])
}

func TestDiag_Limit(t *testing.T) {
	path := seedJournal(t,
		diag.Diagnostic{Kind: diag.KindOrphanCompletion, At: seedAt, Opcode: "GET_CLIR"},
		diag.Diagnostic{Kind: diag.KindOrphanCompletion, At: seedAt, Opcode: "SET_CLIR"},
	)

	out, _, err := execute(t, "--journal", path, "diag", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "GET_CLIR")
	assert.NotContains(t, out, "SET_CLIR")
}

func TestDiag_EmptyJournal(t *testing.T) {
	path := seedJournal(t)

	out, _, err := execute(t, "--journal", path, "diag")
	require.NoError(t, err)
	assert.Contains(t, out, "(no entries)")
}

func TestDiag_CommandErrors(t *testing.T) {
	_, _, err := execute(t, "diag")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal configured")

	_, _, err = execute(t, "--journal", filepath.Join(t.TempDir(), "missing.db"), "diag")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

// A call that gives up is journaled and then visible through diag.
func TestDiag_JournalFromCall(t *testing.T) {
	script := writeFile(t, "modem.yaml", channelScript)
	journal := filepath.Join(t.TempDir(), "diag.db")

	_, _, err := execute(t, "--script", script, "--journal", journal, "--timeout", "50ms",
		"call", "GET_FORBIDDEN_PLMNS", "--instance", "phone1", "--tag", "com.example.settings")
	require.Error(t, err)

	out, _, err := execute(t, "--journal", journal, "diag", "--kind", "bounded_timeout")
	require.NoError(t, err)
	assert.Contains(t, out, "bounded_timeout GET_FORBIDDEN_PLMNS instance=phone1 tag=com.example.settings detail=50ms")
}
