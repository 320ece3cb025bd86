package dbpfindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/tgi"
)

func exKey(g, i uint32) tgi.TGI     { return tgi.New(dbpf.TypeExemplar, g, i) }
func cohortKey(g, i uint32) tgi.TGI { return tgi.New(dbpf.TypeCohort, g, i) }

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := New(opts...)
	require.NoError(t, err)
	return idx
}

func mustBuild(t *testing.T, idx *Index) *BuildReport {
	t.Helper()
	report, err := idx.Build(t.Context())
	require.NoError(t, err)
	return report
}

func writeRaw(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readString(t *testing.T, e *Entry) string {
	t.Helper()
	v, err := e.Read(t.Context())
	require.NoError(t, err)
	b, ok := v.([]byte)
	require.True(t, ok, "content of %s is %T", e, v)
	return string(b)
}
