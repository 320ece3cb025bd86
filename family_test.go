package dbpfindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/exemplar"
	"github.com/hupe1980/dbpfindex/testutil"
	"github.com/hupe1980/dbpfindex/tgi"
)

func keysOf(es []*Entry) []tgi.TGI {
	out := make([]tgi.TGI, len(es))
	for i, e := range es {
		out[i] = e.TGI()
	}
	return out
}

func familyFixture(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	propCohort := cohortKey(5, 1)

	testutil.NewArchive().
		AddExemplar(exKey(1, 1), testutil.Building(tgi.TGI{}, 0x100)).
		AddExemplar(exKey(1, 2), testutil.Building(tgi.TGI{}, 0x100, 0x200, 0x100, 0)).
		AddExemplar(tgi.New(dbpf.TypeExemplar, exemplar.LotConfigGroup, 3), testutil.Building(tgi.TGI{}, 0x100)).
		AddExemplar(exKey(1, 4), exemplar.New(exemplar.KindExemplar, tgi.TGI{},
			exemplar.Property{ID: exemplar.ExemplarType, Value: exemplar.NewUint32(exemplar.TypeLotConfigurations)},
			exemplar.Property{ID: exemplar.BuildingpropFamily, Value: exemplar.NewUint32(0x100)},
		)).
		AddExemplar(propCohort, testutil.Cohort(tgi.TGI{},
			exemplar.Property{ID: exemplar.ExemplarType, Value: exemplar.NewUint32(exemplar.TypeProp)},
			exemplar.Property{ID: exemplar.BuildingpropFamily, Value: exemplar.NewUint32(0x300)},
		)).
		AddExemplar(exKey(1, 5), exemplar.New(exemplar.KindExemplar, propCohort)).
		AddExemplar(exKey(1, 6), testutil.Building(tgi.TGI{})).
		WriteFile(t, dir, "a.dat")

	idx := newTestIndex(t, WithDirs(dir))
	mustBuild(t, idx)
	return idx
}

func TestBuildFamilies(t *testing.T) {
	idx := familyFixture(t)

	assert.False(t, idx.FamiliesBuilt())
	assert.Empty(t, idx.Family(0x100), "nothing before the family pass")

	report, err := idx.BuildFamilies(t.Context())
	require.NoError(t, err)
	assert.True(t, idx.FamiliesBuilt())
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, report.Families)
	assert.Equal(t, 4, report.Members)
	// Every winning exemplar outside the lot configuration group.
	assert.Equal(t, 5, report.Exemplars)

	assert.ElementsMatch(t, []tgi.TGI{exKey(1, 1), exKey(1, 2)}, keysOf(idx.Family(0x100)))
	assert.Equal(t, []tgi.TGI{exKey(1, 2)}, keysOf(idx.Family(0x200)))
	assert.Equal(t, []tgi.TGI{exKey(1, 5)}, keysOf(idx.Family(0x300)))
	assert.Empty(t, idx.Family(0))
	assert.Empty(t, idx.Family(0xdead))
	assert.Equal(t, []uint32{0x100, 0x200, 0x300}, idx.Families())
}

func TestBuildFamilies_OrderedByRegistration(t *testing.T) {
	dir := t.TempDir()
	testutil.NewArchive().AddExemplar(exKey(1, 1), testutil.Building(tgi.TGI{}, 0x7)).WriteFile(t, dir, "a.dat")
	testutil.NewArchive().AddExemplar(exKey(1, 2), testutil.Building(tgi.TGI{}, 0x7)).WriteFile(t, dir, "b.dat")
	testutil.NewArchive().AddExemplar(exKey(1, 3), testutil.Building(tgi.TGI{}, 0x7)).WriteFile(t, dir, "c.dat")

	idx := newTestIndex(t, WithDirs(dir), WithResourceLimits(ResourceLimits{MaxBackgroundWorkers: 1}))
	mustBuild(t, idx)
	_, err := idx.BuildFamilies(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []tgi.TGI{exKey(1, 1), exKey(1, 2), exKey(1, 3)}, keysOf(idx.Family(0x7)))
}

func TestBuildFamilies_OverriddenEntriesDropOut(t *testing.T) {
	idx := familyFixture(t)
	override := testutil.NewArchive().
		AddExemplar(exKey(1, 1), testutil.Building(tgi.TGI{}, 0x400)).
		WriteFile(t, t.TempDir(), "override.dat")

	_, err := idx.BuildFamilies(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, idx.Family(0x100))

	_, err = idx.AddFiles(t.Context(), override)
	require.NoError(t, err)
	assert.False(t, idx.FamiliesBuilt(), "loading files invalidates families")
	assert.Empty(t, idx.Family(0x100))

	_, err = idx.BuildFamilies(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []tgi.TGI{exKey(1, 2)}, keysOf(idx.Family(0x100)))
	members := idx.Family(0x400)
	require.Len(t, members, 1)
	assert.Equal(t, override, members[0].Path())
}

func TestBuildFamilies_DecodeFailuresAreReported(t *testing.T) {
	dir := t.TempDir()
	testutil.NewArchive().
		AddExemplar(exKey(1, 1), testutil.Building(tgi.TGI{}, 0x1)).
		Add(exKey(1, 2), []byte("garbage!")).
		WriteFile(t, dir, "a.dat")

	idx := newTestIndex(t, WithDirs(dir))
	mustBuild(t, idx)

	report, err := idx.BuildFamilies(t.Context())
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0], exemplar.ErrInvalidExemplar)
	assert.Equal(t, 1, report.Exemplars)
	assert.Len(t, idx.Family(0x1), 1)
}

func TestBuildFamilies_Cancelled(t *testing.T) {
	idx := familyFixture(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := idx.BuildFamilies(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, idx.FamiliesBuilt())
}

func TestBuildFamilies_ConcurrentAddFiles(t *testing.T) {
	dir := t.TempDir()
	a := testutil.NewArchive()
	for i := uint32(1); i <= 40; i++ {
		a.AddExemplar(exKey(1, i), testutil.Building(tgi.TGI{}, 0x100))
	}
	a.WriteFile(t, dir, "a.dat")
	late := testutil.NewArchive().
		AddExemplar(exKey(2, 1), testutil.Building(tgi.TGI{}, 0x100)).
		WriteFile(t, t.TempDir(), "late.dat")

	idx := newTestIndex(t, WithDirs(dir), WithResourceLimits(ResourceLimits{
		MaxBackgroundWorkers: 1,
		IOLimitBytesPerSec:   1000,
	}))
	mustBuild(t, idx)

	done := make(chan error, 1)
	go func() {
		_, err := idx.BuildFamilies(t.Context())
		done <- err
	}()
	time.Sleep(200 * time.Millisecond)
	_, err := idx.AddFiles(t.Context(), late)
	require.NoError(t, err)
	require.NoError(t, <-done)

	if !idx.FamiliesBuilt() {
		return
	}
	members := idx.Family(0x100)
	assert.Len(t, members, 41)
	assert.Contains(t, keysOf(members), exKey(2, 1))
}

func TestBuildFamilies_StalePassIsNotPublished(t *testing.T) {
	idx := familyFixture(t)

	gen, candidates := idx.familyCandidates()
	families, _, err := idx.groupFamilies(t.Context(), candidates)
	require.NoError(t, err)
	require.NotEmpty(t, families)

	late := testutil.NewArchive().
		AddExemplar(exKey(2, 1), testutil.Building(tgi.TGI{}, 0x100)).
		WriteFile(t, t.TempDir(), "late.dat")
	_, err = idx.AddFiles(t.Context(), late)
	require.NoError(t, err)

	idx.mu.RLock()
	changed := idx.generation != gen
	idx.mu.RUnlock()
	assert.True(t, changed)
	assert.False(t, idx.FamiliesBuilt())

	_, err = idx.BuildFamilies(t.Context())
	require.NoError(t, err)
	assert.Contains(t, keysOf(idx.Family(0x100)), exKey(2, 1))
}
