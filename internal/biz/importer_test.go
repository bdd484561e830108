package biz

import (
	"context"
	"io"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImportUC(repo AdminAreaRepo, src FeatureSource, cfg ImportConfig) *ImportUsecase {
	return NewImportUsecase(repo, src, cfg, log.NewStdLogger(io.Discard))
}

// spainDataset 两个国家、西班牙两层的小型要素集。
func spainDataset() *fakeSource {
	return &fakeSource{byLevel: map[int][]Feature{
		0: {
			{Code: "ESP", Name: "Spain", CountryISO3: "ESP"},
			{Code: "FRA", Name: "France", CountryISO3: "FRA"},
		},
		1: {
			{Code: "ESP.1_1", Name: "Andalucía", ParentCode: "ESP", LevelLabel: "Autonomous Community", CountryISO3: "ESP", Rings: [][][2]float64{cwSquare}},
			{Code: "ESP.2_1", Name: "Aragón", ParentCode: "ESP", LevelLabel: "Autonomous Community", CountryISO3: "ESP", Rings: [][][2]float64{ccwOrphan}},
			{Code: "FRA.1_1", Name: "Bretagne", ParentCode: "FRA", LevelLabel: "Region", CountryISO3: "FRA", Rings: [][][2]float64{cwSquare}},
		},
		2: {
			{Code: "ESP.1.1_1", Name: "Almería", ParentCode: "ESP.1_1", LevelLabel: "Province", CountryISO3: "ESP", Rings: [][][2]float64{cwSquare}},
		},
	}}
}

func TestImportAll_EndToEnd(t *testing.T) {
	repo := newMemRepo()
	uc := newImportUC(repo, spainDataset(), ImportConfig{MaxLevel: 2, Source: "gadm"})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Inserted)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, int64(6), sum.TotalInDB)
	assert.Empty(t, sum.Errors)
	require.Len(t, sum.Countries, 2)
	for _, cs := range sum.Countries {
		assert.Equal(t, 2, cs.LevelsDone, cs.CountryISO3)
		assert.False(t, cs.BreakerOpen)
	}

	// 上级挂接：ESP.1.1_1 → ESP.1_1 → ESP
	lvl1, err := repo.ListByCountryLevel(context.Background(), "ESP", 1)
	require.NoError(t, err)
	require.Len(t, lvl1, 2)
	countries, err := repo.ListCountries(context.Background())
	require.NoError(t, err)
	var espID int64
	for _, c := range countries {
		if c.Code == "ESP" {
			espID = c.ID
		}
	}
	require.NotZero(t, espID)
	for _, p := range lvl1 {
		require.NotNil(t, p.ParentID)
		assert.Equal(t, espID, *p.ParentID)
		assert.True(t, p.HasGeometry())
		assert.Equal(t, "gadm", p.Source)
	}
	lvl2, err := repo.ListByCountryLevel(context.Background(), "ESP", 2)
	require.NoError(t, err)
	require.Len(t, lvl2, 1)
	require.NotNil(t, lvl2[0].ParentID)
	var andaluciaID int64
	for _, p := range lvl1 {
		if p.Code == "ESP.1_1" {
			andaluciaID = p.ID
		}
	}
	assert.Equal(t, andaluciaID, *lvl2[0].ParentID)
}

func TestImportAll_Idempotent(t *testing.T) {
	repo := newMemRepo()
	src := spainDataset()
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 2})

	_, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted, "unchanged upstream must insert nothing")
	assert.Equal(t, 0, sum.Updated, "unchanged upstream must update nothing")
	assert.Equal(t, int64(6), sum.TotalInDB)
}

func TestImportAll_DetectsUpstreamChange(t *testing.T) {
	repo := newMemRepo()
	src := spainDataset()
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 1})

	_, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)

	src.byLevel[1][0].Name = "Andalusia"                           // 改名
	src.byLevel[1][1].Rings = [][][2]float64{cwSquare, ccwHole}    // 改几何
	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 2, sum.Updated)
}

func TestImportAll_CountryFilter(t *testing.T) {
	repo := newMemRepo()
	uc := newImportUC(repo, spainDataset(), ImportConfig{MaxLevel: 1})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{CountryISO3: "fra"})
	require.NoError(t, err)
	require.Len(t, sum.Countries, 1, "filter matching is case-insensitive")
	assert.Equal(t, "FRA", sum.Countries[0].CountryISO3)

	// level 0 始终全量导入，但西班牙不再往深层推进
	esp, err := repo.ListByCountryLevel(context.Background(), "ESP", 1)
	require.NoError(t, err)
	assert.Empty(t, esp)
	fra, err := repo.ListByCountryLevel(context.Background(), "FRA", 1)
	require.NoError(t, err)
	assert.Len(t, fra, 1)
}

func TestImportAll_SkipsBlankCodeOrName(t *testing.T) {
	repo := newMemRepo()
	src := &fakeSource{byLevel: map[int][]Feature{
		0: {
			{Code: "ESP", Name: "Spain", CountryISO3: "ESP"},
			{Code: "", Name: "Nameless", CountryISO3: "???"},
			{Code: "XKX", Name: "   ", CountryISO3: "XKX"},
		},
	}}
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 1})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
}

func TestImportAll_MissingParentIsRecoverable(t *testing.T) {
	repo := newMemRepo()
	src := spainDataset()
	src.byLevel[1] = append(src.byLevel[1],
		Feature{Code: "ESP.9_1", Name: "Atlantis", ParentCode: "ESP.GONE", CountryISO3: "ESP"})
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 1})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, sum.Errors, "a missing parent code is not a failure")

	rows, err := repo.ListByCountryLevel(context.Background(), "ESP", 1)
	require.NoError(t, err)
	var orphan *AdminArea
	for _, r := range rows {
		if r.Code == "ESP.9_1" {
			orphan = r
		}
	}
	require.NotNil(t, orphan)
	assert.Nil(t, orphan.ParentID)
}

func TestImportAll_HardReset(t *testing.T) {
	repo := newMemRepo()
	repo.put(AdminArea{CountryISO3: "ZZZ", Level: 0, Code: "ZZZ", Name: "Stale"})
	uc := newImportUC(repo, spainDataset(), ImportConfig{MaxLevel: 1})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{HardReset: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum.TotalInDB, "stale rows must be gone after hard reset")
}

func TestImportAll_BreakerAbortsCountry(t *testing.T) {
	repo := newMemRepo()
	src := &fakeSource{byLevel: map[int][]Feature{
		0: {{Code: "ESP", Name: "Spain", CountryISO3: "ESP"}},
		1: {
			{Code: "ESP.1_1", Name: "Andalucía", ParentCode: "ESP", CountryISO3: "ESP"},
			{Code: "ESP.2_1", Name: "Aragón", ParentCode: "ESP", CountryISO3: "ESP"},
			{Code: "ESP.3_1", Name: "Asturias", ParentCode: "ESP", CountryISO3: "ESP"},
		},
	}}
	src.featErr = func(level, _ int) error {
		if level == 1 {
			return &fakeHTTPErr{status: 502, raw: `<html>bad gateway</html>`}
		}
		return nil
	}
	uc := newImportUC(repo, src, ImportConfig{
		MaxLevel: 2, BatchSize: 1, BreakerMinLevel: 1, BreakerMaxFailures: 2,
	})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err, "breaker opening is data, not a call failure")
	require.Len(t, sum.Countries, 1)
	cs := sum.Countries[0]
	assert.True(t, cs.BreakerOpen)
	assert.Equal(t, 1, cs.BreakerLevel)
	assert.Equal(t, 0, cs.LevelsDone)

	// 两条批取失败 + 一条熔断记录，且失败携带传输诊断
	require.Len(t, sum.Errors, 3)
	assert.Equal(t, StageFeatures, sum.Errors[0].Stage)
	assert.Equal(t, 502, sum.Errors[0].HTTPStatus)
	assert.Contains(t, sum.Errors[0].RawSnippet, "bad gateway")
	assert.Equal(t, StageBreaker, sum.Errors[2].Stage)
	assert.Contains(t, sum.Errors[2].RawSnippet, "bad gateway")
}

func TestImportAll_ParseFailureClassified(t *testing.T) {
	repo := newMemRepo()
	src := spainDataset()
	src.featErr = func(level, _ int) error {
		if level == 1 {
			return &fakeParseErr{}
		}
		return nil
	}
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 1, BreakerMinLevel: 2})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, sum.Errors)
	for _, se := range sum.Errors {
		assert.Equal(t, StageParse, se.Stage)
	}
	require.Len(t, sum.Countries, 2)
	for _, cs := range sum.Countries {
		assert.False(t, cs.BreakerOpen, "below min level the breaker stays closed")
	}
}

func TestImportAll_IDDiscoveryFailureRecorded(t *testing.T) {
	repo := newMemRepo()
	src := spainDataset()
	src.idsErr = func(level int, iso3 string) error {
		if level == 1 && iso3 == "ESP" {
			return &fakeHTTPErr{status: 500, raw: "oops"}
		}
		return nil
	}
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 2})

	sum, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, sum.Errors)
	assert.Equal(t, StageIDs, sum.Errors[0].Stage)
	assert.Equal(t, "ESP", sum.Errors[0].Country)
	assert.Equal(t, 1, sum.Errors[0].Level)

	// 法国不受西班牙失败影响
	fra, err := repo.ListByCountryLevel(context.Background(), "FRA", 1)
	require.NoError(t, err)
	assert.Len(t, fra, 1)
}

func TestImportAll_CancellationPropagates(t *testing.T) {
	repo := newMemRepo()
	src := spainDataset()
	src.idsErr = func(level int, _ string) error {
		if level == 1 {
			return context.Canceled
		}
		return nil
	}
	uc := newImportUC(repo, src, ImportConfig{MaxLevel: 2})

	_, err := uc.ImportAll(context.Background(), ImportOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestImportLevel_DeepLevelUsesSmallerBatches(t *testing.T) {
	repo := newMemRepo()
	feats := make([]Feature, 10)
	for i := range feats {
		feats[i] = Feature{Code: "ESP.x", Name: "X", CountryISO3: "ESP"}
	}
	src := &fakeSource{byLevel: map[int][]Feature{4: feats}}
	uc := newImportUC(repo, src, ImportConfig{BatchSize: 10, DeepBatchSize: 2})

	_, _, stepErrs, err := uc.importLevel(context.Background(), "ESP", 4, nil)
	require.NoError(t, err)
	assert.Empty(t, stepErrs)
	assert.Equal(t, 5, src.featCalls, "levels >= 4 must use the deep batch size")
}
