package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagescout/pkg/models"
)

func TestAnalyzeImageNotCataloged(t *testing.T) {
	e := newTestEngine(&fakeSource{})

	analysis, recs, _, err := e.AnalyzeImage(context.Background(), "ghost:1.0", Requirement{})
	require.NoError(t, err)
	assert.Nil(t, analysis)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestAnalyzeImageAppendsDefaultTag(t *testing.T) {
	src := &fakeSource{analyses: map[string]*Analysis{
		"python:latest": {Image: "python:latest"},
	}}
	e := newTestEngine(src)

	analysis, _, _, err := e.AnalyzeImage(context.Background(), "python", Requirement{})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, "python:latest", analysis.Image)
}

func TestAnalyzeImageWithoutLanguages(t *testing.T) {
	src := &fakeSource{analyses: map[string]*Analysis{
		"scratch:latest": {Image: "scratch:latest", SizeBytes: 2 * 1024 * 1024},
	}}
	e := newTestEngine(src)

	analysis, recs, _, err := e.AnalyzeImage(context.Background(), "scratch:latest", Requirement{})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Empty(t, recs)
	assert.Empty(t, src.candidatesCalls) // No language, no engine run
}

func TestAnalyzeImagePrimaryLanguageSelection(t *testing.T) {
	langs := func(l ...models.DetectedLanguage) []models.DetectedLanguage { return l }

	tests := []struct {
		name      string
		languages []models.DetectedLanguage
		want      string
	}{
		{
			"verified wins over earlier unverified",
			langs(
				models.DetectedLanguage{Language: "perl", Version: "5.36"},
				models.DetectedLanguage{Language: "python", Version: "3.12.4", Verified: true},
			),
			"python",
		},
		{
			"versioned wins over earlier unversioned",
			langs(
				models.DetectedLanguage{Language: "sh"},
				models.DetectedLanguage{Language: "node", Version: "20.11.0"},
			),
			"node",
		},
		{
			"first entry as last resort",
			langs(
				models.DetectedLanguage{Language: "sh"},
				models.DetectedLanguage{Language: "bash"},
			),
			"sh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectPrimaryLanguage(tt.languages)
			assert.Equal(t, tt.want, got.Language)
		})
	}
}

func TestAnalyzeImageRelaxationLadder(t *testing.T) {
	analysis := &Analysis{
		Image: "python:3.11.9",
		Languages: []models.DetectedLanguage{
			{Language: "python", Version: "3.11.9", MajorMinor: "3.11", Verified: true},
		},
	}
	alternative := candidate("python:3.13", "python", "3.13.1", nil)

	t.Run("stops at major.minor when it yields results", func(t *testing.T) {
		src := &fakeSource{
			analyses:   map[string]*Analysis{"python:3.11.9": analysis},
			candidates: map[string][]Candidate{"3.11": {alternative}},
		}
		e := newTestEngine(src)

		_, recs, effective, err := e.AnalyzeImage(context.Background(), "python:3.11.9", Requirement{})
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		assert.Equal(t, "3.11", effective.Version)
		assert.Equal(t, []string{"3.11.9", "3.11"}, src.candidatesCalls)
	})

	t.Run("falls through to unconstrained", func(t *testing.T) {
		src := &fakeSource{
			analyses:   map[string]*Analysis{"python:3.11.9": analysis},
			candidates: map[string][]Candidate{"": {alternative}},
		}
		e := newTestEngine(src)

		_, recs, effective, err := e.AnalyzeImage(context.Background(), "python:3.11.9", Requirement{})
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		assert.Equal(t, "", effective.Version)
		assert.Equal(t, []string{"3.11.9", "3.11", ""}, src.candidatesCalls)
	})

	t.Run("keeps derived version when nothing ever matches", func(t *testing.T) {
		src := &fakeSource{
			analyses: map[string]*Analysis{"python:3.11.9": analysis},
		}
		e := newTestEngine(src)

		_, recs, effective, err := e.AnalyzeImage(context.Background(), "python:3.11.9", Requirement{})
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Equal(t, "3.11.9", effective.Version)
	})
}

func TestAnalyzeImageCarriesCallerPreferences(t *testing.T) {
	src := &fakeSource{
		analyses: map[string]*Analysis{
			"python:3.12": {
				Image: "python:3.12",
				Languages: []models.DetectedLanguage{
					{Language: "python", Version: "3.12.4", Verified: true},
				},
			},
		},
		candidates: map[string][]Candidate{
			"3.12.4": {candidate("python-alt:3.12", "python", "3.12.4", nil)},
		},
	}
	e := newTestEngine(src)

	_, _, effective, err := e.AnalyzeImage(context.Background(), "python:3.12", Requirement{
		SizePreference: models.SizeMinimal,
		SecurityLevel:  models.SecurityMaximum,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SizeMinimal, effective.SizePreference)
	assert.Equal(t, models.SecurityMaximum, effective.SecurityLevel)
	assert.Equal(t, "python", effective.Language)
}

func TestCombinedPackages(t *testing.T) {
	a := &Analysis{
		SystemPackages:  []string{"curl", "git", "Curl"},
		PackageManagers: []string{"pip", "GIT"},
	}

	got := combinedPackages(a, 20)
	assert.Equal(t, []string{"curl", "git", "pip"}, got)

	t.Run("cap bounds the union", func(t *testing.T) {
		many := &Analysis{}
		for i := 0; i < 30; i++ {
			many.SystemPackages = append(many.SystemPackages, string(rune('a'+i)))
		}
		assert.Len(t, combinedPackages(many, 20), 20)
	})
}
