package domain_test

import (
	"errors"
	"testing"
	"time"

	"aidigest/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestNaturalKeyCanonicalizesURL(t *testing.T) {
	a := domain.NaturalKey(" https://WWW.Habr.com/ru/articles/1/?utm_source=rss#comments ", "Title")
	b := domain.NaturalKey("https://habr.com/ru/articles/1", "Other title")

	require.Equal(t, a, b)
	require.Equal(t, "url:https://habr.com/ru/articles/1", a)
}

func TestNaturalKeyKeepsMeaningfulQuery(t *testing.T) {
	a := domain.NaturalKey("https://vc.ru/news?id=2&page=1", "")
	b := domain.NaturalKey("https://vc.ru/news?page=1&id=2&utm_medium=feed", "")
	c := domain.NaturalKey("https://vc.ru/news?id=3&page=1", "")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestNaturalKeyFallsBackToTitle(t *testing.T) {
	got := domain.NaturalKey("  ", "  Big   AI News ")
	require.Equal(t, "title:big ai news", got)
}

func TestNaturalKeyEmpty(t *testing.T) {
	require.Empty(t, domain.NaturalKey("", "   "))
}

func TestCanonicalURLInvalidReturnedVerbatim(t *testing.T) {
	require.Equal(t, "::not a url::", domain.CanonicalURL(" ::not a url:: "))
}

func TestCadenceIntervals(t *testing.T) {
	require.Equal(t, 10*time.Minute, domain.CadenceFast.Interval())
	require.Equal(t, 30*time.Minute, domain.CadenceMedium.Interval())
	require.Equal(t, time.Hour, domain.CadenceSlow.Interval())
	require.Equal(t, 24*time.Hour, domain.CadenceDaily.Interval())
	require.Equal(t, 30*time.Minute, domain.Cadence("bogus").Interval())
}

func TestParseCadence(t *testing.T) {
	for _, c := range domain.Cadences() {
		parsed, err := domain.ParseCadence(c.Short())
		require.NoError(t, err)
		require.Equal(t, c, parsed)

		parsed, err = domain.ParseCadence(" " + string(c) + " ")
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}

	_, err := domain.ParseCadence("2h")
	require.Error(t, err)
}

func TestFetchErrorUnwraps(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&domain.FetchError{Source: "Habr", Err: cause})

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "Habr")
}
