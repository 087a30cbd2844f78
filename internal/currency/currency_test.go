package currency

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griguv/pricewatch/pkg/errors"
	"github.com/griguv/pricewatch/services/cache"
)

const ratesURL = "https://rates.test/latest"

func mockRates(t *testing.T, c *Converter) {
	t.Helper()
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("GET", ratesURL,
		httpmock.NewStringResponder(200, `{"base":"EUR","rates":{"USD":1.1,"GBP":0.85}}`))
}

func TestConvert(t *testing.T) {
	c := NewConverter(nil, ratesURL)
	mockRates(t, c)

	got, err := c.Convert(context.Background(), 100, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 110.0, got, 0.0001)
}

func TestConvertSameCurrency(t *testing.T) {
	c := NewConverter(nil, ratesURL)
	mockRates(t, c)

	got, err := c.Convert(context.Background(), 42.5, "EUR", "eur")
	require.NoError(t, err)
	assert.Equal(t, 42.5, got)
	// No lookup issued for a same-currency conversion.
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestConvertUnknownCurrency(t *testing.T) {
	c := NewConverter(nil, ratesURL)
	mockRates(t, c)

	_, err := c.Convert(context.Background(), 100, "EUR", "XXX")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRatesCached(t *testing.T) {
	c := NewConverter(cache.NewMemoryService(16), ratesURL)
	mockRates(t, c)

	_, err := c.Rates(context.Background(), "EUR")
	require.NoError(t, err)
	_, err = c.Rates(context.Background(), "EUR")
	require.NoError(t, err)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRatesURLKeepsExistingQuery(t *testing.T) {
	got, err := ratesEndpoint("https://rates.test/latest?access_key=secret", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "https://rates.test/latest?access_key=secret&base=EUR", got)

	got, err = ratesEndpoint("https://rates.test/latest", "usd")
	require.NoError(t, err)
	assert.Equal(t, "https://rates.test/latest?base=usd", got)
}

func TestRatesWithKeyedEndpoint(t *testing.T) {
	keyed := ratesURL + "?access_key=secret"
	c := NewConverter(nil, keyed)
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", ratesURL+"?access_key=secret&base=EUR",
		httpmock.NewStringResponder(200, `{"base":"EUR","rates":{"USD":1.1}}`))

	rates, err := c.Rates(context.Background(), "EUR")
	require.NoError(t, err)
	assert.InDelta(t, 1.1, rates["USD"], 0.0001)
}

func TestRatesUpstreamError(t *testing.T) {
	c := NewConverter(nil, ratesURL)
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", ratesURL, httpmock.NewStringResponder(502, "bad gateway"))

	_, err := c.Rates(context.Background(), "EUR")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeHTTP, errors.TypeOf(err))
}

func TestRatesBadPayload(t *testing.T) {
	c := NewConverter(nil, ratesURL)
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", ratesURL, httpmock.NewStringResponder(200, "not json"))

	_, err := c.Rates(context.Background(), "EUR")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeParsing, errors.TypeOf(err))
}
