package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griguv/pricewatch/pkg/errors"
)

func TestPriceFromMetadata(t *testing.T) {
	html := `<html><head>
		<meta itemprop="price" content="49.99">
		<meta itemprop="priceCurrency" content="eur">
	</head><body><p>Great boots</p></body></html>`

	rec, err := Price(html, "https://example.org/product/1")
	require.NoError(t, err)
	assert.Equal(t, 49.99, rec.Amount)
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, StrategyMetadata, rec.Strategy)
}

func TestPriceFromOpenGraph(t *testing.T) {
	html := `<html><head>
		<meta property="product:price:amount" content="1299.00">
		<meta property="product:price:currency" content="USD">
	</head><body></body></html>`

	rec, err := Price(html, "https://example.org/product/2")
	require.NoError(t, err)
	assert.Equal(t, 1299.00, rec.Amount)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, StrategyMetadata, rec.Strategy)
}

func TestPriceFromJSONLD(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@type":"Product","name":"Boots","offers":{"@type":"Offer","price":"325.50","priceCurrency":"GBP"}}
	</script></head><body></body></html>`

	rec, err := Price(html, "https://example.org/product/3")
	require.NoError(t, err)
	assert.Equal(t, 325.50, rec.Amount)
	assert.Equal(t, "GBP", rec.Currency)
	assert.Equal(t, StrategyMetadata, rec.Strategy)
}

func TestPriceMetadataWinsOverText(t *testing.T) {
	// Both rungs could match; the metadata rung runs first.
	html := `<html><head>
		<meta itemprop="price" content="100.00">
		<meta itemprop="priceCurrency" content="EUR">
	</head><body>Only today: $999.99</body></html>`

	rec, err := Price(html, "https://example.org/product/4")
	require.NoError(t, err)
	assert.Equal(t, 100.00, rec.Amount)
	assert.Equal(t, StrategyMetadata, rec.Strategy)
}

func TestPriceFromFarfetchNextData(t *testing.T) {
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">
	{"props":{"pageProps":{"product":{"price":{"value":790.0,"currency":"EUR"}}}}}
	</script></body></html>`

	rec, err := Price(html, "https://www.farfetch.com/it/shopping/item-19794705.aspx")
	require.NoError(t, err)
	assert.Equal(t, 790.0, rec.Amount)
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, StrategyEmbeddedJSON, rec.Strategy)
}

func TestPriceFromFarfetchPricesBlock(t *testing.T) {
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">
	{"props":{"pageProps":{"product":{"prices":{"finalPrice":421.5,"currencyCode":"USD"}}}}}
	</script></body></html>`

	rec, err := Price(html, "https://www.farfetch.com/shopping/item-19794705.aspx")
	require.NoError(t, err)
	assert.Equal(t, 421.5, rec.Amount)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, StrategyEmbeddedJSON, rec.Strategy)
}

func TestPriceFromYooxState(t *testing.T) {
	html := `<html><body><script>
	window.__STATE__ = {"item":{"price":"325,00","currency":"EUR"}};
	</script></body></html>`

	rec, err := Price(html, "https://www.yoox.com/it/item/12345678")
	require.NoError(t, err)
	assert.Equal(t, 325.00, rec.Amount)
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, StrategyEmbeddedJSON, rec.Strategy)
}

func TestPriceFromDOMSelector(t *testing.T) {
	html := `<html><body><div id="prcIsum">US $120.00</div></body></html>`

	rec, err := Price(html, "https://www.ebay.com/itm/256123456789")
	require.NoError(t, err)
	assert.Equal(t, 120.00, rec.Amount)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, StrategyDOM, rec.Strategy)
}

func TestPriceFromFreeText(t *testing.T) {
	html := `<html><body><p>Our price: €1.234,56 while stocks last</p></body></html>`

	rec, err := Price(html, "https://example.org/deal")
	require.NoError(t, err)
	assert.Equal(t, 1234.56, rec.Amount)
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, StrategyText, rec.Strategy)
}

func TestPriceBlockedPage(t *testing.T) {
	html := `<html><body><h1>Pardon our interruption</h1><p>Please complete the captcha.</p></body></html>`

	_, err := Price(html, "https://example.org/product/5")
	require.Error(t, err)
	assert.True(t, errors.IsBlocked(err))
}

func TestPriceNotFound(t *testing.T) {
	html := `<html><body><h1>About us</h1><p>We sell things.</p></body></html>`

	_, err := Price(html, "https://example.org/about")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestLooksBlocked(t *testing.T) {
	assert.True(t, LooksBlocked("<html>Access Denied</html>"))
	assert.True(t, LooksBlocked("<html>verify you are human</html>"))
	assert.False(t, LooksBlocked("<html>verified seller since 2012</html>"))
}
