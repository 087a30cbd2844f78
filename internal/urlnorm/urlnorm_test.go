package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsTrackingParams(t *testing.T) {
	opts := DefaultOptions("www.ebay.com", nil)
	got, err := Normalize("https://www.ebay.com/sch/i.html?_nkw=boots&utm_source=share&_trkparms=abc&campid=123", opts)
	require.NoError(t, err)

	assert.NotContains(t, got, "utm_source")
	assert.NotContains(t, got, "_trkparms")
	assert.NotContains(t, got, "campid")
	assert.Contains(t, got, "_nkw=boots")
	assert.Contains(t, got, "_ipg=240")
	assert.Contains(t, got, "_sop=10")
}

func TestNormalizeIdempotent(t *testing.T) {
	opts := DefaultOptions("www.ebay.com", nil)
	once, err := Normalize("https://WWW.EBAY.COM/sch/i.html?b=2&a=1&gclid=xyz#frag", opts)
	require.NoError(t, err)
	twice, err := Normalize(once, opts)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeExtraStrip(t *testing.T) {
	opts := DefaultOptions("www.farfetch.com", []string{"sid"})
	got, err := Normalize("https://www.farfetch.com/shopping/item.aspx?sid=42&storeid=9", opts)
	require.NoError(t, err)
	assert.NotContains(t, got, "sid=42")
	assert.Contains(t, got, "storeid=9")
}

func TestNormalizeRejectsRelative(t *testing.T) {
	_, err := Normalize("/sch/i.html?_nkw=boots", Options{})
	assert.Error(t, err)
}

func TestCountryVariantLocalePath(t *testing.T) {
	got := CountryVariant("https://www.farfetch.com/it/shopping/item-123.aspx", "DE")
	assert.Equal(t, "https://www.farfetch.com/de/shopping/item-123.aspx", got)

	// No locale segment yet: insert one.
	got = CountryVariant("https://www.farfetch.com/shopping/item-123.aspx", "FR")
	assert.Equal(t, "https://www.farfetch.com/fr/shopping/item-123.aspx", got)

	// Idempotent.
	assert.Equal(t, got, CountryVariant(got, "FR"))
}

func TestCountryVariantEbayHost(t *testing.T) {
	got := CountryVariant("https://www.ebay.com/itm/123456789", "DE")
	assert.Equal(t, "https://www.ebay.de/itm/123456789", got)

	// Unknown region for the site: unchanged.
	got = CountryVariant("https://www.ebay.com/itm/123456789", "KZ")
	assert.Equal(t, "https://www.ebay.com/itm/123456789", got)
}

func TestCountryVariantUnknownHostUnchanged(t *testing.T) {
	u := "https://example.org/product/1?x=1"
	assert.Equal(t, u, CountryVariant(u, "IT"))
}

func TestVariantsDeduplicates(t *testing.T) {
	got := Variants("https://example.org/product/1", []string{"US", "IT", "FR"})
	// Site cannot express regions, so all variants collapse onto one URL.
	assert.Equal(t, []string{"https://example.org/product/1"}, got)

	got = Variants("https://www.ebay.com/itm/1234567", []string{"US", "DE"})
	assert.Len(t, got, 2)
}

func TestPages(t *testing.T) {
	got := Pages("https://www.ebay.com/sch/i.html?_nkw=boots", "_pgn", 3)
	assert.Len(t, got, 3)
	assert.Contains(t, got[0], "_pgn=1")
	assert.Contains(t, got[2], "_pgn=3")
}

func TestItemID(t *testing.T) {
	assert.Equal(t, "256123456789", ItemID("https://www.ebay.com/itm/256123456789?hash=abc"))
	assert.Equal(t, "19794705", ItemID("https://www.farfetch.com/it/shopping/women/item-19794705.aspx?x=1"))
	assert.Equal(t, "555666777", ItemID("https://example.org/view?item=555666777"))

	// Nothing recognizable: the link itself is the identifier.
	link := "https://example.org/some/path"
	assert.Equal(t, link, ItemID(link))

	// Deterministic.
	assert.Equal(t, ItemID("https://www.ebay.com/itm/256123456789"), ItemID("https://www.ebay.com/itm/256123456789"))
}
