package imageformat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	f, err := Parse("png")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)

	// jpeg folds to jpg
	f, err = Parse("jpeg")
	require.NoError(t, err)
	assert.Equal(t, JPEG, f)

	f, err = Parse("  WEBP ")
	require.NoError(t, err)
	assert.Equal(t, WebP, f)

	_, err = Parse("exr")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestTagWidth(t *testing.T) {
	for f := range known {
		assert.LessOrEqual(t, len(f), TagMaxLen, "tag %q wider than column", f)
	}
}

func TestEncodable(t *testing.T) {
	assert.True(t, PNG.Encodable())
	assert.True(t, JPEG.Encodable())
	assert.True(t, TIFF.Encodable())
	assert.False(t, WebP.Encodable())
	assert.False(t, SVG.Encodable())
	assert.False(t, AVIF.Encodable())
	assert.False(t, HDR.Encodable())
}

func TestSQLRoundTrip(t *testing.T) {
	v, err := WebP.Value()
	require.NoError(t, err)

	var f Format
	require.NoError(t, f.Scan(v))
	assert.Equal(t, WebP, f)

	assert.Error(t, f.Scan(42))
	assert.Error(t, f.Scan("bogus"))
}

func TestJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(JPEG)
	require.NoError(t, err)
	assert.Equal(t, `"jpg"`, string(data))

	var f Format
	require.NoError(t, json.Unmarshal([]byte(`"jpeg"`), &f))
	assert.Equal(t, JPEG, f)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &f))
}
