package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectionDigestStable(t *testing.T) {
	a, err := ProjectionDigest(IRObject{"zip_code": IRString("10696"), "city": IRString("Berlin")})
	require.NoError(t, err)
	b, err := ProjectionDigest(IRObject{"city": IRString("Berlin"), "zip_code": IRString("10696")})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestProjectionDigestDiffers(t *testing.T) {
	a, err := ProjectionDigest(IRObject{"zip_code": IRString("10696")})
	require.NoError(t, err)
	b, err := ProjectionDigest(IRObject{"zip_code": IRString("99999")})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainProjection, data), hashWithDomain("autosync/other/v1", data))

	digest, err := ProjectionDigest(IRObject{})
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainProjection, data), digest)
}
