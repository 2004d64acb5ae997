package digest_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/chaitanya1-coder/docufy/pkg/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumBytes_KnownVector(t *testing.T) {
	assert.Equal(t,
		digest.Digest("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		digest.SumBytes(nil))
	assert.Equal(t,
		digest.Digest("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"),
		digest.SumBytes([]byte("abc")))
}

func TestSum_MatchesSumBytes(t *testing.T) {
	data := bytes.Repeat([]byte("%PDF-1.7\n\x00\xff"), 4096)
	got, err := digest.Sum(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, digest.SumBytes(data), got)
	assert.Len(t, got.String(), digest.Size)
}

func TestSum_SingleBitChangesDigest(t *testing.T) {
	data := []byte("%PDF-1.4 certificate body")
	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0x01
	assert.NotEqual(t, digest.SumBytes(data), digest.SumBytes(flipped))
}

func TestSum_ReadErrorSurfaces(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := digest.Sum(iotest.ErrReader(boom))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\r\nbinary\x00"), 0o600))

	got, err := digest.SumFile(path)
	require.NoError(t, err)
	assert.Equal(t, digest.SumBytes([]byte("%PDF-1.4\r\nbinary\x00")), got)

	_, err = digest.SumFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	d, err := digest.Parse(strings.ToUpper("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
	require.NoError(t, err)
	assert.Equal(t, digest.SumBytes([]byte("abc")), d)

	_, err = digest.Parse("abc")
	assert.Error(t, err)
	_, err = digest.Parse(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	d := digest.SumBytes([]byte("abc"))
	assert.True(t, d.Matches(d.String()))
	assert.False(t, d.Matches(strings.ToUpper(d.String())))
	assert.False(t, digest.Digest("").Matches(""))
}
