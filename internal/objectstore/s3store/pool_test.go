package s3store

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory() (*s3.Client, error) {
	return s3.New(s3.Options{Region: "us-east-1"}), nil
}

func TestNewConnPoolRejectsNilFactory(t *testing.T) {
	t.Parallel()

	_, err := newConnPool(4, nil)
	assert.Error(t, err)
}

func TestNewConnPoolDefaultsSize(t *testing.T) {
	t.Parallel()

	p, err := newConnPool(0, testFactory)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 8, p.maxSize)
}

func TestConnPoolGetPutReusesConnection(t *testing.T) {
	t.Parallel()

	p, err := newConnPool(2, testFactory)
	require.NoError(t, err)
	defer p.Close()

	conn, err := p.get()
	require.NoError(t, err)
	require.NotNil(t, conn)
	p.put(conn)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Created)

	conn2, err := p.get()
	require.NoError(t, err)
	assert.Same(t, conn, conn2)
	assert.Equal(t, int64(1), p.Stats().Hits)
}

func TestConnPoolGetAfterCloseErrors(t *testing.T) {
	t.Parallel()

	p, err := newConnPool(2, testFactory)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.get()
	assert.Error(t, err)
}

func TestConnPoolFactoryErrorPropagates(t *testing.T) {
	t.Parallel()

	p, err := newConnPool(1, func() (*s3.Client, error) {
		return nil, fmt.Errorf("factory failed")
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.get()
	assert.Error(t, err)
}
