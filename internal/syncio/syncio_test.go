package syncio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pureflash/aofclient/internal/volume"
)

func TestDoReturnsCountOnSuccess(t *testing.T) {
	v := volume.NewMemStore(volume.MemStoreConfig{ID: 1, Name: "t", Size: 1 << 20})
	defer v.Close()

	buf := make([]byte, 4096)
	n, err := Do(context.Background(), v, buf, len(buf), 0, volume.Write)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
}

func TestDoSurfacesFailureStatus(t *testing.T) {
	v := volume.NewSimVolume(volume.SimVolumeConfig{
		MemStoreConfig: volume.MemStoreConfig{ID: 1, Name: "t", Size: 1 << 20},
		FailEvery:      1,
	})
	defer v.Close()

	buf := make([]byte, 4096)
	_, err := Do(context.Background(), v, buf, len(buf), 0, volume.Read)
	require.Error(t, err)

	var ioErr *Error
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, volume.EIO, ioErr.Status)
}

func TestDoRejectsOutOfRangeSubmission(t *testing.T) {
	v := volume.NewMemStore(volume.MemStoreConfig{ID: 1, Name: "t", Size: 4096})
	defer v.Close()

	buf := make([]byte, 4096)
	_, err := Do(context.Background(), v, buf, len(buf), 4096, volume.Read)
	require.Error(t, err)
}
