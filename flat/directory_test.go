package flat

import (
	"testing"

	"github.com/rstms/lfs"
	"github.com/stretchr/testify/require"
)

func TestStatRoot(t *testing.T) {
	f := newTestFS(t)
	info, err := f.Stat("/")
	require.Nil(t, err)
	require.True(t, info.IsDir)
	require.Equal(t, "/", info.Name)
}

func TestMkdirAndStat(t *testing.T) {
	f := newTestFS(t)
	require.Nil(t, f.Mkdir("/logs"))

	info, err := f.Stat("/logs")
	require.Nil(t, err)
	require.True(t, info.IsDir)
	require.Equal(t, "logs", info.Name)

	// same entry with and without the leading slash
	_, err = f.Stat("logs")
	require.Nil(t, err)
}

func TestMkdirDuplicate(t *testing.T) {
	f := newTestFS(t)
	require.Nil(t, f.Mkdir("/logs"))
	require.Equal(t, lfs.ErrExist, f.Mkdir("/logs"))
}

func TestMkdirMissingParent(t *testing.T) {
	f := newTestFS(t)
	require.Equal(t, lfs.ErrNoEnt, f.Mkdir("/missing/child"))
}

func TestMkdirUnderFile(t *testing.T) {
	f := newTestFS(t)
	h, err := f.OpenFile("/data", true)
	require.Nil(t, err)
	require.Nil(t, h.Close())

	require.Equal(t, lfs.ErrNotDir, f.Mkdir("/data/child"))
}

func TestMkdirRoot(t *testing.T) {
	f := newTestFS(t)
	require.Equal(t, lfs.ErrExist, f.Mkdir("/"))
}

func TestMkdirNameTooLong(t *testing.T) {
	f := newTestFS(t)
	name := make([]byte, nameMax+1)
	for i := range name {
		name[i] = 'x'
	}
	require.Equal(t, lfs.ErrInval, f.Mkdir("/"+string(name)))
}

func TestRemoveDirectory(t *testing.T) {
	f := newTestFS(t)
	require.Nil(t, f.Mkdir("/tmp"))
	require.Nil(t, f.Remove("/tmp"))
	_, err := f.Stat("/tmp")
	require.Equal(t, lfs.ErrNoEnt, err)
}

func TestRemoveMissing(t *testing.T) {
	f := newTestFS(t)
	require.Equal(t, lfs.ErrNoEnt, f.Remove("/missing"))
}

func TestRemoveRoot(t *testing.T) {
	f := newTestFS(t)
	require.Equal(t, lfs.ErrInval, f.Remove("/"))
}

func TestRemoveNonEmpty(t *testing.T) {
	f := newTestFS(t)
	require.Nil(t, f.Mkdir("/d"))
	require.Nil(t, f.Mkdir("/d/sub"))
	require.Equal(t, lfs.ErrNotEmpty, f.Remove("/d"))
	require.Nil(t, f.Remove("/d/sub"))
	require.Nil(t, f.Remove("/d"))
}

func TestReadDir(t *testing.T) {
	f := newTestFS(t)
	require.Nil(t, f.Mkdir("/etc"))
	require.Nil(t, f.Mkdir("/etc/conf"))
	h, err := f.OpenFile("/etc/hosts", true)
	require.Nil(t, err)
	_, err = h.Write([]byte("localhost"))
	require.Nil(t, err)
	require.Nil(t, h.Close())

	infos, err := f.ReadDir("/etc")
	require.Nil(t, err)
	require.Len(t, infos, 2)
	byName := map[string]lfs.Info{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.True(t, byName["conf"].IsDir)
	require.False(t, byName["hosts"].IsDir)
	require.Equal(t, uint32(9), byName["hosts"].Size)

	// listing only reports immediate children
	infos, err = f.ReadDir("/")
	require.Nil(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "etc", infos[0].Name)
}

func TestReadDirOnFile(t *testing.T) {
	f := newTestFS(t)
	h, err := f.OpenFile("/f", true)
	require.Nil(t, err)
	require.Nil(t, h.Close())
	_, err = f.ReadDir("/f")
	require.Equal(t, lfs.ErrNotDir, err)
}

func TestEntryTableExhaustion(t *testing.T) {
	cfg := newTestConfig(16) // 2 entry blocks, 4 slots
	require.Nil(t, Format(cfg))
	f, err := Mount(cfg)
	require.Nil(t, err)

	require.Nil(t, f.Mkdir("/d0"))
	require.Nil(t, f.Mkdir("/d1"))
	require.Nil(t, f.Mkdir("/d2"))
	require.Nil(t, f.Mkdir("/d3"))
	require.Equal(t, lfs.ErrNoSpace, f.Mkdir("/d4"))

	// slots are reusable after removal
	require.Nil(t, f.Remove("/d0"))
	require.Nil(t, f.Mkdir("/d4"))
}

func TestEntriesPersistAcrossRemount(t *testing.T) {
	cfg := newTestConfig(64)
	require.Nil(t, Format(cfg))
	f, err := Mount(cfg)
	require.Nil(t, err)
	require.Nil(t, f.Mkdir("/persist"))
	require.Nil(t, f.Mkdir("/persist/deep"))
	require.Nil(t, f.Unmount())

	f, err = Mount(cfg)
	require.Nil(t, err)
	info, err := f.Stat("/persist/deep")
	require.Nil(t, err)
	require.True(t, info.IsDir)
}
