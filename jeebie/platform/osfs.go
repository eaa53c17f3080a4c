package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// OSFilesystem implements Filesystem over a local OS directory instead of a
// FAT-formatted BlockDevice. It lets the desktop frontends (cmd/jeebie) drive
// the same jeebie/romselect menu a bare-metal platform would, rather than
// hard-coding a single --rom path. Cluster numbers are repurposed as indices
// into the directory listing taken at Mount time; a real bare-metal
// Filesystem would return actual FAT cluster numbers instead.
type OSFilesystem struct {
	dir  string
	roms []osRomEntry
}

type osRomEntry struct {
	name string
	path string
	size uint32
}

// NewOSFilesystem creates a Filesystem rooted at dir. Mount must be called
// before CountRoms/RomName/FindRom/ReadFile return anything useful.
func NewOSFilesystem(dir string) *OSFilesystem {
	return &OSFilesystem{dir: dir}
}

func (fs *OSFilesystem) Mount() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return err
	}

	roms := make([]osRomEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsROMFileName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		roms = append(roms, osRomEntry{
			name: e.Name(),
			path: filepath.Join(fs.dir, e.Name()),
			size: uint32(info.Size()),
		})
	}

	fs.roms = roms
	return nil
}

func (fs *OSFilesystem) CountRoms() int {
	return len(fs.roms)
}

func (fs *OSFilesystem) RomName(i int) (string, error) {
	if i < 0 || i >= len(fs.roms) {
		return "", fmt.Errorf("platform: rom index %d out of range", i)
	}
	return fs.roms[i].name, nil
}

func (fs *OSFilesystem) FindRom(i int) (cluster, size uint32, ok bool) {
	if i < 0 || i >= len(fs.roms) {
		return 0, 0, false
	}
	return uint32(i), fs.roms[i].size, true
}

func (fs *OSFilesystem) ReadFile(cluster, size uint32, dst []byte) error {
	idx := int(cluster)
	if idx < 0 || idx >= len(fs.roms) {
		return fmt.Errorf("platform: no rom at cluster %d", cluster)
	}

	data, err := os.ReadFile(fs.roms[idx].path)
	if err != nil {
		return err
	}
	if uint32(len(data)) != size {
		return fmt.Errorf("platform: %s size changed since mount (%d != %d)", fs.roms[idx].name, len(data), size)
	}

	copy(dst, data)
	return nil
}
