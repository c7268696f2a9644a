package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Asset is one file to place into an archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets bundles the assets into a single zip. Assets without a
// filename get a positional one; duplicate names are disambiguated the same
// way so no entry silently overwrites another.
func ArchiveAssets(assets []Asset) []byte {
	if len(assets) == 0 {
		return nil
	}
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(assets))
	for i, asset := range assets {
		name := asset.Filename
		if name == "" {
			name = fmt.Sprintf("asset-%02d", i+1)
		}
		if _, dup := seen[name]; dup {
			name = fmt.Sprintf("%02d-%s", i+1, name)
		}
		seen[name] = struct{}{}
		w, err := zw.Create(name)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
