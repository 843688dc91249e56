package main

import "github.com/BurntSushi/toml"

// Manifest lists the host files that become unifs records or FAT32
// directory entries, keyed by the name they are exposed under inside the
// image.
type Manifest struct {
	Files []ManifestFile `toml:"files"`
}

// ManifestFile is one [[files]] entry.
type ManifestFile struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

func loadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
