package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/achilleasa/uniker/kernel/vfs/unifs"
)

// imageCommand assembles a unifs boot ROM image from a manifest.
type imageCommand struct {
	manifest string
	out      string
}

func (*imageCommand) Name() string     { return "image" }
func (*imageCommand) Synopsis() string { return "assemble a unifs boot ROM image from a manifest" }
func (*imageCommand) Usage() string {
	return "image -manifest <manifest.toml> -out <boot.rom>\n"
}

func (c *imageCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.manifest, "manifest", "", "path to the TOML manifest")
	f.StringVar(&c.out, "out", "boot.rom", "output image path")
}

func (c *imageCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.manifest == "" {
		log.Error("-manifest is required")
		return subcommands.ExitUsageError
	}

	m, err := loadManifest(c.manifest)
	if err != nil {
		log.WithError(err).Error("failed to read manifest")
		return subcommands.ExitFailure
	}

	img, err := buildUnifsImage(m)
	if err != nil {
		log.WithError(err).Error("failed to build boot ROM image")
		return subcommands.ExitFailure
	}

	if err := os.WriteFile(c.out, img, 0o644); err != nil {
		log.WithError(err).Error("failed to write image")
		return subcommands.ExitFailure
	}

	log.WithFields(logrus.Fields{
		"out":   c.out,
		"files": len(m.Files),
		"bytes": len(img),
	}).Info("wrote boot ROM image")
	return subcommands.ExitSuccess
}

// buildUnifsImage lays out a {magic, [{name, size, payload}...]} image
// matching what kernel/vfs/unifs.Mount parses.
func buildUnifsImage(m *Manifest) ([]byte, error) {
	img := []byte(unifs.Magic)
	for _, f := range m.Files {
		if len(f.Name) > unifs.NameFieldSize {
			return nil, fmt.Errorf("record name %q longer than %d bytes", f.Name, unifs.NameFieldSize)
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}

		nameField := make([]byte, unifs.NameFieldSize)
		copy(nameField, f.Name)
		img = append(img, nameField...)

		size := uint32(len(data))
		img = append(img, byte(size), byte(size>>8), byte(size>>16), byte(size>>24))
		img = append(img, data...)
	}
	return img, nil
}
