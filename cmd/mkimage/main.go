// Command mkimage is the hosted build tool that assembles the boot ROM
// image (kernel/vfs/unifs) and a test FAT32 disk image (kernel/vfs/fat32)
// from a TOML manifest. Unlike the rest of this repository it runs on the
// host under a normal OS, so it is the one place the pack's ordinary
// application dependencies have a legitimate home: github.com/google/
// subcommands structures the CLI, github.com/BurntSushi/toml decodes the
// manifest, and github.com/sirupsen/logrus reports build progress.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&imageCommand{}, "")
	subcommands.Register(&fat32Command{}, "")

	flag.Parse()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	os.Exit(int(subcommands.Execute(context.Background())))
}
