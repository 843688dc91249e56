package kmain

import (
	"testing"

	"github.com/achilleasa/uniker/kernel/hal/boot"
	"github.com/achilleasa/uniker/kernel/vfs"
	"github.com/achilleasa/uniker/kernel/vfs/unifs"
)

// buildUnifsImage assembles a minimal {magic, [{name, size, payload}...]}
// boot ROM image, mirroring the layout unifs.Mount expects.
func buildUnifsImage(name string, data []byte) []byte {
	img := []byte(unifs.Magic)
	nameField := make([]byte, 32)
	copy(nameField, name)
	img = append(img, nameField...)
	img = append(img, byte(len(data)), byte(len(data)>>8), byte(len(data)>>16), byte(len(data)>>24))
	img = append(img, data...)
	return img
}

func TestMountFilesystemsMountsBootROMAtRoot(t *testing.T) {
	img := buildUnifsImage("motd.txt", []byte("hello"))

	prevBytes := moduleBytes
	defer func() { moduleBytes = prevBytes }()
	moduleBytes = func(m *boot.Module) []byte { return img }

	boot.SetHandoff(&boot.Handoff{
		Modules: []boot.Module{{Path: "boot.rom"}},
	})

	mountFilesystems()

	node, err := vfs.LookupVnode("/motd.txt")
	if err != nil {
		t.Fatalf("LookupVnode: %v", err)
	}
	buf := make([]byte, 5)
	n, rerr := node.Ops.Read(node, 0, buf)
	if rerr != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Read: got %q err=%v", buf[:n], rerr)
	}
}
