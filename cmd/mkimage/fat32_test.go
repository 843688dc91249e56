package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/achilleasa/uniker/kernel/block"
	"github.com/achilleasa/uniker/kernel/vfs/fat32"
)

func TestBuildFAT32ImageRoundTripsThroughMount(t *testing.T) {
	dir := t.TempDir()
	hiPath := filepath.Join(dir, "hi")
	if err := os.WriteFile(hiPath, []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := &Manifest{Files: []ManifestFile{{Name: "HI.TXT", Path: hiPath}}}
	img, err := buildFAT32Image(m)
	if err != nil {
		t.Fatalf("buildFAT32Image: %v", err)
	}

	dev := block.NewRAMDisk(img)
	_, root, merr := fat32.Mount(dev)
	if merr != nil {
		t.Fatalf("Mount: %v", merr)
	}

	node, lerr := root.Ops.Lookup(root, "HI.TXT")
	if lerr != nil {
		t.Fatalf("Lookup: %v", lerr)
	}
	if node.Size != 2 {
		t.Fatalf("expected size 2, got %d", node.Size)
	}

	buf := make([]byte, 2)
	n, rerr := node.Ops.Read(node, 0, buf)
	if rerr != nil || string(buf[:n]) != "hi" {
		t.Fatalf("Read: got %q err=%v", buf[:n], rerr)
	}
}

func TestTo83RejectsNamesThatDoNotFit(t *testing.T) {
	if _, err := to83("way-too-long-basename.txt"); err == nil {
		t.Fatalf("expected an error for a basename longer than 8 characters")
	}
}

func TestTo83PadsAndUppercases(t *testing.T) {
	got, err := to83("hi.txt")
	if err != nil {
		t.Fatalf("to83: %v", err)
	}
	if string(got[:]) != "HI      TXT" {
		t.Fatalf("unexpected short name %q", string(got[:]))
	}
}
