package unifs

import "testing"

// buildImage assembles a {magic, [{name, size, payload}...]} boot ROM image
// in the exact layout Mount expects.
func buildImage(files map[string][]byte, order []string) []byte {
	img := []byte(Magic)
	for _, name := range order {
		data := files[name]
		nameField := make([]byte, NameFieldSize)
		copy(nameField, name)
		img = append(img, nameField...)
		img = append(img, byte(len(data)), byte(len(data)>>8), byte(len(data)>>16), byte(len(data)>>24))
		img = append(img, data...)
	}
	return img
}

func TestMountRejectsBadMagic(t *testing.T) {
	if _, _, err := Mount([]byte("not a unifs image")); err != errBadMagic {
		t.Fatalf("expected errBadMagic, got %v", err)
	}
}

func TestMountParsesRecordsAndTotals(t *testing.T) {
	img := buildImage(map[string][]byte{
		"init":     []byte("#!/bin/init\n"),
		"motd.txt": []byte("welcome"),
	}, []string{"init", "motd.txt"})

	fs, root, err := Mount(img)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if fs.FileCount() != 2 {
		t.Fatalf("expected 2 records, got %d", fs.FileCount())
	}
	if fs.TotalSize() != uint64(len("#!/bin/init\n")+len("welcome")) {
		t.Fatalf("unexpected TotalSize: %d", fs.TotalSize())
	}
	if !root.IsDir {
		t.Fatalf("expected root to be a directory")
	}
}

func TestLookupAndReadFile(t *testing.T) {
	img := buildImage(map[string][]byte{
		"init": []byte("hello world"),
	}, []string{"init"})

	_, root, err := Mount(img)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	node, lerr := root.Ops.Lookup(root, "init")
	if lerr != nil {
		t.Fatalf("Lookup: %v", lerr)
	}
	if node.Size != int64(len("hello world")) {
		t.Fatalf("unexpected size %d", node.Size)
	}

	buf := make([]byte, len("hello world"))
	n, rerr := node.Ops.Read(node, 0, buf)
	if rerr != nil || string(buf[:n]) != "hello world" {
		t.Fatalf("Read: got %q err=%v", buf[:n], rerr)
	}
}

func TestLookupMissingFileFails(t *testing.T) {
	img := buildImage(map[string][]byte{"init": []byte("x")}, []string{"init"})
	_, root, _ := Mount(img)

	if _, err := root.Ops.Lookup(root, "nope"); err != errNotFound {
		t.Fatalf("expected errNotFound, got %v", err)
	}
}

func TestWriteIsRejected(t *testing.T) {
	img := buildImage(map[string][]byte{"init": []byte("x")}, []string{"init"})
	_, root, _ := Mount(img)
	node, _ := root.Ops.Lookup(root, "init")

	if _, err := node.Ops.Write(node, 0, []byte("y")); err != errReadOnly {
		t.Fatalf("expected errReadOnly, got %v", err)
	}
}

func TestReaddirListsInOrder(t *testing.T) {
	img := buildImage(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("22"),
	}, []string{"a", "b"})
	_, root, _ := Mount(img)

	e0, _ := root.Ops.Readdir(root, 0)
	e1, _ := root.Ops.Readdir(root, 1)
	e2, _ := root.Ops.Readdir(root, 2)

	if e0.Name != "a" || e1.Name != "b" {
		t.Fatalf("unexpected order: %q, %q", e0.Name, e1.Name)
	}
	if !e2.End {
		t.Fatalf("expected End once index runs past the last record")
	}
}
