package pipe

import "testing"

func resetSlots() {
	lock.Acquire()
	slots = [MaxPipes]slot{}
	lock.Release()
}

func TestCreateReadWriteRoundTrip(t *testing.T) {
	resetSlots()
	readEnd, writeEnd, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, werr := writeEnd.Ops.Write(writeEnd, 0, []byte("hello"))
	if werr != nil || n != 5 {
		t.Fatalf("write: n=%d err=%v", n, werr)
	}

	buf := make([]byte, 5)
	n, rerr := readEnd.Ops.Read(readEnd, 0, buf)
	if rerr != nil || string(buf[:n]) != "hello" {
		t.Fatalf("read: got %q err=%v", buf[:n], rerr)
	}
}

func TestReadReturnsEOFOnceWriteEndClosedAndDrained(t *testing.T) {
	resetSlots()
	readEnd, writeEnd, _ := Create()
	writeEnd.Ops.Write(writeEnd, 0, []byte("hi"))
	writeEnd.Ops.Close(writeEnd)

	buf := make([]byte, 2)
	n, err := readEnd.Ops.Read(readEnd, 0, buf)
	if err != nil || n != 2 {
		t.Fatalf("expected the buffered bytes before EOF, got n=%d err=%v", n, err)
	}

	n, err = readEnd.Ops.Read(readEnd, 0, buf)
	if err != nil || n != 0 {
		t.Fatalf("expected EOF (n=0, err=nil) once drained and write end closed, got n=%d err=%v", n, err)
	}
}

func TestWriteAfterReadCloseFails(t *testing.T) {
	resetSlots()
	readEnd, writeEnd, _ := Create()
	readEnd.Ops.Close(readEnd)

	_, err := writeEnd.Ops.Write(writeEnd, 0, []byte("x"))
	if err != errReadClosed {
		t.Fatalf("expected errReadClosed, got %v", err)
	}
}

func TestClosingBothEndsFreesSlot(t *testing.T) {
	resetSlots()
	readEnd, writeEnd, _ := Create()
	id := int(readEnd.FSData)

	readEnd.Ops.Close(readEnd)
	lock.Acquire()
	stillInUse := slots[id].inUse
	lock.Release()
	if !stillInUse {
		t.Fatalf("expected slot to stay allocated until both ends close")
	}

	writeEnd.Ops.Close(writeEnd)
	lock.Acquire()
	freed := !slots[id].inUse
	lock.Release()
	if !freed {
		t.Fatalf("expected slot to be freed once both ends are closed")
	}
}

func TestWriteFillsToCapacityThenShortWrites(t *testing.T) {
	resetSlots()
	_, writeEnd, _ := Create()
	big := make([]byte, BufferSize+10)
	n, err := writeEnd.Ops.Write(writeEnd, 0, big)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != BufferSize {
		t.Fatalf("expected a short write capped at BufferSize, got %d", n)
	}
}
