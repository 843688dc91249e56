// Package kfmt provides an allocation-free subset of fmt.Printf that is safe
// to call before the Go runtime's allocator and scheduler are initialized.
// Output is buffered in a ring buffer until SetSink attaches the real
// console (see kernel/hal).
package kfmt

import (
	"io"
	"unsafe"
)

const intBufSize = 24

var (
	msgMissingArg = []byte("%!(MISSING)")
	msgBadType    = []byte("%!(BADTYPE)")
	msgNoVerb     = []byte("%!(NOVERB)")
	msgExtraArgs  = []byte("%!(EXTRA)")
	boolTrue      = []byte("true")
	boolFalse     = []byte("false")
	hexDigits     = "0123456789abcdef"

	earlyBuf earlyRing

	// sink is where formatted output goes once attached; nil routes to earlyBuf.
	sink io.Writer
)

// SetSink attaches w as the output target for Printf and flushes anything
// accumulated in the early ring buffer into it.
func SetSink(w io.Writer) {
	sink = w
	if w != nil {
		io.Copy(w, &earlyBuf)
	}
}

// GetSink returns the currently attached output target, or nil if output is
// still buffered in the early ring.
func GetSink() io.Writer { return sink }

// Printf formats according to a format string and writes to the active sink.
//
// Supported verbs: %s (string/[]byte), %d/%o/%x (signed/unsigned integers,
// uintptr), %t (bool), %c (byte as a single character), %p (pointer, as
// 0x-prefixed hex). An optional decimal width may precede the verb; %x/%o/%p
// pad with '0', everything else pads with ' '.
func Printf(format string, args ...interface{}) {
	Fprintf(sink, format, args...)
}

// Fprintf is Printf but targeting an explicit writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var argIdx int
	i, n := 0, len(format)

	for i < n {
		lit := i
		for i < n && format[i] != '%' {
			i++
		}
		if i > lit {
			writeLiteral(w, format[lit:i])
		}
		if i >= n {
			break
		}

		// format[i] == '%'
		i++
		width := 0
		for i < n && format[i] >= '0' && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}
		if i >= n {
			writeLiteral(w, "%")
			break
		}

		verb := format[i]
		i++

		if verb == '%' {
			writeLiteral(w, "%")
			continue
		}

		if argIdx >= len(args) {
			writeRaw(w, msgMissingArg)
			continue
		}
		arg := args[argIdx]
		argIdx++

		switch verb {
		case 'd':
			writeInt(w, arg, 10, width)
		case 'o':
			writeInt(w, arg, 8, width)
		case 'x':
			writeInt(w, arg, 16, width)
		case 's':
			writeString(w, arg, width)
		case 't':
			writeBool(w, arg)
		case 'c':
			writeChar(w, arg)
		case 'p':
			writePointer(w, arg)
		default:
			writeRaw(w, msgNoVerb)
		}
	}

	for ; argIdx < len(args); argIdx++ {
		writeRaw(w, msgExtraArgs)
	}
}

func writeLiteral(w io.Writer, p string) {
	for i := 0; i < len(p); i++ {
		one := [1]byte{p[i]}
		writeRaw(w, one[:])
	}
}

func writeBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	if !ok {
		writeRaw(w, msgBadType)
		return
	}
	if b {
		writeRaw(w, boolTrue)
	} else {
		writeRaw(w, boolFalse)
	}
}

func writeChar(w io.Writer, v interface{}) {
	switch c := v.(type) {
	case byte:
		one := [1]byte{c}
		writeRaw(w, one[:])
	case rune:
		one := [1]byte{byte(c)}
		writeRaw(w, one[:])
	default:
		writeRaw(w, msgBadType)
	}
}

func writeString(w io.Writer, v interface{}, width int) {
	var s []byte
	switch cast := v.(type) {
	case string:
		// indexing byte-by-byte avoids the string->[]byte conversion,
		// which would allocate.
		for pad := width - len(cast); pad > 0; pad-- {
			writeRaw(w, []byte{' '})
		}
		for i := 0; i < len(cast); i++ {
			one := [1]byte{cast[i]}
			writeRaw(w, one[:])
		}
		return
	case []byte:
		s = cast
	default:
		writeRaw(w, msgBadType)
		return
	}

	for pad := width - len(s); pad > 0; pad-- {
		writeRaw(w, []byte{' '})
	}
	writeRaw(w, s)
}

func writePointer(w io.Writer, v interface{}) {
	var p uintptr
	switch cast := v.(type) {
	case uintptr:
		p = cast
	case unsafe.Pointer:
		p = uintptr(cast)
	default:
		writeRaw(w, msgBadType)
		return
	}
	writeRaw(w, []byte{'0', 'x'})
	writeInt(w, p, 16, 16)
}

// writeInt renders v (any built-in integer type) in the given base,
// left-padded to width. '0' padding is used for base 8/16, ' ' for base 10.
func writeInt(w io.Writer, v interface{}, base, width int) {
	var (
		buf      [intBufSize]byte
		uval     uint64
		negative bool
	)

	switch cast := v.(type) {
	case uint8:
		uval = uint64(cast)
	case uint16:
		uval = uint64(cast)
	case uint32:
		uval = uint64(cast)
	case uint64:
		uval = cast
	case uintptr:
		uval = uint64(cast)
	case int8:
		negative, uval = splitSign(int64(cast))
	case int16:
		negative, uval = splitSign(int64(cast))
	case int32:
		negative, uval = splitSign(int64(cast))
	case int64:
		negative, uval = splitSign(cast)
	case int:
		negative, uval = splitSign(int64(cast))
	default:
		writeRaw(w, msgBadType)
		return
	}

	padCh := byte(' ')
	if base != 10 {
		padCh = '0'
	}

	pos := intBufSize
	for {
		pos--
		buf[pos] = hexDigits[uval%uint64(base)]
		uval /= uint64(base)
		if uval == 0 {
			break
		}
	}

	digits := intBufSize - pos
	signLen := 0
	if negative {
		signLen = 1
	}
	for digits+signLen < width {
		pos--
		buf[pos] = padCh
		digits++
	}
	if negative {
		pos--
		buf[pos] = '-'
	}

	writeRaw(w, buf[pos:])
}

func splitSign(v int64) (negative bool, mag uint64) {
	if v < 0 {
		return true, uint64(-v)
	}
	return false, uint64(v)
}

// writeRaw hides p from escape analysis so calling Printf before the
// allocator is live does not trigger a heap allocation via runtime.convT2E.
func writeRaw(w io.Writer, p []byte) {
	writeRawReal(w, noEscape(unsafe.Pointer(&p)))
}

func writeRawReal(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyBuf.Write(p)
	}
}

//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
