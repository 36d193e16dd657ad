// Package testutil checks io.ReaderAt implementations against a
// reference, including hole enumeration.
package testutil

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

type HoleReaderAt interface {
	io.ReaderAt
	NextData(off int64) (int64, error)
	NextHole(off int64) (int64, error)
}

func checkedReadAt(t *testing.T, r io.ReaderAt, b []byte, off int64, rem int64) int {
	t.Helper()

	eofRead := int64(len(b)) > rem
	n, err := r.ReadAt(b, off)
	if eofRead {
		if n != int(rem) {
			t.Errorf("off: %d Read %d != rem %d", off, n, rem)
		}
		if err != io.EOF {
			t.Errorf("Error %v != expected EOF", err)
		}
	} else {
		if n != len(b) {
			t.Errorf("Read %d != size %d", n, len(b))
		}
		if err != nil {
			t.Errorf("Error %v", err)
		}
	}
	return n
}

// CheckReaderAt reads tested and expected in lockstep, sequentially
// and then at random offsets, and reports any divergence.
func CheckReaderAt(t *testing.T, tested, expected io.ReaderAt, size int64, maxReadSize int) {
	t.Helper()

	testReadBuf := make([]byte, maxReadSize)
	expReadBuf := make([]byte, maxReadSize)

	check := func(off int64, readSize int) {
		clear(testReadBuf)
		clear(expReadBuf)

		rem := size - off
		testedN := checkedReadAt(t, tested, testReadBuf[:readSize], off, rem)
		expectedN := checkedReadAt(t, expected, expReadBuf[:readSize], off, rem)

		if testedN != expectedN {
			t.Errorf("test read %d != expected read %d", testedN, expectedN)
		}
		if !bytes.Equal(testReadBuf, expReadBuf) {
			t.Errorf("test read buf != expected read buf at off %d, len %d", off, readSize)
		}
	}

	off := int64(0)
	for off < size {
		readSize := rand.Intn(maxReadSize) + 1
		check(off, readSize)
		n := readSize
		if rem := size - off; int64(n) > rem {
			n = int(rem)
		}
		off += int64(n)
	}

	const RandReadIterations = 1000
	for i := 0; i < RandReadIterations; i++ {
		check(rand.Int63n(size), rand.Intn(maxReadSize)+1)
	}
}

// CheckHoleReaderAt walks the data extents of tested, checking each
// against expected, and checks that the holes between them read as
// zeros.
func CheckHoleReaderAt(t *testing.T, tested HoleReaderAt, expected io.ReaderAt, size int64) {
	t.Helper()

	off := int64(0)
	for off < size {
		dataOff, err := tested.NextData(off)
		if err == io.EOF {
			break
		} else if err != nil {
			t.Error(err)
			break
		}

		// The gap before the data must read as zeros.
		for _, v := range readAll(t, tested, off, dataOff-off) {
			if v != 0 {
				t.Errorf("non-zero byte in hole [%d, %d)", off, dataOff)
				break
			}
		}

		holeOff, err := tested.NextHole(dataOff)
		if err != nil {
			t.Error(err)
			break
		}
		dataLen := holeOff - dataOff
		if dataLen <= 0 {
			t.Errorf("NextHole(%d) %d not beyond data start", dataOff, holeOff)
			break
		}
		testedBuf := readAll(t, tested, dataOff, dataLen)
		expectedBuf := readAll(t, expected, dataOff, dataLen)
		if !bytes.Equal(testedBuf, expectedBuf) {
			t.Errorf("data extent [%d, %d) != expected", dataOff, holeOff)
		}

		off = holeOff
	}
}

func readAll(t *testing.T, r io.ReaderAt, off, size int64) []byte {
	t.Helper()
	b, err := io.ReadAll(io.NewSectionReader(r, off, size))
	if err != nil {
		t.Errorf("ReadAll(%d, %d) error %v", off, size, err)
	}
	return b
}
