/*
Copyright © 2018 the coecms-util authors.
This file is part of coecms-util.

coecms-util is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

coecms-util is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with coecms-util.  If not, see <http://www.gnu.org/licenses/>.*/

// Package um reads and writes Unified Model fields files: dumps,
// fieldsfiles and ancillaries. The on-disk format is a sequence of
// big-endian 64-bit words, laid out as a 256-word fixed-length header,
// optional integer/real/level-dependent constant blocks, a lookup
// table of 64-word field headers, and the field data records (UMDP
// F03). Only unpacked data (lbpack = 0) is supported.
package um

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ctessum/sparse"
)

// Missing-data sentinels used in UM headers and field data.
const (
	IntMissing  int64   = -32768
	RealMissing float64 = -1073741824.0
)

// Fixed-length header word positions (1-based, UMDP F03).
const (
	FHVersion        = 1
	FHSubModel       = 2
	FHVertCoordType  = 3
	FHHorizGridType  = 4
	FHDatasetType    = 5
	FHCalendar       = 8
	FHGridStaggering = 9
	FHTimeType       = 10
	FHModelVersion   = 12

	// First validity time, last validity time and interval, each
	// spanning seven words: year, month, day, hour, minute, second,
	// day of year.
	FHT1Year = 21
	FHT2Year = 28
	FHT3Year = 35

	FHIntConstStart  = 100
	FHIntConstLen    = 101
	FHRealConstStart = 105
	FHRealConstLen   = 106
	FHLevConstStart  = 110
	FHLevConstDim1   = 111
	FHLevConstDim2   = 112
	FHRowConstStart  = 115
	FHRowConstDim1   = 116
	FHRowConstDim2   = 117
	FHColConstStart  = 120
	FHColConstDim1   = 121
	FHColConstDim2   = 122
	FHLookupStart    = 150
	FHLookupDim1     = 151
	FHLookupDim2     = 152
	FHDataStart      = 160
	FHDataSize       = 161
)

// Dataset types (fixed-length header word 5).
const (
	DatasetInstDump  = 1
	DatasetMeanDump  = 2
	DatasetFields    = 3
	DatasetAncillary = 4
)

// Integer-constant word positions.
const (
	ICNumTimes      = 3
	ICNumCols       = 6
	ICNumRows       = 7
	ICNumLevels     = 8
	ICNumFieldTypes = 15
)

// Real-constant word positions.
const (
	RCColSpacing = 1
	RCRowSpacing = 2
	RCStartLat   = 3
	RCStartLon   = 4
	RCPoleLat    = 5
	RCPoleLon    = 6
)

// Lookup integer word positions (1-based; words 1-45 are integers).
const (
	LBYR    = 1
	LBMON   = 2
	LBDAT   = 3
	LBHR    = 4
	LBMIN   = 5
	LBSEC   = 6
	LBTIM   = 13
	LBFT    = 14
	LBLREC  = 15
	LBCODE  = 16
	LBHEM   = 17
	LBROW   = 18
	LBNPT   = 19
	LBEXT   = 20
	LBPACK  = 21
	LBREL   = 22
	LBFC    = 23
	LBPROC  = 25
	LBVC    = 26
	LBEGIN  = 29
	LBNREC  = 30
	LBLEV   = 33
	LBUSER1 = 39
	LBUSER2 = 40
	LBUSER3 = 41
	LBUSER4 = 42
	LBUSER5 = 43
	LBUSER6 = 44
	LBUSER7 = 45
)

// Lookup real word positions (words 46-64 are reals).
const (
	BDATUM = 50
	BACC   = 51
	BLEV   = 52
	BRLEV  = 53
	BHLEV  = 54
	BHRLEV = 55
	BPLAT  = 56
	BPLON  = 57
	BGOR   = 58
	BZY    = 59
	BDY    = 60
	BZX    = 61
	BDX    = 62
	BMDI   = 63
	BMKS   = 64
)

// Data type codes (lookup word LBUSER1).
const (
	TypeReal    = 1
	TypeInteger = 2
	TypeLogical = 3
)

// Input sanity limits, all well above real UM file values.
const (
	maxGridDim   = 30000   // N320 is 640×481
	maxLookups   = 1 << 20 // large dumps have a few thousand fields
	maxConstants = 1 << 16
	sectorWords  = 512 // data records align to 4096-byte disk sectors
)

const (
	lookupWords = 64
	lookupInts  = 45
	fixedWords  = 256
)

// FixedHeader is the 256-word fixed-length header at the start of
// every fields file.
type FixedHeader [fixedWords]int64

// Word returns the header word at the given 1-based position.
func (h *FixedHeader) Word(pos int) int64 { return h[pos-1] }

// SetWord sets the header word at the given 1-based position.
func (h *FixedHeader) SetWord(pos int, v int64) { h[pos-1] = v }

// A Lookup is the 64-word header describing one field: 45 integer
// words followed by 19 real words.
type Lookup struct {
	Ints  [lookupInts]int64
	Reals [lookupWords - lookupInts]float64
}

// Int returns the lookup word at the given 1-based position, which
// must be between 1 and 45.
func (l *Lookup) Int(pos int) int64 { return l.Ints[pos-1] }

// SetInt sets the lookup word at the given 1-based position.
func (l *Lookup) SetInt(pos int, v int64) { l.Ints[pos-1] = v }

// Real returns the lookup word at the given 1-based position, which
// must be between 46 and 64.
func (l *Lookup) Real(pos int) float64 { return l.Reals[pos-1-lookupInts] }

// SetReal sets the lookup word at the given 1-based position.
func (l *Lookup) SetReal(pos int, v float64) { l.Reals[pos-1-lookupInts] = v }

// Stash returns the field's STASH section/item code.
func (l *Lookup) Stash() int { return int(l.Int(LBUSER4)) }

// A RealMatrix is a rectangular block of real header constants
// (level, row or column dependent), stored in file order with Dim1
// varying fastest.
type RealMatrix struct {
	Dim1, Dim2 int
	Data       []float64
}

// A Field is one 2-d slice of a fields file: its lookup header, the
// unpacked data shaped [rows, columns], and any trailing extra-data
// words carried through unchanged.
type Field struct {
	Lookup Lookup
	Data   *sparse.DenseArray
	Extra  []uint64
}

// Rows returns the number of grid rows in the field.
func (f *Field) Rows() int { return int(f.Lookup.Int(LBROW)) }

// Cols returns the number of grid columns in the field.
func (f *Field) Cols() int { return int(f.Lookup.Int(LBNPT)) }

// Lats returns the field's latitude axis reconstructed from the
// zeroth-row origin and row spacing.
func (f *Field) Lats() []float64 {
	out := make([]float64, f.Rows())
	bzy, bdy := f.Lookup.Real(BZY), f.Lookup.Real(BDY)
	for j := range out {
		out[j] = bzy + float64(j+1)*bdy
	}
	return out
}

// Lons returns the field's longitude axis reconstructed from the
// zeroth-column origin and column spacing.
func (f *Field) Lons() []float64 {
	out := make([]float64, f.Cols())
	bzx, bdx := f.Lookup.Real(BZX), f.Lookup.Real(BDX)
	for i := range out {
		out[i] = bzx + float64(i+1)*bdx
	}
	return out
}

// Copy returns a field with the same lookup and extra data and a deep
// copy of the data array.
func (f *Field) Copy() *Field {
	out := &Field{Lookup: f.Lookup}
	if f.Data != nil {
		out.Data = f.Data.Copy()
	}
	if f.Extra != nil {
		out.Extra = append([]uint64{}, f.Extra...)
	}
	return out
}

/// A File is an in-memory fields file: dump, fieldsfile or ancillary.
type File struct {
	FixedHeader FixedHeader

	// IntegerConstants and RealConstants are indexed through the IC*
	// and RC* word positions. Either may be nil.
	IntegerConstants []int64
	RealConstants    []float64

	// LevelConstants, RowConstants and ColumnConstants are optional
	// header blocks preserved verbatim.
	LevelConstants  *RealMatrix
	RowConstants    *RealMatrix
	ColumnConstants *RealMatrix

	Fields []*Field
}

// Copy returns a file with the same headers and no fields.
func (f *File) Copy() *File {
	out := &File{FixedHeader: f.FixedHeader}
	if f.IntegerConstants != nil {
		out.IntegerConstants = append([]int64{}, f.IntegerConstants...)
	}
	if f.RealConstants != nil {
		out.RealConstants = append([]float64{}, f.RealConstants...)
	}
	out.LevelConstants = copyMatrix(f.LevelConstants)
	out.RowConstants = copyMatrix(f.RowConstants)
	out.ColumnConstants = copyMatrix(f.ColumnConstants)
	return out
}

func copyMatrix(m *RealMatrix) *RealMatrix {
	if m == nil {
		return nil
	}
	return &RealMatrix{Dim1: m.Dim1, Dim2: m.Dim2, Data: append([]float64{}, m.Data...)}
}

// ReadFile reads a UM fields file. Packed fields (lbpack != 0) are
// not supported and cause an error.
func ReadFile(fileName string) (*File, error) {
	ff, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("um: %v", err)
	}
	defer ff.Close()
	f, err := read(ff)
	if err != nil {
		return nil, fmt.Errorf("um: reading %s: %v", fileName, err)
	}
	return f, nil
}

func read(r io.ReaderAt) (*File, error) {
	f := new(File)
	fixed, err := readWords(r, 0, fixedWords)
	if err != nil {
		return nil, fmt.Errorf("fixed-length header: %v", err)
	}
	for i, w := range fixed {
		f.FixedHeader[i] = int64(w)
	}

	h := &f.FixedHeader
	if n := h.Word(FHIntConstLen); h.Word(FHIntConstStart) > 0 && n > 0 {
		if n > maxConstants {
			return nil, fmt.Errorf("integer constants: implausible length %d", n)
		}
		words, err := readWords(r, wordOffset(h.Word(FHIntConstStart)), int(n))
		if err != nil {
			return nil, fmt.Errorf("integer constants: %v", err)
		}
		f.IntegerConstants = make([]int64, n)
		for i, w := range words {
			f.IntegerConstants[i] = int64(w)
		}
	}
	if n := h.Word(FHRealConstLen); h.Word(FHRealConstStart) > 0 && n > 0 {
		if n > maxConstants {
			return nil, fmt.Errorf("real constants: implausible length %d", n)
		}
		words, err := readWords(r, wordOffset(h.Word(FHRealConstStart)), int(n))
		if err != nil {
			return nil, fmt.Errorf("real constants: %v", err)
		}
		f.RealConstants = wordsToFloats(words)
	}
	if f.LevelConstants, err = readMatrix(r, h, FHLevConstStart); err != nil {
		return nil, fmt.Errorf("level-dependent constants: %v", err)
	}
	if f.RowConstants, err = readMatrix(r, h, FHRowConstStart); err != nil {
		return nil, fmt.Errorf("row-dependent constants: %v", err)
	}
	if f.ColumnConstants, err = readMatrix(r, h, FHColConstStart); err != nil {
		return nil, fmt.Errorf("column-dependent constants: %v", err)
	}

	return f, readFields(r, f)
}

func readFields(r io.ReaderAt, f *File) error {
	h := &f.FixedHeader
	start, dim1, dim2 := h.Word(FHLookupStart), h.Word(FHLookupDim1), h.Word(FHLookupDim2)
	if start <= 0 || dim2 <= 0 {
		return nil
	}
	if dim1 != lookupWords {
		return fmt.Errorf("lookup entries are %d words; want %d", dim1, lookupWords)
	}
	if dim2 > maxLookups {
		return fmt.Errorf("implausible lookup count %d", dim2)
	}

	// Sequential cursor for files whose fields carry no disk addresses
	// (lbnrec = 0, pre-well-formed ancillaries).
	cursor := h.Word(FHDataStart) - 1

	for k := int64(0); k < dim2; k++ {
		words, err := readWords(r, wordOffset(start)+k*lookupWords*8, lookupWords)
		if err != nil {
			return fmt.Errorf("lookup %d: %v", k, err)
		}
		var l Lookup
		for i := 0; i < lookupInts; i++ {
			l.Ints[i] = int64(words[i])
		}
		for i := lookupInts; i < lookupWords; i++ {
			l.Reals[i-lookupInts] = math.Float64frombits(words[i])
		}
		if l.Int(LBYR) == -99 { // empty preallocated slot
			continue
		}
		if l.Int(LBPACK) != 0 {
			return fmt.Errorf("lookup %d (STASH %d): packed data (lbpack %d) not supported",
				k, l.Stash(), l.Int(LBPACK))
		}
		rows, cols := l.Int(LBROW), l.Int(LBNPT)
		if rows <= 0 || rows > maxGridDim || cols <= 0 || cols > maxGridDim {
			return fmt.Errorf("lookup %d (STASH %d): implausible grid %d×%d", k, l.Stash(), rows, cols)
		}
		n := l.Int(LBLREC)
		if n < rows*cols {
			return fmt.Errorf("lookup %d (STASH %d): record of %d words cannot hold %d×%d grid",
				k, l.Stash(), n, rows, cols)
		}

		offset := l.Int(LBEGIN)
		if l.Int(LBNREC) == 0 {
			offset = cursor
			cursor += n
		}
		words, err = readWords(r, offset*8, int(n))
		if err != nil {
			return fmt.Errorf("lookup %d (STASH %d): data: %v", k, l.Stash(), err)
		}

		fld := &Field{Lookup: l, Data: sparse.ZerosDense(int(rows), int(cols))}
		switch l.Int(LBUSER1) {
		case TypeReal:
			for i := range fld.Data.Elements {
				fld.Data.Elements[i] = math.Float64frombits(words[i])
			}
		case TypeInteger, TypeLogical:
			for i := range fld.Data.Elements {
				fld.Data.Elements[i] = float64(int64(words[i]))
			}
		default:
			return fmt.Errorf("lookup %d (STASH %d): unknown data type %d", k, l.Stash(), l.Int(LBUSER1))
		}
		if extra := words[rows*cols:]; len(extra) > 0 {
			fld.Extra = append([]uint64{}, extra...)
		}
		f.Fields = append(f.Fields, fld)
	}
	return nil
}

func readMatrix(r io.ReaderAt, h *FixedHeader, startPos int) (*RealMatrix, error) {
	start := h.Word(startPos)
	dim1, dim2 := h.Word(startPos+1), h.Word(startPos+2)
	if start <= 0 || dim1 <= 0 || dim2 <= 0 {
		return nil, nil
	}
	if dim1 > maxConstants || dim2 > maxConstants {
		return nil, fmt.Errorf("implausible dims %d×%d", dim1, dim2)
	}
	words, err := readWords(r, wordOffset(start), int(dim1*dim2))
	if err != nil {
		return nil, err
	}
	return &RealMatrix{Dim1: int(dim1), Dim2: int(dim2), Data: wordsToFloats(words)}, nil
}

// wordOffset converts a 1-based word address to a byte offset.
func wordOffset(word int64) int64 { return (word - 1) * 8 }

func readWords(r io.ReaderAt, offset int64, n int) ([]uint64, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative file offset %d", offset)
	}
	buf := make([]byte, 8*n)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint64(buf[8*i:])
	}
	return out, nil
}

func wordsToFloats(words []uint64) []float64 {
	out := make([]float64, len(words))
	for i, w := range words {
		out[i] = math.Float64frombits(w)
	}
	return out
}

// WriteFile writes the file in well-formed layout: lookup addresses
// filled in and data records aligned to disk sectors.
func (f *File) WriteFile(fileName string) error {
	ff, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("um: %v", err)
	}
	if err := f.write(ff); err != nil {
		ff.Close()
		return fmt.Errorf("um: writing %s: %v", fileName, err)
	}
	if err := ff.Close(); err != nil {
		return fmt.Errorf("um: writing %s: %v", fileName, err)
	}
	return nil
}

func (f *File) write(w io.Writer) error {
	for _, m := range []*RealMatrix{f.LevelConstants, f.RowConstants, f.ColumnConstants} {
		if m != nil && len(m.Data) != m.Dim1*m.Dim2 {
			return fmt.Errorf("constants block holds %d words but dims say %d×%d",
				len(m.Data), m.Dim1, m.Dim2)
		}
	}

	h := f.FixedHeader // copied so layout updates do not mutate f

	// Lay out the header blocks immediately after the fixed-length
	// header, in file order.
	next := int64(fixedWords + 1)
	place := func(startPos int, words int64) {
		if words == 0 {
			h.SetWord(startPos, IntMissing)
			return
		}
		h.SetWord(startPos, next)
		next += words
	}

	place(FHIntConstStart, int64(len(f.IntegerConstants)))
	h.SetWord(FHIntConstLen, blockLen(len(f.IntegerConstants)))
	place(FHRealConstStart, int64(len(f.RealConstants)))
	h.SetWord(FHRealConstLen, blockLen(len(f.RealConstants)))
	placeMatrix(&h, FHLevConstStart, f.LevelConstants, &next)
	placeMatrix(&h, FHRowConstStart, f.RowConstants, &next)
	placeMatrix(&h, FHColConstStart, f.ColumnConstants, &next)

	place(FHLookupStart, int64(len(f.Fields)*lookupWords))
	h.SetWord(FHLookupDim1, lookupWords)
	h.SetWord(FHLookupDim2, int64(len(f.Fields)))

	headerWords := next - 1
	dataStart := (headerWords+sectorWords-1)/sectorWords*sectorWords + 1
	h.SetWord(FHDataStart, dataStart)

	// Assign each field's disk address, sector aligned.
	lookups := make([]Lookup, len(f.Fields))
	begin := dataStart - 1
	for i, fld := range f.Fields {
		rows, cols := fld.Rows(), fld.Cols()
		if fld.Data == nil || len(fld.Data.Elements) != rows*cols {
			return fmt.Errorf("field %d (STASH %d): data does not match %d×%d grid",
				i, fld.Lookup.Stash(), rows, cols)
		}
		n := int64(rows*cols + len(fld.Extra))
		padded := (n + sectorWords - 1) / sectorWords * sectorWords

		l := fld.Lookup
		l.SetInt(LBLREC, n)
		l.SetInt(LBNREC, padded)
		l.SetInt(LBEGIN, begin)
		l.SetInt(LBUSER2, begin-(dataStart-1)+1)
		lookups[i] = l
		begin += padded
	}
	h.SetWord(FHDataSize, begin-(dataStart-1))

	out := newWordWriter(w)
	for pos := 1; pos <= fixedWords; pos++ {
		out.putInt(h.Word(pos))
	}
	for _, v := range f.IntegerConstants {
		out.putInt(v)
	}
	for _, v := range f.RealConstants {
		out.putReal(v)
	}
	for _, m := range []*RealMatrix{f.LevelConstants, f.RowConstants, f.ColumnConstants} {
		if m != nil {
			for _, v := range m.Data {
				out.putReal(v)
			}
		}
	}
	for i := range lookups {
		for pos := 1; pos <= lookupInts; pos++ {
			out.putInt(lookups[i].Int(pos))
		}
		for pos := lookupInts + 1; pos <= lookupWords; pos++ {
			out.putReal(lookups[i].Real(pos))
		}
	}
	out.pad(dataStart - 1 - headerWords)

	for i, fld := range f.Fields {
		n := int64(0)
		switch fld.Lookup.Int(LBUSER1) {
		case TypeInteger, TypeLogical:
			for _, v := range fld.Data.Elements {
				out.putInt(int64(math.Round(v)))
				n++
			}
		default:
			for _, v := range fld.Data.Elements {
				out.putReal(v)
				n++
			}
		}
		for _, w := range fld.Extra {
			out.putWord(w)
			n++
		}
		out.pad(lookups[i].Int(LBNREC) - n)
	}
	return out.flush()
}

func blockLen(n int) int64 {
	if n == 0 {
		return IntMissing
	}
	return int64(n)
}

func placeMatrix(h *FixedHeader, startPos int, m *RealMatrix, next *int64) {
	if m == nil {
		h.SetWord(startPos, IntMissing)
		h.SetWord(startPos+1, IntMissing)
		h.SetWord(startPos+2, IntMissing)
		return
	}
	h.SetWord(startPos, *next)
	h.SetWord(startPos+1, int64(m.Dim1))
	h.SetWord(startPos+2, int64(m.Dim2))
	*next += int64(m.Dim1 * m.Dim2)
}

// wordWriter buffers big-endian 64-bit words, holding the first write
// error until flush.
type wordWriter struct {
	w   io.Writer
	buf []byte
	err error
}

func newWordWriter(w io.Writer) *wordWriter {
	return &wordWriter{w: w, buf: make([]byte, 0, 8*sectorWords)}
}

func (w *wordWriter) putWord(v uint64) {
	if len(w.buf) == cap(w.buf) {
		w.drain()
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *wordWriter) putInt(v int64) { w.putWord(uint64(v)) }

func (w *wordWriter) putReal(v float64) { w.putWord(math.Float64bits(v)) }

func (w *wordWriter) pad(n int64) {
	for i := int64(0); i < n; i++ {
		w.putWord(0)
	}
}

func (w *wordWriter) drain() {
	if w.err == nil && len(w.buf) > 0 {
		_, w.err = w.w.Write(w.buf)
	}
	w.buf = w.buf[:0]
}

func (w *wordWriter) flush() error {
	w.drain()
	return w.err
}
