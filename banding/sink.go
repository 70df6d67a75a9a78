package banding

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/refband/pileup"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

func init() {
	recordiozstd.Init()
}

// TSVSink writes the record stream as tab-separated text.  Every row has the
// columns CHROM, POS, END, SAMPLE, KIND, TLOD, DP, MIN_DP, PAYLOAD; block
// rows leave PAYLOAD as '.', call rows leave the three summary columns as
// '.' and write their payload verbatim.  Positions are 1-based in text.
type TSVSink struct {
	w          *tsv.Writer
	headerDone bool
}

// NewTSVSink returns a TSVSink writing to w.  The column header line is
// written ahead of the first record.
func NewTSVSink(w io.Writer) *TSVSink {
	return &TSVSink{w: tsv.NewWriter(w)}
}

func (s *TSVSink) writeHeader() error {
	s.w.WriteString("#CHROM\tPOS\tEND\tSAMPLE\tKIND\tTLOD\tDP\tMIN_DP\tPAYLOAD")
	return s.w.EndLine()
}

// Accept implements Sink.
func (s *TSVSink) Accept(rec Record) error {
	if !s.headerDone {
		if err := s.writeHeader(); err != nil {
			return err
		}
		s.headerDone = true
	}
	contig, start, end := rec.Span()
	s.w.WriteString(contig)
	s.w.WriteUint32(uint32(start + 1))
	s.w.WriteUint32(uint32(end + 1))
	switch r := rec.(type) {
	case Block:
		s.w.WriteString(r.Sample)
		s.w.WriteString("ref_block")
		s.w.WriteString(strconv.FormatFloat(r.LOD, 'f', 2, 64))
		s.w.WriteUint32(uint32(r.DP))
		s.w.WriteUint32(uint32(r.MinDP))
		s.w.WriteString(".")
	case Call:
		s.w.WriteString(r.Sample)
		s.w.WriteString("call")
		s.w.WriteString(".")
		s.w.WriteString(".")
		s.w.WriteString(".")
		s.w.WriteString(string(r.Payload))
	default:
		return errors.Errorf("tsv sink: unsupported record type %T", rec)
	}
	return s.w.EndLine()
}

// Close implements Sink.  It flushes the tsv writer; the underlying
// io.Writer stays owned by the caller.
func (s *TSVSink) Close() error {
	if !s.headerDone {
		if err := s.writeHeader(); err != nil {
			return err
		}
		s.headerDone = true
	}
	return s.w.Flush()
}

const (
	bandsRioTrailerVersion = 1

	kindCall  = 0
	kindBlock = 1
)

// RecordioSink writes the record stream as a zstd-transformed recordio file
// with a versioned record-count trailer, for downstream tools that want the
// bands without re-parsing text.
type RecordioSink struct {
	rw recordio.Writer
	n  int64
}

// NewRecordioSink returns a RecordioSink writing to w.  The underlying
// io.Writer stays owned by the caller.
func NewRecordioSink(w io.Writer) *RecordioSink {
	rw := recordio.NewWriter(w, recordio.WriterOpts{
		Marshal:      marshalRecord,
		Transformers: []string{recordiozstd.Name},
	})
	rw.AddHeader(recordio.KeyTrailer, true)
	return &RecordioSink{rw: rw}
}

// Accept implements Sink.
func (s *RecordioSink) Accept(rec Record) error {
	switch rec.(type) {
	case Block, Call:
	default:
		return errors.Errorf("recordio sink: unsupported record type %T", rec)
	}
	s.rw.Append(rec)
	s.n++
	return s.rw.Err()
}

// Close implements Sink.
func (s *RecordioSink) Close() error {
	s.rw.SetTrailer(bandsRioTrailer(s.n))
	err := s.rw.Finish()
	vlog.VI(1).Infof("bands rio: wrote %d records", s.n)
	return err
}

func bandsRioTrailer(numRecs int64) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(bandsRioTrailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, numRecs); err != nil {
		panic("couldn't write record count to trailer")
	}
	return buffer.Bytes()
}

func parseBandsRioTrailer(trailer []byte) (int64, error) {
	r := bytes.NewReader(trailer)
	var version, numRecs int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != bandsRioTrailerVersion {
		return 0, errors.Errorf("unrecognized trailer version: got %d, want %d", version, bandsRioTrailerVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &numRecs); err != nil {
		return 0, err
	}
	return numRecs, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func marshalRecord(scratch []byte, v interface{}) ([]byte, error) {
	t := scratch[:0]
	switch r := v.(type) {
	case Block:
		t = append(t, kindBlock)
		t = appendString(t, r.Chrom)
		t = appendString(t, r.Sample)
		t = appendUint32(t, uint32(r.Pos))
		t = appendUint32(t, uint32(r.EndPos))
		var lod [8]byte
		binary.LittleEndian.PutUint64(lod[:], math.Float64bits(r.LOD))
		t = append(t, lod[:]...)
		t = appendUint32(t, uint32(r.DP))
		t = appendUint32(t, uint32(r.MinDP))
	case Call:
		t = append(t, kindCall)
		t = appendString(t, r.Chrom)
		t = appendString(t, r.Sample)
		t = appendUint32(t, uint32(r.Pos))
		t = appendUint32(t, uint32(r.EndPos))
		t = appendUvarint(t, uint64(len(r.Payload)))
		t = append(t, r.Payload...)
	default:
		return nil, errors.Errorf("marshal: unsupported record type %T", v)
	}
	return t, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func unmarshalRecord(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, errors.New("unmarshal: empty record")
	}
	r := bytes.NewReader(data[1:])
	chrom, err := readString(r)
	if err != nil {
		return nil, err
	}
	sample, err := readString(r)
	if err != nil {
		return nil, err
	}
	pos, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	end, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	switch data[0] {
	case kindBlock:
		var lodBytes [8]byte
		if _, err := io.ReadFull(r, lodBytes[:]); err != nil {
			return nil, err
		}
		dp, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		minDP, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		return Block{
			Chrom:  chrom,
			Pos:    pileup.PosType(pos),
			EndPos: pileup.PosType(end),
			Sample: sample,
			LOD:    math.Float64frombits(binary.LittleEndian.Uint64(lodBytes[:])),
			DP:     int(dp),
			MinDP:  int(minDP),
		}, nil
	case kindCall:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		return Call{
			Chrom:   chrom,
			Pos:     pileup.PosType(pos),
			EndPos:  pileup.PosType(end),
			Sample:  sample,
			Payload: payload,
		}, nil
	default:
		return nil, errors.Errorf("unmarshal: unknown record kind %d", data[0])
	}
}

// ReadBandsRio reads back a record stream written by RecordioSink.
func ReadBandsRio(rs io.ReadSeeker) ([]Record, error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalRecord,
	})
	var want int64 = -1
	if len(scanner.Trailer()) != 0 {
		n, err := parseBandsRioTrailer(scanner.Trailer())
		if err != nil {
			return nil, err
		}
		want = n
	}
	var recs []Record
	for scanner.Scan() {
		recs = append(recs, scanner.Get().(Record))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if want >= 0 && int64(len(recs)) != want {
		return nil, errors.Errorf("bands rio: trailer claims %d records, read %d", want, len(recs))
	}
	return recs, nil
}
