package unit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"gopkg.in/yaml.v3"
)

// magic identifies a lumen persisted Unit; version gates wire-format
// compatibility (spec.md §6.2: "a version mismatch on load MUST fail
// loudly").
const (
	magic   uint32 = 0x6c756d6e // "lumn"
	version uint16 = 1
)

// Encode writes u's length-prefixed binary form: magic, version, then each
// section (instructions, constants, functions, RTTI) length-prefixed in
// turn. The debug map is never embedded in the binary form — it is
// persisted separately via EncodeDebugMap, matching spec.md's "optional
// debug map" framing as a sidecar a host may choose to ship or strip.
func Encode(w io.Writer, u *Unit) error {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, magic)
	binary.Write(&buf, binary.LittleEndian, version)

	if err := encodeInstructions(&buf, u.Instructions); err != nil {
		return err
	}
	if err := encodeConstants(&buf, u.Constants); err != nil {
		return err
	}
	if err := encodeFunctions(&buf, u.FunctionsBy); err != nil {
		return err
	}
	if err := encodeRTTI(&buf, u.RTTI); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reconstructs a Unit from its binary form, rejecting a magic or
// version mismatch outright rather than attempting best-effort recovery.
func Decode(r io.Reader) (*Unit, error) {
	var gotMagic uint32
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return nil, fmt.Errorf("unit: read magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("unit: bad magic %#x, want %#x", gotMagic, magic)
	}
	var gotVersion uint16
	if err := binary.Read(r, binary.LittleEndian, &gotVersion); err != nil {
		return nil, fmt.Errorf("unit: read version: %w", err)
	}
	if gotVersion != version {
		return nil, fmt.Errorf("unit: format version %d unsupported, want %d", gotVersion, version)
	}

	u := New()
	var err error
	if u.Instructions, err = decodeInstructions(r); err != nil {
		return nil, err
	}
	if u.Constants, err = decodeConstants(r); err != nil {
		return nil, err
	}
	if u.FunctionsBy, err = decodeFunctions(r); err != nil {
		return nil, err
	}
	for i, fd := range u.FunctionsBy {
		u.Functions[fd.Hash] = fd
		u.EntryPoints[fd.Hash] = u.FunctionsBy[i].Entry
	}
	rtti, err := decodeRTTI(r)
	if err != nil {
		return nil, err
	}
	u.RTTI = rtti
	return u, nil
}

func encodeInstructions(buf *bytes.Buffer, insts []Inst) error {
	binary.Write(buf, binary.LittleEndian, uint32(len(insts)))
	for _, in := range insts {
		binary.Write(buf, binary.LittleEndian, in.Op)
		binary.Write(buf, binary.LittleEndian, in.A)
		binary.Write(buf, binary.LittleEndian, in.B)
		binary.Write(buf, binary.LittleEndian, in.C)
	}
	return nil
}

func decodeInstructions(r io.Reader) ([]Inst, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("unit: read instruction count: %w", err)
	}
	out := make([]Inst, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i].Op); err != nil {
			return nil, fmt.Errorf("unit: read instruction %d: %w", i, err)
		}
		binary.Read(r, binary.LittleEndian, &out[i].A)
		binary.Read(r, binary.LittleEndian, &out[i].B)
		binary.Read(r, binary.LittleEndian, &out[i].C)
	}
	return out, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeConstants(buf *bytes.Buffer, cs []Constant) error {
	binary.Write(buf, binary.LittleEndian, uint32(len(cs)))
	for _, c := range cs {
		binary.Write(buf, binary.LittleEndian, c.Kind)
		switch c.Kind {
		case ConstString:
			writeString(buf, c.Str)
		case ConstBytes:
			binary.Write(buf, binary.LittleEndian, uint32(len(c.Bytes)))
			buf.Write(c.Bytes)
		case ConstInt:
			binary.Write(buf, binary.LittleEndian, c.Int)
		case ConstFloat:
			binary.Write(buf, binary.LittleEndian, c.Float)
		case ConstObjectKeys:
			binary.Write(buf, binary.LittleEndian, uint32(len(c.Keys)))
			for _, k := range c.Keys {
				writeString(buf, k)
			}
		case ConstSubUnit:
			var sub bytes.Buffer
			if err := Encode(&sub, c.SubUnit); err != nil {
				return err
			}
			binary.Write(buf, binary.LittleEndian, uint32(sub.Len()))
			buf.Write(sub.Bytes())
		default:
			return fmt.Errorf("unit: unknown constant kind %d", c.Kind)
		}
	}
	return nil
}

func decodeConstants(r io.Reader) ([]Constant, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("unit: read constant count: %w", err)
	}
	out := make([]Constant, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i].Kind); err != nil {
			return nil, fmt.Errorf("unit: read constant %d kind: %w", i, err)
		}
		switch out[i].Kind {
		case ConstString:
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			out[i].Str = s
		case ConstBytes:
			var bn uint32
			if err := binary.Read(r, binary.LittleEndian, &bn); err != nil {
				return nil, err
			}
			b := make([]byte, bn)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, err
			}
			out[i].Bytes = b
		case ConstInt:
			if err := binary.Read(r, binary.LittleEndian, &out[i].Int); err != nil {
				return nil, err
			}
		case ConstFloat:
			if err := binary.Read(r, binary.LittleEndian, &out[i].Float); err != nil {
				return nil, err
			}
		case ConstObjectKeys:
			var kn uint32
			if err := binary.Read(r, binary.LittleEndian, &kn); err != nil {
				return nil, err
			}
			keys := make([]string, kn)
			for j := range keys {
				s, err := readString(r)
				if err != nil {
					return nil, err
				}
				keys[j] = s
			}
			out[i].Keys = keys
		case ConstSubUnit:
			var sn uint32
			if err := binary.Read(r, binary.LittleEndian, &sn); err != nil {
				return nil, err
			}
			sub := make([]byte, sn)
			if _, err := io.ReadFull(r, sub); err != nil {
				return nil, err
			}
			su, err := Decode(bytes.NewReader(sub))
			if err != nil {
				return nil, err
			}
			out[i].SubUnit = su
		default:
			return nil, fmt.Errorf("unit: unknown constant kind %d", out[i].Kind)
		}
	}
	return out, nil
}

func encodeFunctions(buf *bytes.Buffer, fs []FunctionDesc) error {
	binary.Write(buf, binary.LittleEndian, uint32(len(fs)))
	for _, f := range fs {
		binary.Write(buf, binary.LittleEndian, uint64(f.Hash))
		binary.Write(buf, binary.LittleEndian, uint32(f.Entry))
		binary.Write(buf, binary.LittleEndian, uint32(f.ArgCount))
		binary.Write(buf, binary.LittleEndian, f.CallKind)
	}
	return nil
}

func decodeFunctions(r io.Reader) ([]FunctionDesc, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("unit: read function count: %w", err)
	}
	out := make([]FunctionDesc, n)
	for i := range out {
		var h uint64
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return nil, err
		}
		out[i].Hash = typeid.Hash(h)
		var entry, argc uint32
		if err := binary.Read(r, binary.LittleEndian, &entry); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &argc); err != nil {
			return nil, err
		}
		out[i].Entry = int(entry)
		out[i].ArgCount = int(argc)
		if err := binary.Read(r, binary.LittleEndian, &out[i].CallKind); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeFieldLayouts(buf *bytes.Buffer, fields []FieldLayout) {
	binary.Write(buf, binary.LittleEndian, uint32(len(fields)))
	for _, f := range fields {
		writeString(buf, f.Name)
		binary.Write(buf, binary.LittleEndian, uint32(f.Index))
	}
}

func decodeFieldLayouts(r io.Reader) ([]FieldLayout, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]FieldLayout, n)
	for i := range out {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var idx uint32
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, err
		}
		out[i] = FieldLayout{Name: name, Index: int(idx)}
	}
	return out, nil
}

func encodeRTTI(buf *bytes.Buffer, rtti map[typeid.Hash]TypeLayout) error {
	binary.Write(buf, binary.LittleEndian, uint32(len(rtti)))
	for _, t := range rtti {
		binary.Write(buf, binary.LittleEndian, uint64(t.Hash))
		writeString(buf, t.Name)
		encodeFieldLayouts(buf, t.Fields)
		binary.Write(buf, binary.LittleEndian, uint32(len(t.Variants)))
		for _, v := range t.Variants {
			writeString(buf, v.Name)
			binary.Write(buf, binary.LittleEndian, v.Discriminant)
			encodeFieldLayouts(buf, v.Fields)
		}
	}
	return nil
}

func decodeRTTI(r io.Reader) (map[typeid.Hash]TypeLayout, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("unit: read RTTI count: %w", err)
	}
	out := make(map[typeid.Hash]TypeLayout, n)
	for i := uint32(0); i < n; i++ {
		var h uint64
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		fields, err := decodeFieldLayouts(r)
		if err != nil {
			return nil, err
		}
		var vn uint32
		if err := binary.Read(r, binary.LittleEndian, &vn); err != nil {
			return nil, err
		}
		variants := make([]VariantLayout, vn)
		for j := range variants {
			vname, err := readString(r)
			if err != nil {
				return nil, err
			}
			var disc int64
			if err := binary.Read(r, binary.LittleEndian, &disc); err != nil {
				return nil, err
			}
			vfields, err := decodeFieldLayouts(r)
			if err != nil {
				return nil, err
			}
			variants[j] = VariantLayout{Name: vname, Discriminant: disc, Fields: vfields}
		}
		hash := typeid.Hash(h)
		out[hash] = TypeLayout{Hash: hash, Name: name, Fields: fields, Variants: variants}
	}
	return out, nil
}

// debugEntry is the yaml-friendly shape of one DebugMap record.
type debugEntry struct {
	IP   int    `yaml:"ip"`
	File string `yaml:"file"`
	Line int    `yaml:"line"`
	Col  int    `yaml:"col"`
}

// EncodeDebugMap writes u's debug map as a yaml sidecar document, keeping
// the binary Unit format itself free of optional, human-oriented metadata
// (spec.md §3.4's "Debug map … (optional)").
func EncodeDebugMap(w io.Writer, u *Unit) error {
	entries := make([]debugEntry, 0, len(u.DebugMap))
	for ip, span := range u.DebugMap {
		entries = append(entries, debugEntry{IP: ip, File: span.File, Line: span.Line, Col: span.Col})
	}
	return yaml.NewEncoder(w).Encode(entries)
}

// DecodeDebugMap reads a yaml sidecar previously written by EncodeDebugMap
// and attaches it to u.
func DecodeDebugMap(r io.Reader, u *Unit) error {
	var entries []debugEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("unit: decode debug map: %w", err)
	}
	u.DebugMap = make(map[int]SourceSpan, len(entries))
	for _, e := range entries {
		u.DebugMap[e.IP] = SourceSpan{File: e.File, Line: e.Line, Col: e.Col}
	}
	return nil
}
