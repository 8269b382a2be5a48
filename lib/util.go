package lib

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// MarshalJSON() serializes a message into a JSON byte slice
func MarshalJSON(message any) ([]byte, ErrorI) {
	bz, err := json.Marshal(message)
	if err != nil {
		return nil, ErrJSONMarshal(err)
	}
	return bz, nil
}

// MarshalJSONIndent() serializes a message into an indented JSON byte slice
func MarshalJSONIndent(message any) ([]byte, ErrorI) {
	bz, err := json.MarshalIndent(message, "", "  ")
	if err != nil {
		return nil, ErrJSONMarshal(err)
	}
	return bz, nil
}

// MarshalJSONIndentString() serializes a message into an indented JSON string
func MarshalJSONIndentString(message any) (string, ErrorI) {
	bz, err := MarshalJSONIndent(message)
	return string(bz), err
}

// UnmarshalJSON() deserializes a JSON byte slice into the specified object
func UnmarshalJSON(bz []byte, ptr any) ErrorI {
	if err := json.Unmarshal(bz, ptr); err != nil {
		return ErrJSONUnmarshal(err)
	}
	return nil
}

// NewJSONFromFile() reads a json object from file
func NewJSONFromFile(o any, dataDirPath, filePath string) ErrorI {
	bz, err := os.ReadFile(filepath.Join(dataDirPath, filePath))
	if err != nil {
		return ErrReadFile(err)
	}
	return UnmarshalJSON(bz, o)
}

// SaveJSONToFile() saves a json object to a file
func SaveJSONToFile(j any, dataDirPath, filePath string) (err ErrorI) {
	bz, err := MarshalJSONIndent(j)
	if err != nil {
		return
	}
	if e := os.WriteFile(filepath.Join(dataDirPath, filePath), bz, os.ModePerm); e != nil {
		return ErrWriteFile(e)
	}
	return
}

// HexBytes represents a byte slice that can be marshaled and unmarshalled as hex strings
type HexBytes []byte

// NewHexBytesFromString() converts a hexadecimal string into HexBytes
func NewHexBytesFromString(s string) (HexBytes, ErrorI) {
	bz, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, ErrStringToBytes(err)
	}
	return bz, nil
}

func (x HexBytes) String() string { return hex.EncodeToString(x) }

func (x HexBytes) MarshalJSON() ([]byte, error) { return json.Marshal(x.String()) }

func (x *HexBytes) UnmarshalJSON(b []byte) (err error) {
	var s string
	if err = json.Unmarshal(b, &s); err != nil {
		return err
	}
	*x, err = NewHexBytesFromString(s)
	return
}

// CatchPanic() catches any panic in the function call or child function calls
func CatchPanic(l LoggerI) {
	if r := recover(); r != nil {
		l.Errorf(string(debug.Stack()))
	}
}

// JoinLenPrefix() appends the items together separated by a single byte to represent the length of the segment
func JoinLenPrefix(toAppend ...[]byte) (res []byte) {
	for _, item := range toAppend {
		if item == nil {
			continue
		}
		res = append(append(res, byte(len(item))), item...)
	}
	return
}

// DecodeLengthPrefixed() decodes a key that is delimited by the length of the segment in a single byte
func DecodeLengthPrefixed(key []byte) (segments [][]byte) {
	for i := 0; i < len(key); {
		length := int(key[i])
		i++
		if i+length > len(key) {
			panic("corrupt or incomplete key")
		}
		segments = append(segments, key[i:i+length])
		i += length
	}
	return
}

// FormatUint64() encodes a number in big endian so byte order follows numeric order
func FormatUint64(u uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, u)
	return b
}

// ParseUint64() decodes a big endian number written by FormatUint64()
func ParseUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Append() concatenates two byte slices without aliasing the first
func Append(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

// PrefixEnd() returns the smallest key greater than every key starting with prefix (nil = unbounded)
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
