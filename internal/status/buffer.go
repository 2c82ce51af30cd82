package status

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	// RecordSize is the size of one header record.
	RecordSize = 80

	// KeySize is the maximum key length; longer keys are truncated.
	KeySize = 8

	// DefaultSize is the size of a hashpipe status buffer (2304 records).
	DefaultSize = 2880 * 64

	valueCol   = 10 // first column after "KEYWORD= "
	numericEnd = 30 // numbers are right-justified to this column
)

var endKey = []byte("END     ")

// Field is one key/value pair of a snapshot.
type Field struct {
	Key   string
	Value Value
}

// Snapshot is the ordered set of fields of a buffer at one point in time.
type Snapshot []Field

// Get returns the value stored under key.
func (s Snapshot) Get(key string) (Value, bool) {
	k := NormalizeKey(key)
	for _, f := range s {
		if f.Key == k {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Strings returns the snapshot as key → text, the form written to Redis.
func (s Snapshot) Strings() map[string]string {
	m := make(map[string]string, len(s))
	for _, f := range s {
		m[f.Key] = f.Value.String()
	}
	return m
}

// Buffer is a status buffer: a sequence of 80-byte records ending in an END
// record. Buffer is not safe for concurrent use; see Entity.
type Buffer struct {
	data   []byte
	xlock  externalLock
	closer func() error
}

type externalLock interface {
	tryLock() (bool, error)
	unlock() error
}

// NewBuffer wraps data as a status buffer. Data without an END record is
// reset to an empty buffer.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{data: data[:len(data)-len(data)%RecordSize]}
	if b.end() < 0 {
		b.Clear()
	}
	return b
}

// Capacity returns the number of records the buffer can hold, END included.
func (b *Buffer) Capacity() int { return len(b.data) / RecordSize }

// Len returns the number of value records in use.
func (b *Buffer) Len() int {
	n := 0
	for i, end := 0, b.end(); i < end; i++ {
		if _, ok := keyOf(b.record(i)); ok {
			n++
		}
	}
	return n
}

// Clear removes every record.
func (b *Buffer) Clear() {
	for i := range b.data {
		b.data[i] = ' '
	}
	if len(b.data) >= RecordSize {
		copy(b.data, endKey)
	}
}

// Put stores v under key, replacing an existing record for the same key.
func (b *Buffer) Put(key string, v Value) error {
	k := NormalizeKey(key)
	if err := validKey(k); err != nil {
		return err
	}
	card := formatCard(k, v)

	if i := b.find(k); i >= 0 {
		copy(b.record(i), card)
		return nil
	}

	end := b.end()
	if end < 0 || end+1 >= b.Capacity() {
		return fmt.Errorf("%w: %s", ErrBufferFull, k)
	}
	copy(b.record(end), card)
	copy(b.record(end+1), b.blankEnd())
	return nil
}

// Get returns the value stored under key.
func (b *Buffer) Get(key string) (Value, bool) {
	i := b.find(NormalizeKey(key))
	if i < 0 {
		return Value{}, false
	}
	_, v, _ := parseCard(b.record(i))
	return v, true
}

// Delete removes key and reports whether it was present.
func (b *Buffer) Delete(key string) bool {
	i := b.find(NormalizeKey(key))
	if i < 0 {
		return false
	}
	end := b.end()
	copy(b.data[i*RecordSize:], b.data[(i+1)*RecordSize:(end+1)*RecordSize])
	blank := b.record(end)
	for j := range blank {
		blank[j] = ' '
	}
	return true
}

// Snapshot returns every value record in buffer order.
func (b *Buffer) Snapshot() Snapshot {
	end := b.end()
	snap := make(Snapshot, 0, max(end, 0))
	for i := 0; i < end; i++ {
		if k, v, ok := parseCard(b.record(i)); ok {
			snap = append(snap, Field{Key: k, Value: v})
		}
	}
	return snap
}

// Close releases the memory backing the buffer.
func (b *Buffer) Close() error {
	if b.closer == nil {
		return nil
	}
	err := b.closer()
	b.closer = nil
	b.data = nil
	return err
}

func (b *Buffer) record(i int) []byte {
	return b.data[i*RecordSize : (i+1)*RecordSize]
}

func (b *Buffer) blankEnd() []byte {
	rec := bytes.Repeat([]byte{' '}, RecordSize)
	copy(rec, endKey)
	return rec
}

func (b *Buffer) end() int {
	for i := 0; i < b.Capacity(); i++ {
		if bytes.Equal(b.record(i)[:KeySize], endKey) {
			return i
		}
	}
	return -1
}

func (b *Buffer) find(key string) int {
	if key == "" {
		return -1
	}
	for i, end := 0, b.end(); i < end; i++ {
		if k, ok := keyOf(b.record(i)); ok && k == key {
			return i
		}
	}
	return -1
}

// NormalizeKey truncates key to KeySize and drops surrounding blanks.
func NormalizeKey(key string) string {
	k := strings.TrimSpace(key)
	if len(k) > KeySize {
		k = k[:KeySize]
	}
	return strings.TrimRight(k, " ")
}

func validKey(k string) error {
	if k == "" || k == "END" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k)
	}
	for i := 0; i < len(k); i++ {
		if c := k[i]; c < 0x21 || c > 0x7e || c == '=' || c == '\'' {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
	}
	return nil
}

func keyOf(rec []byte) (string, bool) {
	if rec[KeySize] != '=' {
		return "", false
	}
	return strings.TrimRight(string(rec[:KeySize]), " "), true
}

func formatCard(key string, v Value) []byte {
	card := bytes.Repeat([]byte{' '}, RecordSize)
	copy(card, key)
	card[KeySize] = '='

	var text string
	switch v.Kind() {
	case KindInt:
		text = strconv.FormatInt(v.i, 10)
	case KindFloat:
		text = formatFloat(v.f, 'G')
	default:
		text = quote(v.s, RecordSize-valueCol)
		copy(card[valueCol:], text)
		return card
	}
	if len(text) <= numericEnd-valueCol {
		copy(card[numericEnd-len(text):], text)
	} else {
		copy(card[valueCol:], text)
	}
	return card
}

// quote renders s as a FITS string literal of at most max bytes, padded to
// the eight character minimum. Invalid UTF-8 becomes '?' and control
// characters become blanks.
func quote(s string, max int) string {
	s = strings.ToValidUTF8(s, "?")
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		piece := string(r)
		if r == '\'' {
			piece = "''"
		} else if r < 0x20 {
			piece = " "
		}
		if sb.Len()+len(piece)+1 > max {
			break
		}
		sb.WriteString(piece)
	}
	for sb.Len() < 9 {
		sb.WriteByte(' ')
	}
	sb.WriteByte('\'')
	return sb.String()
}

func parseCard(rec []byte) (string, Value, bool) {
	key, ok := keyOf(rec)
	if !ok || key == "" {
		return "", Value{}, false
	}
	raw := strings.TrimLeft(string(rec[valueCol-1:]), " ")

	if strings.HasPrefix(raw, "'") {
		var sb strings.Builder
		for i := 1; i < len(raw); i++ {
			if raw[i] == '\'' {
				if i+1 < len(raw) && raw[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				break
			}
			sb.WriteByte(raw[i])
		}
		return key, String(strings.TrimRight(sb.String(), " ")), true
	}

	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return key, Int(n), true
	}
	if f, err := strconv.ParseFloat(strings.Replace(raw, "D", "E", 1), 64); err == nil {
		return key, Float(f), true
	}
	return key, String(raw), true
}
