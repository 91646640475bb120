package querycache

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Namespace is contained in every key the event service produces, so a single
// Invalidate(Namespace) drops all derived reads.
const Namespace = "events"

// StatsKey caches the dashboard summary.
const StatsKey = Namespace + ":stats"

const digestSize = 16

// HistoryKey caches the audit trail of one event.
func HistoryKey(eventID int64) string {
	return Namespace + ":history:" + strconv.FormatInt(eventID, 10)
}

// KeyBuilder produces a canonical serialization of query parameters. Fields
// are written in call order; lists are sorted so equivalent filters share a key.
type KeyBuilder struct {
	b strings.Builder
}

// String appends a named string field.
func (k *KeyBuilder) String(name, value string) *KeyBuilder {
	k.b.WriteString(name)
	k.b.WriteByte('=')
	k.b.WriteString(strconv.Quote(value))
	k.b.WriteByte(';')
	return k
}

// List appends a named multi-valued field in sorted order.
func (k *KeyBuilder) List(name string, values []string) *KeyBuilder {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, v := range sorted {
		quoted[i] = strconv.Quote(v)
	}
	k.b.WriteString(name)
	k.b.WriteString("=[")
	k.b.WriteString(strings.Join(quoted, ","))
	k.b.WriteString("];")
	return k
}

// Time appends an optional timestamp normalised to UTC.
func (k *KeyBuilder) Time(name string, t *time.Time) *KeyBuilder {
	value := ""
	if t != nil {
		value = t.UTC().Format(time.RFC3339Nano)
	}
	return k.String(name, value)
}

// Int appends an integer field.
func (k *KeyBuilder) Int(name string, v int) *KeyBuilder {
	return k.String(name, strconv.Itoa(v))
}

// Bool appends a flag.
func (k *KeyBuilder) Bool(name string, v bool) *KeyBuilder {
	return k.String(name, strconv.FormatBool(v))
}

// Canonical returns the serialization built so far.
func (k *KeyBuilder) Canonical() string {
	return k.b.String()
}

// QueryKey digests the serialization into an events:query key.
func (k *KeyBuilder) QueryKey() string {
	return Namespace + ":query:" + Digest(k.Canonical())
}

// Digest returns the hex BLAKE2b-128 digest of canonical.
func Digest(canonical string) string {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		// Only reachable with an invalid size or key.
		panic(err)
	}
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}
