package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Int64List stores an ordered list of int64 values as a JSON document.
// Token amounts and unix deadlines in negotiation histories use it.
type Int64List []int64

// Value implements driver.Valuer.
func (l Int64List) Value() (driver.Value, error) {
	if l == nil {
		l = Int64List{}
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal int64 list: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *Int64List) Scan(value any) error {
	if value == nil {
		*l = Int64List{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported int64 list source %T", value)
	}
	if len(raw) == 0 {
		*l = Int64List{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Last returns the final element; ok is false when the list is empty.
func (l Int64List) Last() (int64, bool) {
	if len(l) == 0 {
		return 0, false
	}
	return l[len(l)-1], true
}
