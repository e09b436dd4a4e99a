package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/storage"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	Data       map[string]any `json:"data"`
	Conditions map[string]any `json:"conditions"`
	Limit      *int           `json:"limit"`
	Company    string         `json:"company"`
	Query      string         `json:"query"`
}

func decodeArgs(raw json.RawMessage) (*toolArgs, error) {
	args := &toolArgs{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return args, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(args); err != nil {
		return nil, err
	}
	return args, nil
}

func (a *toolArgs) limit() int {
	if a.Limit == nil {
		return defaultLimit
	}
	switch n := *a.Limit; {
	case n < 1:
		return 1
	case n > maxLimit:
		return maxLimit
	default:
		return n
	}
}

var (
	errExpectedInteger = errors.New("expected an integer")
	errExpectedBool    = errors.New("expected true or false")
	errExpectedString  = errors.New("expected a string")
)

type columnKind int

const (
	kindInteger columnKind = iota
	kindText
	kindNullableText
	kindBool
)

var columnKinds = map[string]columnKind{
	models.ColumnID:              kindInteger,
	models.ColumnOwner:           kindInteger,
	models.ColumnCompanyName:     kindText,
	models.ColumnCompanyPassword: kindText,
	models.ColumnCompanyUserName: kindNullableText,
	models.ColumnNote:            kindNullableText,
	models.ColumnArchived:        kindBool,
}

// normalizeFields checks column names and converts JSON values into the
// types the record table stores.
func normalizeFields(in map[string]any) (storage.Fields, error) {
	out := make(storage.Fields, len(in))
	for name, v := range in {
		kind, ok := columnKinds[name]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		value, err := convertValue(kind, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out[name] = value
	}
	return out, nil
}

func convertValue(kind columnKind, v any) (any, error) {
	switch kind {
	case kindInteger:
		n, ok := v.(json.Number)
		if !ok {
			return nil, errExpectedInteger
		}
		i, err := n.Int64()
		if err != nil {
			return nil, errExpectedInteger
		}
		return i, nil
	case kindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case json.Number:
			switch b.String() {
			case "0":
				return false, nil
			case "1":
				return true, nil
			}
		}
		return nil, errExpectedBool
	case kindNullableText:
		if v == nil {
			return nil, nil
		}
		fallthrough
	default:
		s, ok := v.(string)
		if !ok {
			return nil, errExpectedString
		}
		return s, nil
	}
}
