package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"travelbook/order"
)

const bom = "\ufeff"

// CellText renders any cell as text. Remote sheets may return rich text as a
// list of segments with a "text" key; those are concatenated.
func CellText(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case []any:
		var sb strings.Builder
		for _, seg := range v {
			if m, ok := seg.(map[string]any); ok {
				sb.WriteString(CellText(m["text"]))
			} else {
				sb.WriteString(CellText(seg))
			}
		}
		return sb.String()
	}
	return fmt.Sprint(cell)
}

func isBlank(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

// cellNumber parses a numeric cell. Blank cells and "nan" are zero.
func cellNumber(cell any) (float64, error) {
	var f float64
	switch v := cell.(type) {
	case nil:
		return 0, nil
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(v, bom))
		if s == "" || strings.EqualFold(s, "nan") {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported numeric cell %T", cell)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return f, nil
}

func decodeInteger(name string, cell any) int {
	f, err := cellNumber(cell)
	if err != nil {
		logCellFailure(name, cell, err)
		return 0
	}
	if f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(math.Trunc(f))
}

func decodeDecimal(name string, cell any, signed bool) float64 {
	f, err := cellNumber(cell)
	if err != nil {
		logCellFailure(name, cell, err)
		return 0
	}
	if f < 0 && !signed {
		return 0
	}
	return f
}

// decodeList parses a JSON array cell. Text that is not valid JSON is retried
// with single quotes turned into double quotes; anything else yields nil.
func decodeList(name string, cell any) []any {
	if items, ok := cell.([]any); ok && !isRichText(items) {
		return items
	}
	s := strings.TrimSpace(CellText(cell))
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		if retryErr := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &parsed); retryErr != nil {
			logCellFailure(name, cell, err)
			return nil
		}
	}
	items, ok := parsed.([]any)
	if !ok {
		logCellFailure(name, cell, fmt.Errorf("expected a JSON array, got %T", parsed))
		return nil
	}
	return items
}

// isRichText reports whether a cell is a list of {"type": ..., "text": ...} segments.
func isRichText(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := m["text"]; !ok {
			return false
		}
		if _, ok := m["type"]; !ok {
			return false
		}
	}
	return true
}

func encodeList(v any) string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func textItems(name string, items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, isObject := item.(map[string]any); isObject {
			logCellFailure(name, item, fmt.Errorf("expected text item"))
			continue
		}
		if s := strings.TrimSpace(CellText(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func partnerItems(items []any) []order.Partner {
	out := make([]order.Partner, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			logCellFailure("partners", item, fmt.Errorf("expected partner object"))
			continue
		}
		name := strings.TrimSpace(CellText(m["name"]))
		if name == "" {
			continue
		}
		out = append(out, order.Partner{
			Name:       name,
			Settlement: decodeDecimal("partners.settlement", m["settlement"], false),
			Collection: decodeDecimal("partners.collection", m["collection"], false),
			Notes:      CellText(m["notes"]),
		})
	}
	return out
}

func logCellFailure(column string, cell any, err error) {
	slog.Warn("codec: cell parse failed, using zero value", "column", column, "value", cell, "err", err)
}
