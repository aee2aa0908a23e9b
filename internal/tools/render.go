// ABOUTME: Renders ARIA API responses as human-readable text blocks.
// ABOUTME: Normalizes the three remote response shapes into a record list.

package tools

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// emptyResultText is the informational message for empty result sets. An
// empty result is not an error and must stay distinguishable from one.
const emptyResultText = "No records found."

// column maps one rendered label to one record field.
type column struct {
	Label string
	Field string
}

// cellValue unwraps a gateway-style {"Value": x} cell. The Process endpoint
// family wraps response cells the same way it requires wrapped request
// fields; the plain REST endpoints return bare scalars. This is an
// external-system quirk, handled here once so no handler grows its own
// fallback chain.
func cellValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["Value"]; ok {
			return inner
		}
	}
	return v
}

// normalizeRecords coerces the response shapes the remote API uses (array of
// records, single record, or an ack object with success/errorMessage) into a
// record slice. A failed ack becomes an error; a successful ack becomes a
// one-line confirmation record.
func normalizeRecords(resp any) ([]map[string]any, string, error) {
	switch v := resp.(type) {
	case nil:
		return nil, "", nil
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records, "", nil
	case map[string]any:
		if success, isAck := v["success"]; isAck {
			if succeeded, _ := cellValue(success).(bool); !succeeded {
				return nil, "", fmt.Errorf("remote request failed: %s", ackMessage(v))
			}
			return nil, "Request completed successfully.", nil
		}
		return []map[string]any{v}, "", nil
	default:
		return nil, "", fmt.Errorf("unexpected response shape %T", resp)
	}
}

// ackMessage pulls the failure message out of an ack object. The two
// spellings cover the inconsistency between the remote endpoint families.
func ackMessage(ack map[string]any) string {
	for _, key := range []string{"errorMessage", "ErrorMessage"} {
		if v, ok := ack[key]; ok {
			if s, _ := cellValue(v).(string); s != "" {
				return s
			}
		}
	}
	return "no error message provided"
}

// renderRecords formats records as text, one line per record. With columns
// given, only those fields appear under their labels; otherwise every field
// is printed in sorted order.
func renderRecords(records []map[string]any, cols []column) string {
	if len(records) == 0 {
		return emptyResultText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d record(s) found.\n", len(records))
	for i, record := range records {
		fmt.Fprintf(&b, "%d. %s", i+1, renderRecord(record, cols))
		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderRecord(record map[string]any, cols []column) string {
	pairs := make([]string, 0, len(cols))
	if len(cols) > 0 {
		for _, c := range cols {
			pairs = append(pairs, c.Label+": "+fieldString(record, c.Field))
		}
	} else {
		names := make([]string, 0, len(record))
		for name := range record {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pairs = append(pairs, name+": "+fieldString(record, name))
		}
	}
	return strings.Join(pairs, " | ")
}

// fieldString formats one record field, unwrapping gateway cells and falling
// back to "N/A" for absent or empty values.
func fieldString(record map[string]any, name string) string {
	v, ok := record[name]
	if !ok {
		return "N/A"
	}
	return formatScalar(cellValue(v))
}

func formatScalar(v any) string {
	switch s := v.(type) {
	case nil:
		return "N/A"
	case string:
		if s == "" {
			return "N/A"
		}
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
