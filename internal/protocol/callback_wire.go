package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CollaboraOnline/tilekit/internal/types"
)

// callbackNames maps the wire callback type token to its CallbackKind.
// Names not present here still round-trip through the queue untouched.
var callbackNames = map[string]types.CallbackKind{
	"invalidatetiles":           types.CallbackInvalidateTiles,
	"statechanged":              types.CallbackStateChanged,
	"invalidatevisiblecursor":   types.CallbackInvalidateVisibleCursor,
	"cursorvisible":             types.CallbackCursorVisible,
	"cellcursor":                types.CallbackCellCursor,
	"viewcursor":                types.CallbackViewCursor,
	"viewcellcursor":            types.CallbackViewCellCursor,
	"viewcursorvisible":         types.CallbackViewCursorVisible,
	"documentsizechanged":       types.CallbackDocumentSizeChanged,
	"statusindicatorsetvalue":   types.CallbackStatusIndicatorSetValue,
	"textselection":             types.CallbackSelectionChanged,
	"mousepointer":              types.CallbackMousePointer,
	"unocommandresult":          types.CallbackUnoCommandResult,
	"redlinetablesizechanged":   types.CallbackRedlineTableSizeChanged,
	"redlinetableentrymodified": types.CallbackRedlineTableEntryModified,
	"comment":                   types.CallbackComment,
	"viewinfo":                  types.CallbackViewInfo,
	"header":                    types.CallbackHeader,
	"celladdress":               types.CallbackCellAddress,
	"referencemarks":            types.CallbackReferenceMarks,
	"formulafocusstart":         types.CallbackFormula,
}

// KindForName maps a wire callback-type token to its CallbackKind,
// returning CallbackUnknown for anything not special-cased by §4.1.1.
func KindForName(name string) types.CallbackKind {
	if k, ok := callbackNames[name]; ok {
		return k
	}
	return types.CallbackUnknown
}

// ParsePutCallback parses the arguments to TileQueue.put_callback (§4.1)
// into a Callback record.
func ParsePutCallback(viewID int, callbackType, payload string) types.Callback {
	return types.Callback{ViewID: viewID, Kind: KindForName(callbackType), Name: callbackType, Payload: payload}
}

// FormatCallback renders a Callback as an outbound "<name>: <payload>"
// frame (§6.1).
func FormatCallback(c types.Callback) string {
	return c.Name + ": " + c.Payload
}

// ParseInvalidationPayload parses an invalidate_tiles payload of the form
// "x, y, width, height, part[, mode]" (§3, §8 Scenario B).
func ParseInvalidationPayload(payload string) (types.InvalidationRect, error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 5 {
		return types.InvalidationRect{}, fmt.Errorf("protocol: malformed invalidation payload %q", payload)
	}
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return types.InvalidationRect{}, fmt.Errorf("protocol: malformed invalidation payload %q: %w", payload, err)
		}
		nums = append(nums, n)
	}
	r := types.InvalidationRect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3], Part: nums[4]}
	if len(nums) > 5 {
		r.Mode = nums[5]
	}
	return r, nil
}

// FormatInvalidationPayload is the inverse of ParseInvalidationPayload.
func FormatInvalidationPayload(r types.InvalidationRect) string {
	return fmt.Sprintf("%d, %d, %d, %d, %d, %d", r.X, r.Y, r.Width, r.Height, r.Part, r.Mode)
}

// ParseUnoState splits a state_changed payload "name=value" into its
// command name and value (§4.1.1).
func ParseUnoState(payload string) (name, value string) {
	name, value, _ = strings.Cut(payload, "=")
	return name, value
}

// ModifiedStatusCommand is the one UNO command exempt from state-changed
// coalescing (§4.1.1, §8 Scenario D).
const ModifiedStatusCommand = ".uno:ModifiedStatus"

// ExtractViewIDField pulls a top-level "viewId":N (or "viewid":N) field
// out of a JSON-ish callback payload without a full JSON parse, matching
// the original's lightweight tokenizing of engine payloads. Returns "" if
// no such field is present.
func ExtractViewIDField(payload string) string {
	for _, key := range []string{"\"viewId\":", "\"viewid\":"} {
		idx := strings.Index(payload, key)
		if idx < 0 {
			continue
		}
		start := idx + len(key)
		end := start
		for end < len(payload) && (payload[end] == '-' || (payload[end] >= '0' && payload[end] <= '9')) {
			end++
		}
		return payload[start:end]
	}
	return ""
}
