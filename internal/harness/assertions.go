package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes the event log to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Events   []gym.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvent log:\n")
		for i, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", i+1, ev.GymID, ev.Kind, ev.Describe())
		}
	}

	return buf.String()
}

// filterGym returns the events of one gym, or all events when gymID is empty.
func filterGym(events []gym.Event, gymID string) []gym.Event {
	if gymID == "" {
		return events
	}
	out := []gym.Event{}
	for _, ev := range events {
		if ev.GymID == gymID {
			out = append(out, ev)
		}
	}
	return out
}

// assertEventContains checks that some event matches kind, trainer and
// fields (subset match).
func assertEventContains(events []gym.Event, a Assertion) error {
	for _, ev := range filterGym(events, a.Gym) {
		if string(ev.Kind) != a.Kind {
			continue
		}
		if a.Trainer != "" && ev.Trainer != a.Trainer {
			continue
		}
		if matchFields(ev, a.Fields) {
			return nil
		}
	}

	expected := fmt.Sprintf("event %s", a.Kind)
	if a.Gym != "" {
		expected += " on gym " + a.Gym
	}
	if a.Trainer != "" {
		expected += " for trainer " + a.Trainer
	}
	if len(a.Fields) > 0 {
		expected += " with " + formatWhereClause(a.Fields)
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: expected,
		Actual:   "not found in event log",
		Events:   events,
	}
}

// assertEventOrder checks that the first occurrences of kinds appear in the
// given order. Intervening events are allowed.
func assertEventOrder(events []gym.Event, a Assertion) error {
	scoped := filterGym(events, a.Gym)

	positions := make(map[string]int)
	for i, ev := range scoped {
		for _, kind := range a.Kinds {
			if string(ev.Kind) == kind && positions[kind] == 0 {
				positions[kind] = i + 1
			}
		}
	}

	for _, kind := range a.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all kinds present: %v", a.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Events:   events,
			}
		}
	}

	for i := 1; i < len(a.Kinds); i++ {
		prev, curr := a.Kinds[i-1], a.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Events: events,
			}
		}
	}

	return nil
}

// assertEventCount checks that kind occurs exactly Count times.
func assertEventCount(events []gym.Event, a Assertion) error {
	count := 0
	for _, ev := range filterGym(events, a.Gym) {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Events:   events,
		}
	}
	return nil
}

// matchFields checks the optional event attributes named in want.
func matchFields(ev gym.Event, want map[string]any) bool {
	for key, expected := range want {
		var actual any
		switch key {
		case "points_delta":
			actual = intValue(ev.PointsDelta)
		case "points":
			actual = intValue(ev.Points)
		case "old_team":
			actual = intValue(ev.OldTeam)
		case "new_team":
			actual = intValue(ev.NewTeam)
		case "pass_id":
			actual = ev.PassID
		case "seq":
			actual = int64(ev.Seq)
		default:
			return false
		}
		if !stateValuesEqual(expected, actual) {
			return false
		}
	}
	return true
}

func intValue(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

// assertFinalState checks that exactly one row of table matches Where and
// that it carries the Expect values (subset match).
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	// Identifiers can't be parameterized.
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", a.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	keys := sortedKeys(a.Expect)
	for _, key := range keys {
		expectedValue := a.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML scalar to a SQL argument.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, float64:
		return val
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a YAML value with a SQLite or event value.
// SQLite returns int64 for integers and stores booleans as 0/1.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		return stateValuesEqual(int64(exp), actual)
	case int64:
		switch act := actual.(type) {
		case int64:
			return exp == act
		case int:
			return exp == int64(act)
		}
		return false
	case float64:
		switch act := actual.(type) {
		case float64:
			return exp == act
		case int64:
			return exp == float64(act)
		}
		return false
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides database access for final_state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertEventContains:
			err = assertEventContains(result.Events, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Events, a)
		case AssertEventCount:
			err = assertEventCount(result.Events, a)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
