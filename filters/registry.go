package filters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"relate/model/model"
)

// customFieldKeyRegex Allow-list for caller-supplied attribute keys. The key is
// interpolated into the statement text, so anything outside alphanumeric and
// underscore is rejected before it can reach the query.
var customFieldKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

type fieldOperator struct {
	Field    string
	Operator string
}

// compileFunc Produces a fragment with placeholders numbered from 1 within the
// fragment. Final numbering across fragments is owned by CompileAll.
type compileFunc func(p model.SegmentPredicate) (CompiledExpression, error)

var registry = map[fieldOperator]compileFunc{
	{model.FieldStatus, model.EqualsOpStr}:    directEquals("contacts.status"),
	{model.FieldStatus, model.NotEqualsOpStr}: directNotEquals("contacts.status"),
	{model.FieldStatus, model.InListOpStr}:    directInList("contacts.status"),

	{model.FieldEmail, model.EqualsOpStr}:     directEquals("contacts.email"),
	{model.FieldEmail, model.ContainsOpStr}:   textContains("contacts.email"),
	{model.FieldEmail, model.EndsWithOpStr}:   textEndsWith("contacts.email"),
	{model.FieldEmail, model.IsEmptyOpStr}:    textIsEmpty("contacts.email"),
	{model.FieldEmail, model.IsNotEmptyOpStr}: textIsNotEmpty("contacts.email"),

	{model.FieldPhone, model.ContainsOpStr}:   textContains("contacts.phone"),
	{model.FieldPhone, model.EndsWithOpStr}:   textEndsWith("contacts.phone"),
	{model.FieldPhone, model.IsEmptyOpStr}:    textIsEmpty("contacts.phone"),
	{model.FieldPhone, model.IsNotEmptyOpStr}: textIsNotEmpty("contacts.phone"),

	{model.FieldCompany, model.EqualsOpStr}:     directEquals("contacts.company"),
	{model.FieldCompany, model.ContainsOpStr}:   textContains("contacts.company"),
	{model.FieldCompany, model.IsEmptyOpStr}:    textIsEmpty("contacts.company"),
	{model.FieldCompany, model.IsNotEmptyOpStr}: textIsNotEmpty("contacts.company"),

	{model.FieldAssignedTo, model.EqualsOpStr}:  directEquals("contacts.assigned_to"),
	{model.FieldAssignedTo, model.InListOpStr}:  directInList("contacts.assigned_to"),
	{model.FieldAssignedTo, model.IsEmptyOpStr}: textIsEmpty("contacts.assigned_to"),

	{model.FieldCreatedAt, model.BetweenOpStr}: compileCreatedAtBetween,
	{model.FieldCreatedAt, model.InLastOpStr}:  compileCreatedAtInLast,

	{model.FieldTags, model.HasAnyOpStr}:  compileTagsHasAny,
	{model.FieldTags, model.HasAllOpStr}:  compileTagsHasAll,
	{model.FieldTags, model.HasNoneOpStr}: compileTagsHasNone,

	{model.FieldActivity, model.InLastOpStr}:    activityWindow(false),
	{model.FieldActivity, model.NotInLastOpStr}: activityWindow(true),

	{model.FieldDealStage, model.EqualsOpStr}: relatedExistsEquals("deals", "pipeline_stage_id"),
	{model.FieldDealStage, model.InListOpStr}: relatedExistsInList("deals", "pipeline_stage_id"),

	{model.FieldBookingStatus, model.EqualsOpStr}: relatedExistsEquals("bookings", "status"),
	{model.FieldBookingStatus, model.InListOpStr}: relatedExistsInList("bookings", "status"),

	{model.FieldCampaignEmail, model.OpenedInLastOpStr}:  campaignEngagement("opened_at"),
	{model.FieldCampaignEmail, model.ClickedInLastOpStr}: campaignEngagement("clicked_at"),

	{model.FieldCustomField, model.EqualsOpStr}:     compileCustomField,
	{model.FieldCustomField, model.NotEqualsOpStr}:  compileCustomField,
	{model.FieldCustomField, model.ContainsOpStr}:   compileCustomField,
	{model.FieldCustomField, model.IsEmptyOpStr}:    compileCustomField,
	{model.FieldCustomField, model.IsNotEmptyOpStr}: compileCustomField,
}

// Compile Resolves one predicate through the registry. ok=false with a nil
// error is the skip policy: an unrecognized (field, operator) pair or an
// unusable value contributes no condition and must not alter the overall
// result. Only custom field key rejection is a hard error.
func Compile(p model.SegmentPredicate) (CompiledExpression, bool, error) {
	fn, exists := registry[fieldOperator{Field: p.Field, Operator: p.Operator}]
	if !exists {
		log.WithFields(log.Fields{"field": p.Field, "operator": p.Operator}).
			Debug("Skipping unrecognized segment predicate.")
		return CompiledExpression{}, false, nil
	}

	expr, err := fn(p)
	if err == errSkipPredicate {
		log.WithFields(log.Fields{"field": p.Field, "operator": p.Operator,
			"value": p.Value}).Debug("Skipping segment predicate with unusable value.")
		return CompiledExpression{}, false, nil
	}
	if err != nil {
		return CompiledExpression{}, false, err
	}

	return expr, true, nil
}

// SupportedOperators Returns the operator set the registry holds for a field,
// in catalog order. Used by the field metadata service.
func SupportedOperators(field string) []string {
	operators := make([]string, 0)
	for _, op := range operatorCatalogOrder {
		if _, exists := registry[fieldOperator{Field: field, Operator: op}]; exists {
			operators = append(operators, op)
		}
	}
	return operators
}

var operatorCatalogOrder = []string{
	model.EqualsOpStr, model.NotEqualsOpStr, model.InListOpStr,
	model.ContainsOpStr, model.EndsWithOpStr, model.IsEmptyOpStr,
	model.IsNotEmptyOpStr, model.BetweenOpStr, model.InLastOpStr,
	model.NotInLastOpStr, model.HasAnyOpStr, model.HasAllOpStr,
	model.HasNoneOpStr, model.OpenedInLastOpStr, model.ClickedInLastOpStr,
}

func directEquals(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		value, ok := toStringValue(p.Value)
		if !ok {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL:    fmt.Sprintf("%s = $1", column),
			Params: []interface{}{value},
		}, nil
	}
}

// directNotEquals NULL or empty column values also satisfy a != filter,
// otherwise contacts missing the value would silently drop out of both the
// equals and the not-equals sides.
func directNotEquals(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		value, ok := toStringValue(p.Value)
		if !ok {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL: fmt.Sprintf("(%s != $1 OR %s IS NULL OR %s = '')",
				column, column, column),
			Params: []interface{}{value},
		}, nil
	}
}

func directInList(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		values, ok := toStringSlice(p.Value)
		if !ok || len(values) == 0 {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL:    fmt.Sprintf("%s = ANY($1)", column),
			Params: []interface{}{pq.Array(values)},
		}, nil
	}
}

func textContains(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		value, ok := toStringValue(p.Value)
		if !ok || value == "" {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL:    fmt.Sprintf("LOWER(%s) LIKE $1", column),
			Params: []interface{}{"%" + strings.ToLower(value) + "%"},
		}, nil
	}
}

func textEndsWith(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		value, ok := toStringValue(p.Value)
		if !ok || value == "" {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL:    fmt.Sprintf("LOWER(%s) LIKE $1", column),
			Params: []interface{}{"%" + strings.ToLower(value)},
		}, nil
	}
}

func textIsEmpty(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		return CompiledExpression{
			SQL: fmt.Sprintf("(%s IS NULL OR %s = '')", column, column),
		}, nil
	}
}

func textIsNotEmpty(column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		return CompiledExpression{
			SQL: fmt.Sprintf("(%s IS NOT NULL AND %s != '')", column, column),
		}, nil
	}
}

func compileCreatedAtBetween(p model.SegmentPredicate) (CompiledExpression, error) {
	start, end, ok := toDateRange(p.Value)
	if !ok {
		return CompiledExpression{}, errSkipPredicate
	}
	return CompiledExpression{
		SQL:    "(contacts.created_at >= $1 AND contacts.created_at <= $2)",
		Params: []interface{}{start, end},
	}, nil
}

func compileCreatedAtInLast(p model.SegmentPredicate) (CompiledExpression, error) {
	days, ok := toDayCount(p.Value)
	if !ok {
		return CompiledExpression{}, errSkipPredicate
	}
	return CompiledExpression{
		SQL:    "contacts.created_at >= NOW() - make_interval(days => $1)",
		Params: []interface{}{days},
	}, nil
}

const tagsExistsStmnt = "EXISTS (SELECT 1 FROM contact_tags" +
	" WHERE contact_tags.project_id = contacts.project_id" +
	" AND contact_tags.contact_id = contacts.id" +
	" AND contact_tags.tag_id = ANY($1))"

func compileTagsHasAny(p model.SegmentPredicate) (CompiledExpression, error) {
	tagIds, ok := toStringSlice(p.Value)
	if !ok || len(tagIds) == 0 {
		return CompiledExpression{}, errSkipPredicate
	}
	return CompiledExpression{
		SQL:    tagsExistsStmnt,
		Params: []interface{}{pq.Array(tagIds)},
	}, nil
}

func compileTagsHasNone(p model.SegmentPredicate) (CompiledExpression, error) {
	tagIds, ok := toStringSlice(p.Value)
	if !ok || len(tagIds) == 0 {
		return CompiledExpression{}, errSkipPredicate
	}
	return CompiledExpression{
		SQL:    "NOT " + tagsExistsStmnt,
		Params: []interface{}{pq.Array(tagIds)},
	}, nil
}

// compileTagsHasAll Coverage of every requested tag, as a grouped distinct
// count equality. The join table may hold duplicate rows for the same
// (contact_id, tag_id) pair, so a naive row count would overmatch and a chain
// of per-tag EXISTS clauses would not be a single set condition.
func compileTagsHasAll(p model.SegmentPredicate) (CompiledExpression, error) {
	tagIds, ok := toStringSlice(p.Value)
	if !ok || len(tagIds) == 0 {
		return CompiledExpression{}, errSkipPredicate
	}
	return CompiledExpression{
		SQL: "contacts.id IN (SELECT contact_tags.contact_id FROM contact_tags" +
			" WHERE contact_tags.project_id = contacts.project_id" +
			" AND contact_tags.tag_id = ANY($1)" +
			" GROUP BY contact_tags.contact_id" +
			" HAVING COUNT(DISTINCT contact_tags.tag_id) = $2)",
		Params: []interface{}{pq.Array(tagIds), len(tagIds)},
	}, nil
}

// activityWindow Existence of an activity row inside a trailing window
// measured from evaluation time. Results are inherently time-relative.
func activityWindow(negate bool) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		days, ok := toDayCount(p.Value)
		if !ok {
			return CompiledExpression{}, errSkipPredicate
		}
		stmnt := "EXISTS (SELECT 1 FROM activities" +
			" WHERE activities.project_id = contacts.project_id" +
			" AND activities.contact_id = contacts.id" +
			" AND activities.created_at >= NOW() - make_interval(days => $1))"
		if negate {
			stmnt = "NOT " + stmnt
		}
		return CompiledExpression{SQL: stmnt, Params: []interface{}{days}}, nil
	}
}

func relatedExistsEquals(table, column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		value, ok := toStringValue(p.Value)
		if !ok {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.project_id = contacts.project_id"+
				" AND %s.contact_id = contacts.id AND %s.%s = $1)",
				table, table, table, table, column),
			Params: []interface{}{value},
		}, nil
	}
}

func relatedExistsInList(table, column string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		values, ok := toStringSlice(p.Value)
		if !ok || len(values) == 0 {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.project_id = contacts.project_id"+
				" AND %s.contact_id = contacts.id AND %s.%s = ANY($1))",
				table, table, table, table, column),
			Params: []interface{}{pq.Array(values)},
		}, nil
	}
}

func campaignEngagement(timestampColumn string) compileFunc {
	return func(p model.SegmentPredicate) (CompiledExpression, error) {
		days, ok := toDayCount(p.Value)
		if !ok {
			return CompiledExpression{}, errSkipPredicate
		}
		return CompiledExpression{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM campaign_recipients"+
				" WHERE campaign_recipients.project_id = contacts.project_id"+
				" AND campaign_recipients.contact_id = contacts.id"+
				" AND campaign_recipients.%s >= NOW() - make_interval(days => $1))",
				timestampColumn),
			Params: []interface{}{days},
		}, nil
	}
}

// compileCustomField Open-ended attribute access. The key names a path inside
// the contact's attributes document and cannot be bound as a parameter, so it
// is allow-list validated and then interpolated.
func compileCustomField(p model.SegmentPredicate) (CompiledExpression, error) {
	if !customFieldKeyRegex.MatchString(p.CustomFieldKey) {
		return CompiledExpression{}, ErrInvalidCustomFieldKey
	}
	accessor := fmt.Sprintf("contacts.attributes->>'%s'", p.CustomFieldKey)

	switch p.Operator {
	case model.IsEmptyOpStr:
		return CompiledExpression{
			SQL: fmt.Sprintf("(%s IS NULL OR %s = '')", accessor, accessor),
		}, nil
	case model.IsNotEmptyOpStr:
		return CompiledExpression{
			SQL: fmt.Sprintf("(%s IS NOT NULL AND %s != '')", accessor, accessor),
		}, nil
	}

	value, ok := toStringValue(p.Value)
	if !ok {
		return CompiledExpression{}, errSkipPredicate
	}

	switch p.Operator {
	case model.EqualsOpStr:
		return CompiledExpression{
			SQL:    fmt.Sprintf("%s = $1", accessor),
			Params: []interface{}{value},
		}, nil
	case model.NotEqualsOpStr:
		return CompiledExpression{
			SQL: fmt.Sprintf("(%s != $1 OR %s IS NULL OR %s = '')",
				accessor, accessor, accessor),
			Params: []interface{}{value},
		}, nil
	case model.ContainsOpStr:
		return CompiledExpression{
			SQL:    fmt.Sprintf("LOWER(%s) LIKE $1", accessor),
			Params: []interface{}{"%" + strings.ToLower(value) + "%"},
		}, nil
	}

	return CompiledExpression{}, errSkipPredicate
}

// Value coercion. Stored predicate values come back from jsonb as
// interface{}, []interface{} and float64; anything the operator cannot use
// degrades to skip upstream.

func toStringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

func toStringSlice(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := toStringValue(item)
			if !ok {
				return nil, false
			}
			values = append(values, s)
		}
		return values, true
	}
	return nil, false
}

func toDayCount(value interface{}) (int, bool) {
	var days int
	switch v := value.(type) {
	case float64:
		days = int(v)
	case int:
		days = v
	case int64:
		days = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		days = parsed
	default:
		return 0, false
	}

	if days <= 0 {
		return 0, false
	}
	return days, true
}

func toDateRange(value interface{}) (string, string, bool) {
	rangeMap, ok := value.(map[string]interface{})
	if !ok {
		return "", "", false
	}

	start, startOk := toStringValue(rangeMap["start"])
	end, endOk := toStringValue(rangeMap["end"])
	if !startOk || !endOk || start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}
