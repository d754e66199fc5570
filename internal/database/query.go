package database

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/jackc/pgx/v5"
)

// builder renders SQL for a single model. Identifiers only ever come from
// ModelMeta and are quoted with pgx.Identifier; every value is a $n param.
type builder struct {
	model *crud.ModelInfo
	args  []any
}

func newBuilder(model *crud.ModelInfo) *builder {
	return &builder{model: model}
}

func (b *builder) param(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) table() string {
	return pgx.Identifier{b.model.TableName()}.Sanitize()
}

func (b *builder) field(name string) (*crud.FieldInfo, error) {
	f, ok := b.model.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", crud.ErrUnknownField, crud.LowerFirst(b.model.Name), name)
	}
	return f, nil
}

func (b *builder) column(name string) (string, error) {
	f, err := b.field(name)
	if err != nil {
		return "", err
	}
	return pgx.Identifier{f.ColumnName()}.Sanitize(), nil
}

// selectList renders the projection, aliasing every column to its field
// name so result maps are keyed by field. A nil selection means all fields.
func (b *builder) selectList(sel any) (string, error) {
	var fields []string

	switch s := sel.(type) {
	case nil:
		for name := range b.model.Fields {
			fields = append(fields, name)
		}
	case map[string]any:
		for name, on := range s {
			if enabled, _ := on.(bool); !enabled {
				continue
			}
			if _, err := b.field(name); err != nil {
				return "", err
			}
			fields = append(fields, name)
		}
	default:
		return "", fmt.Errorf("%w: select must be an object", crud.ErrInvalidArgs)
	}

	if len(fields) == 0 {
		return "", fmt.Errorf("%w: select must include at least one field", crud.ErrInvalidArgs)
	}
	sort.Strings(fields)

	cols := make([]string, 0, len(fields))
	for _, name := range fields {
		f, _ := b.model.Field(name)
		cols = append(cols, pgx.Identifier{f.ColumnName()}.Sanitize()+" AS "+pgx.Identifier{name}.Sanitize())
	}
	return strings.Join(cols, ", "), nil
}

// where renders a filter object. An empty or nil filter renders "".
func (b *builder) where(w any) (string, error) {
	if w == nil {
		return "", nil
	}
	obj, ok := w.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: where must be an object", crud.ErrInvalidArgs)
	}

	var clauses []string
	for _, key := range sortedKeys(obj) {
		val := obj[key]

		var (
			clause string
			err    error
		)
		switch key {
		case "AND":
			clause, err = b.combine(val, " AND ")
		case "OR":
			// an empty list matches nothing
			if list, isList := val.([]any); isList && len(list) == 0 {
				clause = "FALSE"
				break
			}
			clause, err = b.combine(val, " OR ")
		case "NOT":
			// a list excludes rows matching any entry
			sep := " AND "
			if _, isList := val.([]any); isList {
				sep = " OR "
			}
			clause, err = b.combine(val, sep)
			if clause != "" {
				clause = "NOT " + clause
			}
		default:
			clause, err = b.condition(key, val)
		}
		if err != nil {
			return "", err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}

	return strings.Join(clauses, " AND "), nil
}

// combine renders a filter object or a list of them joined by sep.
func (b *builder) combine(val any, sep string) (string, error) {
	var items []any
	switch v := val.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return "", fmt.Errorf("%w: logical operators take an object or a list", crud.ErrInvalidArgs)
	}

	var parts []string
	for _, item := range items {
		clause, err := b.where(item)
		if err != nil {
			return "", err
		}
		if clause != "" {
			parts = append(parts, "("+clause+")")
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *builder) condition(name string, val any) (string, error) {
	f, err := b.field(name)
	if err != nil {
		return "", err
	}
	col := pgx.Identifier{f.ColumnName()}.Sanitize()

	filter, ok := val.(map[string]any)
	if !ok {
		if val == nil {
			return col + " IS NULL", nil
		}
		v, err := coerce(f, val)
		if err != nil {
			return "", err
		}
		return col + " = " + b.param(v), nil
	}

	like := "LIKE"
	if mode, _ := filter["mode"].(string); mode == "insensitive" {
		like = "ILIKE"
	}

	var parts []string
	for _, op := range sortedKeys(filter) {
		arg := filter[op]
		if op == "mode" {
			continue
		}

		switch op {
		case "equals":
			if arg == nil {
				parts = append(parts, col+" IS NULL")
				continue
			}
		case "not":
			if arg == nil {
				parts = append(parts, col+" IS NOT NULL")
				continue
			}
		}

		switch op {
		case "equals", "not", "lt", "lte", "gt", "gte":
			v, err := coerce(f, arg)
			if err != nil {
				return "", err
			}
			parts = append(parts, col+" "+comparison[op]+" "+b.param(v))

		case "in", "notIn":
			list, ok := arg.([]any)
			if !ok {
				return "", fmt.Errorf("%w: %s.%s expects a list", crud.ErrInvalidArgs, name, op)
			}
			values := make([]any, 0, len(list))
			for _, item := range list {
				v, err := coerce(f, item)
				if err != nil {
					return "", err
				}
				values = append(values, v)
			}
			clause := col + " = ANY(" + b.param(values) + ")"
			if op == "notIn" {
				clause = "NOT (" + clause + ")"
			}
			parts = append(parts, clause)

		case "contains", "startsWith", "endsWith":
			s, ok := arg.(string)
			if !ok {
				return "", fmt.Errorf("%w: %s.%s expects a string", crud.ErrInvalidArgs, name, op)
			}
			pattern := escapeLike(s)
			switch op {
			case "contains":
				pattern = "%" + pattern + "%"
			case "startsWith":
				pattern = pattern + "%"
			case "endsWith":
				pattern = "%" + pattern
			}
			parts = append(parts, col+" "+like+" "+b.param(pattern))

		default:
			return "", fmt.Errorf("%w: unknown filter %q on %s", crud.ErrInvalidArgs, op, name)
		}
	}

	return strings.Join(parts, " AND "), nil
}

var comparison = map[string]string{
	"equals": "=",
	"not":    "<>",
	"lt":     "<",
	"lte":    "<=",
	"gt":     ">",
	"gte":    ">=",
}

// orderBy renders {"field": "asc"} or a list of such objects.
func (b *builder) orderBy(o any) (string, error) {
	var items []any
	switch v := o.(type) {
	case nil:
		return "", nil
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return "", fmt.Errorf("%w: orderBy must be an object or a list", crud.ErrInvalidArgs)
	}

	var parts []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: orderBy entries must be objects", crud.ErrInvalidArgs)
		}
		for _, name := range sortedKeys(obj) {
			col, err := b.column(name)
			if err != nil {
				return "", err
			}
			dir, _ := obj[name].(string)
			switch strings.ToLower(dir) {
			case "asc":
				parts = append(parts, col+" ASC")
			case "desc":
				parts = append(parts, col+" DESC")
			default:
				return "", fmt.Errorf("%w: orderBy.%s must be \"asc\" or \"desc\"", crud.ErrInvalidArgs, name)
			}
		}
	}
	return strings.Join(parts, ", "), nil
}

// assignments returns the sorted columns and params of a data object.
func (b *builder) assignments(d any) ([]string, []string, error) {
	obj, ok := d.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: data must be an object", crud.ErrInvalidArgs)
	}

	cols := make([]string, 0, len(obj))
	params := make([]string, 0, len(obj))
	for _, name := range sortedKeys(obj) {
		f, err := b.field(name)
		if err != nil {
			return nil, nil, err
		}
		v, err := coerce(f, obj[name])
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, pgx.Identifier{f.ColumnName()}.Sanitize())
		params = append(params, b.param(v))
	}
	return cols, params, nil
}

// selectSQL renders a SELECT for findMany/findFirst/findUnique.
func (b *builder) selectSQL(args crud.Args, limit int64) (string, error) {
	cols, err := b.selectList(args["select"])
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + b.table())

	if err := b.writeWhere(&sb, args["where"]); err != nil {
		return "", err
	}

	order, err := b.orderBy(args["orderBy"])
	if err != nil {
		return "", err
	}
	if order != "" {
		sb.WriteString(" ORDER BY " + order)
	}

	// take: 0 is a real limit; only a fixed limit overrides it
	take, hasTake, err := intArg(args, "take")
	if err != nil {
		return "", err
	}
	switch {
	case limit > 0:
		sb.WriteString(" LIMIT " + b.param(limit))
	case hasTake:
		sb.WriteString(" LIMIT " + b.param(take))
	}

	skip, ok, err := intArg(args, "skip")
	if err != nil {
		return "", err
	}
	if ok && skip > 0 {
		sb.WriteString(" OFFSET " + b.param(skip))
	}

	return sb.String(), nil
}

func (b *builder) countSQL(args crud.Args) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT count(*) FROM " + b.table())
	if err := b.writeWhere(&sb, args["where"]); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (b *builder) insertSQL(data any, sel any) (string, error) {
	cols, params, err := b.assignments(data)
	if err != nil {
		return "", err
	}
	returning, err := b.selectList(sel)
	if err != nil {
		return "", err
	}

	if len(cols) == 0 {
		return "INSERT INTO " + b.table() + " DEFAULT VALUES RETURNING " + returning, nil
	}
	return "INSERT INTO " + b.table() + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(params, ", ") + ") RETURNING " + returning, nil
}

// insertManySQL renders a multi-row INSERT. Rows may carry different
// fields; missing ones fall back to DEFAULT.
func (b *builder) insertManySQL(data any, skipDuplicates bool) (string, error) {
	var rows []any
	switch d := data.(type) {
	case []any:
		rows = d
	case map[string]any:
		rows = []any{d}
	default:
		return "", fmt.Errorf("%w: data must be an object or a list", crud.ErrInvalidArgs)
	}
	if len(rows) == 0 {
		return "", nil
	}

	seen := map[string]bool{}
	var fields []string
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: data entries must be objects", crud.ErrInvalidArgs)
		}
		for name := range obj {
			if _, err := b.field(name); err != nil {
				return "", err
			}
			if !seen[name] {
				seen[name] = true
				fields = append(fields, name)
			}
		}
	}
	sort.Strings(fields)

	if len(fields) == 0 {
		// Postgres has no multi-row DEFAULT VALUES.
		return "", fmt.Errorf("%w: createMany rows must set at least one field", crud.ErrInvalidArgs)
	}

	cols := make([]string, 0, len(fields))
	for _, name := range fields {
		col, _ := b.column(name)
		cols = append(cols, col)
	}

	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		obj := row.(map[string]any)
		vals := make([]string, 0, len(fields))
		for _, name := range fields {
			raw, present := obj[name]
			if !present {
				vals = append(vals, "DEFAULT")
				continue
			}
			f, _ := b.model.Field(name)
			v, err := coerce(f, raw)
			if err != nil {
				return "", err
			}
			vals = append(vals, b.param(v))
		}
		tuples = append(tuples, "("+strings.Join(vals, ", ")+")")
	}

	q := "INSERT INTO " + b.table() + " (" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(tuples, ", ")
	if skipDuplicates {
		q += " ON CONFLICT DO NOTHING"
	}
	return q, nil
}

// updateSQL renders an UPDATE. With single set, at most one row matching
// where is touched, and the updated row is returned.
func (b *builder) updateSQL(args crud.Args, single bool) (string, error) {
	cols, params, err := b.assignments(args["data"])
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("%w: data must set at least one field", crud.ErrInvalidArgs)
	}

	sets := make([]string, len(cols))
	for i := range cols {
		sets[i] = cols[i] + " = " + params[i]
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + b.table() + " SET " + strings.Join(sets, ", "))

	if err := b.writeTarget(&sb, args["where"], single); err != nil {
		return "", err
	}

	if single {
		returning, err := b.selectList(args["select"])
		if err != nil {
			return "", err
		}
		sb.WriteString(" RETURNING " + returning)
	}
	return sb.String(), nil
}

// deleteSQL renders a DELETE, with the same single-row rule as updateSQL.
func (b *builder) deleteSQL(args crud.Args, single bool) (string, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM " + b.table())

	if err := b.writeTarget(&sb, args["where"], single); err != nil {
		return "", err
	}

	if single {
		returning, err := b.selectList(args["select"])
		if err != nil {
			return "", err
		}
		sb.WriteString(" RETURNING " + returning)
	}
	return sb.String(), nil
}

func (b *builder) writeWhere(sb *strings.Builder, w any) error {
	clause, err := b.where(w)
	if err != nil {
		return err
	}
	if clause != "" {
		sb.WriteString(" WHERE " + clause)
	}
	return nil
}

// writeTarget narrows UPDATE/DELETE to the rows matching w. Single-row
// statements require a filter and pin one physical row by ctid.
func (b *builder) writeTarget(sb *strings.Builder, w any, single bool) error {
	clause, err := b.where(w)
	if err != nil {
		return err
	}
	if !single {
		if clause != "" {
			sb.WriteString(" WHERE " + clause)
		}
		return nil
	}

	if clause == "" {
		return fmt.Errorf("%w: where is required", crud.ErrInvalidArgs)
	}
	sb.WriteString(" WHERE ctid IN (SELECT ctid FROM " + b.table() + " WHERE " + clause + " LIMIT 1)")
	return nil
}

// aggregateSpec is one output cell of an aggregate query.
type aggregateSpec struct {
	group string // "_count", "_sum", ...
	field string // "" for _count: true
}

// aggregateSQL renders _count/_sum/_avg/_min/_max over the filtered rows.
func (b *builder) aggregateSQL(args crud.Args) (string, []aggregateSpec, error) {
	var (
		exprs []string
		specs []aggregateSpec
	)

	for _, group := range []string{"_count", "_sum", "_avg", "_min", "_max"} {
		raw, present := args[group]
		if !present {
			continue
		}

		if group == "_count" {
			if on, ok := raw.(bool); ok {
				if on {
					exprs = append(exprs, "count(*)")
					specs = append(specs, aggregateSpec{group: group})
				}
				continue
			}
		}

		obj, ok := raw.(map[string]any)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s must be an object", crud.ErrInvalidArgs, group)
		}
		for _, name := range sortedKeys(obj) {
			if on, _ := obj[name].(bool); !on {
				continue
			}
			fn := strings.TrimPrefix(group, "_")
			if group == "_count" && name == "_all" {
				exprs = append(exprs, "count(*)")
				specs = append(specs, aggregateSpec{group: group, field: name})
				continue
			}
			col, err := b.column(name)
			if err != nil {
				return "", nil, err
			}
			exprs = append(exprs, fn+"("+col+")")
			specs = append(specs, aggregateSpec{group: group, field: name})
		}
	}

	if len(exprs) == 0 {
		return "", nil, fmt.Errorf("%w: aggregate requires at least one of _count, _sum, _avg, _min, _max", crud.ErrInvalidArgs)
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(exprs, ", ") + " FROM " + b.table())
	if err := b.writeWhere(&sb, args["where"]); err != nil {
		return "", nil, err
	}
	return sb.String(), specs, nil
}

// coerce converts JSON-decoded values into what the column expects.
// JSON numbers arrive as float64 or json.Number; integer columns need int64.
func coerce(f *crud.FieldInfo, v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		if isIntType(f.Type) {
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be an integer", crud.ErrInvalidArgs, f.Name)
			}
			return i, nil
		}
		fl, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", crud.ErrInvalidArgs, f.Name)
		}
		return fl, nil

	case float64:
		if isIntType(f.Type) {
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: %s must be an integer", crud.ErrInvalidArgs, f.Name)
			}
			return int64(n), nil
		}
		return n, nil

	case map[string]any, []any:
		if f.Type == "Json" {
			return n, nil
		}
		return nil, fmt.Errorf("%w: %s does not accept objects or lists", crud.ErrInvalidArgs, f.Name)
	}
	return v, nil
}

func isIntType(t string) bool {
	return t == "Int" || t == "BigInt"
}

// intArg reads a non-negative integer argument such as take or skip.
func intArg(args crud.Args, key string) (int64, bool, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return 0, false, nil
	}

	var n int64
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("%w: %s must be an integer", crud.ErrInvalidArgs, key)
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s must be an integer", crud.ErrInvalidArgs, key)
		}
		n = i
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return 0, false, fmt.Errorf("%w: %s must be an integer", crud.ErrInvalidArgs, key)
	}

	if n < 0 {
		return 0, false, fmt.Errorf("%w: %s must not be negative", crud.ErrInvalidArgs, key)
	}
	return n, true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
