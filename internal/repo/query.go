package repo

type (
	QueryField     string
	ComparisonOp   string
	OrderDirection string
)

const (
	Equal    ComparisonOp = "="
	NotEqual ComparisonOp = "!="
	In       ComparisonOp = "IN"

	// IsNull matches NULL columns and, when a value is supplied, the zero
	// value too. Untagged pre-tenancy rows appear both ways.
	IsNull ComparisonOp = "IS NULL"

	Desc OrderDirection = "desc"
	Asc  OrderDirection = "asc"

	IDField             QueryField = "id"
	OrganizationIDField QueryField = "organization_id"
	PrincipalIDField    QueryField = "principal_id"
	HomeIDField         QueryField = "home_id"
	ResidentIDField     QueryField = "resident_id"
	ActiveField         QueryField = "active"
	RoleField           QueryField = "role"
	NameField           QueryField = "name"
	StateField          QueryField = "state"
	EnvironmentField    QueryField = "environment"
	BlobPathField       QueryField = "blob_path"
	CreatedField        QueryField = "created_at"
)

type Condition struct {
	Field QueryField
	Op    ComparisonOp
	Value any
}

type Order struct {
	Field     QueryField
	Direction OrderDirection
}

// Query is a composable filter over a single resource kind. The zero limit
// means DefaultLimit; SetLimit(0) requests an unbounded query, which only
// the migration coordinator may do.
type Query struct {
	Conditions  []Condition
	OrderFields []Order

	limit    int
	offset   int
	noLimit  bool
	hasLimit bool
}

func NewQuery() *Query {
	return &Query{}
}

// Where adds an equality condition. Slice values compare with IN.
func (q *Query) Where(field QueryField, value any) *Query {
	q.Conditions = append(q.Conditions, Condition{Field: field, Op: Equal, Value: value})
	return q
}

// WhereNull matches rows where the field is NULL or equals zero.
func (q *Query) WhereNull(field QueryField, zero any) *Query {
	q.Conditions = append(q.Conditions, Condition{Field: field, Op: IsNull, Value: zero})
	return q
}

// WhereOp adds a condition with an explicit comparison operator.
func (q *Query) WhereOp(field QueryField, op ComparisonOp, value any) *Query {
	q.Conditions = append(q.Conditions, Condition{Field: field, Op: op, Value: value})
	return q
}

func (q *Query) OrderBy(field QueryField, direction OrderDirection) *Query {
	q.OrderFields = append(q.OrderFields, Order{Field: field, Direction: direction})
	return q
}

// SetLimit caps the result set. Zero removes the cap.
func (q *Query) SetLimit(limit int) *Query {
	q.hasLimit = true
	q.limit = limit
	q.noLimit = limit == 0

	return q
}

func (q *Query) SetOffset(offset int) *Query {
	q.offset = offset
	return q
}

// Limit resolves the effective limit; negative means unbounded.
func (q *Query) Limit() int {
	switch {
	case q.noLimit:
		return -1
	case !q.hasLimit:
		return DefaultLimit
	default:
		return q.limit
	}
}

func (q *Query) Offset() int {
	return q.offset
}
