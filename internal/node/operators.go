package node

// BinaryOperator is an operator of a BinaryExpression.
type BinaryOperator string

var binaryOperators = map[BinaryOperator]bool{
	"==": true, "!=": true, "===": true, "!==": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"<<": true, ">>": true, ">>>": true,
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true,
	"|": true, "^": true, "&": true,
	"in": true, "instanceof": true,
}

func (op BinaryOperator) Valid() bool { return binaryOperators[op] }

// LogicalOperator is an operator of a LogicalExpression.
type LogicalOperator string

const (
	LogicalAnd     LogicalOperator = "&&"
	LogicalOr      LogicalOperator = "||"
	LogicalNullish LogicalOperator = "??"
)

func (op LogicalOperator) Valid() bool {
	return op == LogicalAnd || op == LogicalOr || op == LogicalNullish
}

// IsLogical reports whether a source operator token belongs to the
// logical set rather than the binary one.
func IsLogical(op string) bool { return LogicalOperator(op).Valid() }

// UnaryOperator is an operator of a UnaryExpression.
type UnaryOperator string

var unaryOperators = map[UnaryOperator]bool{
	"-": true, "+": true, "!": true, "~": true,
	"typeof": true, "void": true, "delete": true,
}

func (op UnaryOperator) Valid() bool { return unaryOperators[op] }

// AssignmentOperator is an operator of an AssignmentExpression.
type AssignmentOperator string

var assignmentOperators = map[AssignmentOperator]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true, "**=": true,
	"<<=": true, ">>=": true, ">>>=": true,
	"|=": true, "^=": true, "&=": true,
	"&&=": true, "||=": true, "??=": true,
}

func (op AssignmentOperator) Valid() bool { return assignmentOperators[op] }
