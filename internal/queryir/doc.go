// Package queryir provides the relational intermediate representation that
// traversal plans compile to.
//
// A retrievable query is translated into a single Select over the graph
// tables (things, ownerships, role_players). Each query variable owns one
// aliased source; edges between variables become column equalities.
//
//	[pattern.Query] -> [queryir.Select] -> [querysql.Statement]
//
// QueryIR is the boundary between the planner and the SQL backend. The
// planner reasons about variables and types; the backend only sees
// aliases, columns and predicates.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case ColumnEquals:
//	case ColumnNotEquals:
//	case In:
//	case Param:
//	case And:
//	}
//
// PARAMETERS:
//
// A Param predicate compares a column against a numbered slot that is only
// filled in at execution time. One compiled plan therefore serves every
// query that differs only in the instance ids it pins.
//
// DETERMINISM:
//
// Every Select carries an explicit OrderBy. Backends must honour it so the
// same data always yields answers in the same order.
package queryir
