// Package typeql parses the query language subset the reasoner accepts.
//
//	match $x isa person, has status "active"; get $x;
//	match $r (friend: $x, friend: $y) isa friendship; $x != $y;
//	match $x isa person; not { $x has status "idle"; };
//	rule person-active: when { $x isa person; } then { $x has status "active"; };
//
// Literal ownerships and unnamed relations get anonymous variables, which
// never appear in answers.
package typeql
