package mysql

// reservedWords are the MySQL keywords that cannot be used as unquoted
// aliases or identifiers.
var reservedWords = []string{
	"accessible", "add", "all", "alter", "analyze", "and", "as", "asc",
	"before", "between", "bigint", "binary", "blob", "both", "by",
	"call", "cascade", "case", "change", "char", "character", "check",
	"collate", "column", "condition", "constraint", "continue",
	"convert", "create", "cross", "current_date", "current_time",
	"current_timestamp", "current_user", "cursor", "database",
	"databases", "decimal", "declare", "default", "delayed", "delete",
	"desc", "describe", "distinct", "distinctrow", "div", "double",
	"drop", "dual", "each", "else", "elseif", "enclosed", "escaped",
	"except", "exists", "exit", "explain", "false", "fetch", "float",
	"for", "force", "foreign", "from", "fulltext", "generated", "grant",
	"group", "grouping", "groups", "having", "high_priority", "if",
	"ignore", "in", "index", "infile", "inner", "inout", "insert",
	"int", "integer", "interval", "into", "is", "iterate", "join",
	"key", "keys", "kill", "lateral", "leading", "leave", "left",
	"like", "limit", "linear", "lines", "load", "localtime",
	"localtimestamp", "lock", "long", "longblob", "longtext", "loop",
	"low_priority", "match", "mediumblob", "mediumint", "mediumtext",
	"mod", "modifies", "natural", "not", "null", "numeric", "of",
	"offset", "on", "optimize", "option", "optionally", "or", "order",
	"out", "outer", "outfile", "over", "partition", "precision",
	"primary", "procedure", "purge", "range", "read", "reads", "real",
	"recursive", "references", "regexp", "release", "rename", "repeat",
	"replace", "require", "resignal", "restrict", "return", "revoke",
	"right", "rlike", "row", "rows", "schema", "schemas", "select",
	"sensitive", "separator", "set", "show", "signal", "smallint",
	"spatial", "specific", "sql", "sqlexception", "sqlstate",
	"sqlwarning", "ssl", "starting", "stored", "straight_join",
	"system", "table", "terminated", "then", "tinyblob", "tinyint",
	"tinytext", "to", "trailing", "trigger", "true", "undo", "union",
	"unique", "unlock", "unsigned", "update", "usage", "use", "using",
	"values", "varbinary", "varchar", "varcharacter", "varying",
	"virtual", "when", "where", "while", "window", "with", "write",
	"xor", "year_month", "zerofill",
}
