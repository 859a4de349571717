package safesql

// Curated allowlist of functions that cannot reveal more than their column
// inputs already do. Grouped by category; the union is the default function
// policy when a rule set does not carry its own list.

var safeAggregateFunctions = []string{
	"avg",
	"count",
	"group_concat",
	"max",
	"min",
	"sum",
	"total",
}

var safeDateFunctions = []string{
	"current_date",
	"current_time",
	"current_timestamp",
	"date",
	"date_part",
	"date_trunc",
	"datetime",
	"extract",
	"julianday",
	"now",
	"strftime",
	"time",
	"to_timestamp",
}

var safeStringFunctions = []string{
	"char_length",
	"character_length",
	"concat",
	"concat_ws",
	"format",
	"hex",
	"initcap",
	"instr",
	"left",
	"length",
	"lower",
	"lpad",
	"ltrim",
	"repeat",
	"replace",
	"reverse",
	"right",
	"rpad",
	"rtrim",
	"split_part",
	"strpos",
	"substr",
	"substring",
	"trim",
	"upper",
}

var safeMathFunctions = []string{
	"abs",
	"acos",
	"asin",
	"atan",
	"atan2",
	"ceil",
	"ceiling",
	"cos",
	"degrees",
	"exp",
	"floor",
	"ln",
	"log",
	"log10",
	"mod",
	"pi",
	"power",
	"radians",
	"round",
	"sign",
	"sin",
	"sqrt",
	"tan",
	"trunc",
}

var safeOtherFunctions = []string{
	"coalesce",
	"ifnull",
	"iif",
	"nullif",
	"typeof",
}

// safeFunctions is the union of all safe function groups, keyed lowercase.
var safeFunctions = func() map[string]struct{} {
	out := make(map[string]struct{})
	for _, group := range [][]string{
		safeAggregateFunctions,
		safeDateFunctions,
		safeStringFunctions,
		safeMathFunctions,
		safeOtherFunctions,
	} {
		for _, fn := range group {
			out[fn] = struct{}{}
		}
	}
	return out
}()

// IsSafeFunction reports whether the lowercase function name is in the
// curated safe set.
func IsSafeFunction(name string) bool {
	_, ok := safeFunctions[name]
	return ok
}

// SafeFunctions returns the curated safe function names, for inclusion in
// prompt envelopes and documentation.
func SafeFunctions() []string {
	out := make([]string, 0, len(safeFunctions))
	for fn := range safeFunctions {
		out = append(out, fn)
	}
	return out
}
