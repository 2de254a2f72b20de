package sqlbase

import "strconv"

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// Placeholder returns the bind parameter for the n-th argument, starting at 1.
	Placeholder func(n int) string
}

// Postgres uses numbered parameters.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// SQLite uses positional parameters.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
}

// Bind replaces every "?" in query with the dialect placeholder.
func (d Dialect) Bind(query string) string {
	if d.Placeholder == nil {
		return query
	}

	out := make([]byte, 0, len(query)+8)
	n := 0

	for i := range len(query) {
		if query[i] != '?' {
			out = append(out, query[i])

			continue
		}

		n++
		out = append(out, d.Placeholder(n)...)
	}

	return string(out)
}
