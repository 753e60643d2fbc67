package sqlite

import (
	"fmt"
	"strings"
)

// placeholder returns a numbered placeholder; the driver binds $N by position.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n placeholders for SQLite
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// inList returns "(... )" with placeholders numbered from start for n values.
func inList(start, n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(start + i)
	}
	return "(" + strings.Join(list, ", ") + ")"
}
