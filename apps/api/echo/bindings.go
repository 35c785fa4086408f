package echoapi

import (
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/progress"
)

var orderingParam = "ordering"

// Ordering is bound from `?ordering=dueDate,-title`; a leading "-" sorts descending.
type Ordering struct {
	Orderings []FieldOrdering
}

type FieldOrdering struct {
	Field     string
	Ascending bool
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if _, ok := assignmentLess[field]; !ok {
			continue
		}
		ord.Orderings = append(ord.Orderings, FieldOrdering{Field: field, Ascending: !descending})
	}
}

var assignmentLess = map[string]func(a, b assignment.Assignment) int{
	"title":     func(a, b assignment.Assignment) int { return strings.Compare(a.Title, b.Title) },
	"dueDate":   func(a, b assignment.Assignment) int { return a.DueDate.Compare(b.DueDate) },
	"createdAt": func(a, b assignment.Assignment) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// Sort orders asgs in place; without orderings the stored order is kept.
func (ord *Ordering) Sort(asgs []assignment.Assignment) {
	sortBy(ord, asgs, func(a assignment.Assignment) assignment.Assignment { return a })
}

// SortStudentView orders a student's assignment view like Sort.
func (ord *Ordering) SortStudentView(views []progress.StudentAssignment) {
	sortBy(ord, views, func(v progress.StudentAssignment) assignment.Assignment { return v.Assignment })
}

func sortBy[T any](ord *Ordering, items []T, asg func(T) assignment.Assignment) {
	if len(ord.Orderings) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, o := range ord.Orderings {
			c := assignmentLess[o.Field](asg(items[i]), asg(items[j]))
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
