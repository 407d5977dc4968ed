package todo

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// Partition splits todos into pending and completed, preserving order.
// The input is not modified.
func Partition(todos []Todo) (pending, completed []Todo) {
	pending = make([]Todo, 0, len(todos))
	completed = make([]Todo, 0)
	for _, t := range todos {
		if t.Completed {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}
	return pending, completed
}

func StatsOf(todos []Todo) Stats {
	s := Stats{Total: len(todos)}
	for _, t := range todos {
		if t.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}
