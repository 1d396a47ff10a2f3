package store

import "context"

// LoadEvents returns the full ordered event log for a task, used by the
// executor to build a replay cursor (spec.md §4.5 step 1).
func (s *Store) LoadEvents(ctx context.Context, taskID int64) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, index, label, value FROM durable.event
		WHERE task_id = $1
		ORDER BY index ASC
	`, taskID)
	if err != nil {
		return nil, wrapStoreErr("load events", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.TaskID, &e.Index, &e.Label, &e.Value); err != nil {
			return nil, wrapStoreErr("scan event", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LoadLog returns the free-form log lines for a task, in index order.
func (s *Store) LoadLog(ctx context.Context, taskID int64) ([]LogLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, index, message FROM durable.log
		WHERE task_id = $1
		ORDER BY index ASC
	`, taskID)
	if err != nil {
		return nil, wrapStoreErr("load log", err)
	}
	defer rows.Close()

	var lines []LogLine
	for rows.Next() {
		var l LogLine
		if err := rows.Scan(&l.TaskID, &l.Index, &l.Message); err != nil {
			return nil, wrapStoreErr("scan log line", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
