package sqlite

import "time"

func (s *Store) AppendIntake(day string, amountMl int, at time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO intake_log (day, amount_ml, recorded_at) VALUES (?, ?, ?)",
		day, amountMl, at.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) DailyTotals(from, to string) (map[string]int, error) {
	rows, err := s.db.Query(
		"SELECT day, SUM(amount_ml) FROM intake_log WHERE day BETWEEN ? AND ? GROUP BY day",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var day string
		var total int
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		totals[day] = total
	}
	return totals, rows.Err()
}
