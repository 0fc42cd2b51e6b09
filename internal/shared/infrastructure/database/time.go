package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// timeLayout is fixed width so stored text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC for text timestamp columns.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// TimeArg converts t into the argument form the driver stores: native
// timestamps for PostgreSQL, fixed-width text for SQLite. A zero time
// becomes NULL.
func TimeArg(d Driver, t time.Time) any {
	if t.IsZero() {
		return nil
	}
	if d == DriverPostgres {
		return t.UTC()
	}
	return FormatTime(t)
}

// Time scans a timestamp column stored either natively or as text.
// NULL scans as the zero time.
type Time struct {
	time.Time
}

// Scan implements sql.Scanner.
func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into database.Time", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t Time) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return FormatTime(t.Time), nil
}

func (t *Time) parse(s string) error {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
