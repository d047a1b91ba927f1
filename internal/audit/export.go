package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"id", "actor_id", "accion", "entidad", "entidad_id", "ip_origen", "user_agent", "creado_en"}

// WriteCSV serialises audit entries, one row per entry.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		actor := ""
		if e.ActorID != nil {
			actor = strconv.FormatInt(*e.ActorID, 10)
		}
		if err := writer.Write([]string{
			strconv.FormatInt(e.ID, 10),
			actor,
			e.Action,
			e.Entity,
			deref(e.EntityID),
			deref(e.IP),
			deref(e.UserAgent),
			e.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
