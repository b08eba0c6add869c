package model

// Значение гео-полей, когда обогащение не удалось.
const Unknown = "Unknown"

// AuditEvent — одна обогащённая запись телеметрии.
// Только добавляется в журнал, обратно не читается.
type AuditEvent struct {
	// ObservedAt — время записи в таймзоне отображения, уже отформатированное.
	ObservedAt       string
	Action           string
	URLPath          string
	MediaKind        string
	Country          string
	City             string
	Region           string
	SessionID        string
	DeviceType       string
	UserAgent        string
	ScreenResolution string
}

// Row возвращает ячейки строки журнала в порядке колонок таблицы.
func (e *AuditEvent) Row() []string {
	return []string{
		e.ObservedAt,
		e.Action,
		e.URLPath,
		e.MediaKind,
		e.Country,
		e.City,
		e.Region,
		e.SessionID,
		e.DeviceType,
		e.UserAgent,
		e.ScreenResolution,
	}
}
