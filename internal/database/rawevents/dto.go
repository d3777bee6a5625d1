package rawevents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SergeyKozhin/omnical/internal/model"
)

type rawEventDTO struct {
	CalendarID     string    `db:"calendar_id"`
	UID            string    `db:"uid"`
	RecurrenceKey  string    `db:"recurrence_key"`
	AllDay         bool      `db:"all_day"`
	StartUTC       time.Time `db:"start_utc"`
	EndUTC         time.Time `db:"end_utc"`
	Timezone       string    `db:"timezone"`
	Status         string    `db:"status"`
	Summary        string    `db:"summary"`
	Location       string    `db:"location"`
	Description    string    `db:"description"`
	RecurrenceJSON *string   `db:"recurrence_json"`
	SourceJSON     string    `db:"source_json"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type updatedAtDTO struct {
	UpdatedAt time.Time `db:"updated_at"`
}

func mapToRawEvent(dto *rawEventDTO) *model.RawEvent {
	ev := &model.RawEvent{
		CalendarID:    dto.CalendarID,
		UID:           dto.UID,
		RecurrenceKey: dto.RecurrenceKey,
		AllDay:        dto.AllDay,
		Start:         dto.StartUTC.UTC(),
		End:           dto.EndUTC.UTC(),
		Timezone:      dto.Timezone,
		Status:        dto.Status,
		Summary:       dto.Summary,
		Location:      dto.Location,
		Description:   dto.Description,
		SourcePayload: []byte(dto.SourceJSON),
		UpdatedAt:     dto.UpdatedAt.UTC(),
	}

	if dto.RecurrenceJSON != nil {
		rec := &model.Recurrence{}
		if err := json.Unmarshal([]byte(*dto.RecurrenceJSON), rec); err != nil {
			rec = &model.Recurrence{Err: fmt.Errorf("%w: %v", model.ErrMalformedRecurrence, err)}
		}
		ev.Recurrence = rec
	}

	return ev
}

func recurrenceValue(rec *model.Recurrence) (*string, error) {
	if rec == nil {
		return nil, nil
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal recurrence: %w", err)
	}

	s := string(b)
	return &s, nil
}

func sourceValue(payload []byte) string {
	if len(payload) == 0 {
		return "{}"
	}
	return string(payload)
}
