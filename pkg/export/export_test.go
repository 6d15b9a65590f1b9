package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cargoplan/core/model"
)

func sample() model.Result {
	return model.Result{
		Schedule: model.Schedule{
			{FlightID: "F1", TimeSlot: model.MustClock("06:00"), AircraftID: "A1", CrewID: "C1", CargoType: "Express", Priority: 1},
			{FlightID: "F2", TimeSlot: model.MustClock("07:00"), AircraftID: "A2", CrewID: "C2", DelayMinutes: 60, SLAMissed: true, CargoType: "Standard", Priority: 3},
		},
		ObjectiveValue: 160,
		Certified:      true,
		Status:         "optimal",
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))
	var out model.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, sample().Schedule, out.Schedule)
	assert.Equal(t, 160.0, out.ObjectiveValue)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample().Schedule))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"F2", "07:00", "A2", "C2", "60", "true", "Standard", "3"}, rows[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "flight_id,time_slot,aircraft_id,crew_id,delay_minutes,sla_missed,cargo_type,priority\n", buf.String())
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sample()))
	html := buf.String()
	assert.Contains(t, html, "Departure delay per flight")
	assert.Contains(t, html, "F2")
	assert.Contains(t, html, "Cargo schedule")
}
