package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, c.Minutes())
	assert.Equal(t, "08:30", c.String())

	for _, bad := range []string{"", "8", "24:00", "10:60", "aa:bb"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestSlotsValidate(t *testing.T) {
	assert.Error(t, Slots{}.Validate())
	assert.Error(t, Slots{MustClock("09:00"), MustClock("08:00")}.Validate())
	s := Every(MustClock("06:00"), MustClock("07:00"), 15)
	require.Len(t, s, 5)
	assert.NoError(t, s.Validate())
}

func TestPriorityMultiplier(t *testing.T) {
	m, err := PriorityMultiplier(10)
	require.NoError(t, err)
	assert.Equal(t, 3.0, m)
	m, _ = PriorityMultiplier(5)
	assert.Equal(t, 1.0, m)
	_, err = PriorityMultiplier(11)
	assert.Error(t, err)
}

func TestFlightDelayAndSLA(t *testing.T) {
	f, err := NewFlight("F1", "MEM", "ORD", "Medical", 10, MustClock("08:00"), MustClock("09:00"), 90)
	require.NoError(t, err)
	assert.Equal(t, 0, f.DelayAt(MustClock("07:30")))
	assert.Equal(t, 45, f.DelayAt(MustClock("08:45")))
	assert.False(t, f.MissesSLA(MustClock("09:00")))
	assert.True(t, f.MissesSLA(MustClock("09:15")))
}

func TestAircraftUsable(t *testing.T) {
	assert.True(t, Aircraft{ID: "A1", MaintenanceDue: 10}.Usable())
	assert.False(t, Aircraft{ID: "A1", MaintenanceDue: 0}.Usable())
	assert.False(t, Aircraft{ID: "A1", MaintenanceDue: 10, InMaintenance: true}.Usable())
}

func TestMatricesDefaultDeny(t *testing.T) {
	cert := CertificationMatrix{}
	cert.Set("A1", "C1", true)
	assert.True(t, cert.Allowed("A1", "C1"))
	assert.False(t, cert.Allowed("A1", "C2"))
	assert.False(t, cert.Allowed("A2", "C1"))

	gw := GatewayMatrix{}
	gw.Set("A1", "ORD", true)
	assert.True(t, gw.Compatible("A1", "ORD"))
	assert.False(t, gw.Compatible("A1", "LAX"))
}

func TestDatasetCloneIsDeep(t *testing.T) {
	d := Dataset{
		Aircraft:      []Aircraft{{ID: "A1", MaintenanceDue: 5}},
		Certification: CertificationMatrix{},
		Gateways:      GatewayMatrix{},
		Specs:         map[string]AircraftSpec{"A1": {AircraftID: "A1"}},
	}
	d.Certification.Set("A1", "C1", true)
	cp := d.Clone()
	cp.Aircraft[0].InMaintenance = true
	cp.Certification.Set("A1", "C1", false)
	assert.False(t, d.Aircraft[0].InMaintenance)
	assert.True(t, d.Certification.Allowed("A1", "C1"))
}

func TestDatasetValidateDuplicates(t *testing.T) {
	d := Dataset{
		Slots:   Slots{MustClock("08:00")},
		Flights: []Flight{{ID: "F1"}, {ID: "F1"}},
	}
	assert.ErrorContains(t, d.Validate(), "duplicate flight")
}

func TestChangesJSON(t *testing.T) {
	b, err := json.Marshal(InitialRun())
	require.NoError(t, err)
	assert.JSONEq(t, `"Initial optimization"`, string(b))

	b, err = json.Marshal(ChangeLines([]string{"No changes detected"}))
	require.NoError(t, err)
	assert.JSONEq(t, `["No changes detected"]`, string(b))

	var c Changes
	require.NoError(t, json.Unmarshal([]byte(`"Initial optimization"`), &c))
	assert.True(t, c.Initial)
	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &c))
	assert.Equal(t, []string{"a", "b"}, c.Lines)
}

func TestResultPayloadShape(t *testing.T) {
	r := Result{
		Schedule: Schedule{{FlightID: "F1", TimeSlot: MustClock("08:00"), AircraftID: "A1", CrewID: "C1", CargoType: "Medical", Priority: 10}},
		Changes:  InitialRun(),
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	row := m["schedule"].([]any)[0].(map[string]any)
	assert.Equal(t, "08:00", row["time_slot"])
	assert.Equal(t, "Initial optimization", m["changes"])
}
