// Package export writes schedules as JSON, CSV or an HTML delay chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/model"
)

// csvHeader is the column order of WriteCSV.
var csvHeader = []string{"flight_id", "time_slot", "aircraft_id", "crew_id", "delay_minutes", "sla_missed", "cargo_type", "priority"}

// WriteJSON writes the full result to w.
func WriteJSON(w io.Writer, r model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per assignment.
func WriteCSV(w io.Writer, s model.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, a := range s {
		rec := []string{
			a.FlightID,
			a.TimeSlot.String(),
			a.AircraftID,
			a.CrewID,
			strconv.Itoa(a.DelayMinutes),
			strconv.FormatBool(a.SLAMissed),
			a.CargoType,
			strconv.Itoa(a.Priority),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHTML renders a bar chart of the delay per flight.
func WriteHTML(w io.Writer, r model.Result) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Cargo schedule"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Departure delay per flight",
			Subtitle: command.StatusLabel(r) + ", objective " + strconv.FormatFloat(r.ObjectiveValue, 'f', 0, 64),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Flight"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Delay (min)"}),
	)

	xAxis := make([]string, 0, len(r.Schedule))
	delays := make([]opts.BarData, 0, len(r.Schedule))
	for _, a := range r.Schedule {
		xAxis = append(xAxis, a.FlightID)
		d := opts.BarData{Name: a.TimeSlot.String(), Value: a.DelayMinutes}
		if a.SLAMissed {
			d.ItemStyle = &opts.ItemStyle{Color: "#c23531"}
		}
		delays = append(delays, d)
	}
	bar.SetXAxis(xAxis).AddSeries("Delay", delays)
	return bar.Render(w)
}
