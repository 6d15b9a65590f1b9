package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/cargoplan/core/logger"
	coremetrics "github.com/kilianp07/cargoplan/core/metrics"
	infralog "github.com/kilianp07/cargoplan/infra/logger"
)

// InfluxSink writes run and mutation points to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralog.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one optimization_run point.
func (s *InfluxSink) RecordRun(r coremetrics.RunReport) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, runPoint(r))
}

func runPoint(r coremetrics.RunReport) *write.Point {
	return write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", r.RunID).
		AddTag("trigger", r.Trigger).
		AddTag("status", r.Status).
		AddTag("accepted", strconv.FormatBool(r.Accepted)).
		AddField("objective", round3(r.Objective)).
		AddField("nodes", r.Nodes).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		AddField("flights", r.Flights).
		AddField("total_delay_minutes", r.TotalDelay).
		AddField("sla_misses", r.SLAMisses).
		AddField("changes", r.Changes).
		AddField("aircraft_used", r.AircraftUsed).
		AddField("crew_used", r.CrewUsed).
		AddField("overtime_minutes", round3(r.OvertimeMinutes)).
		SetTime(r.Time)
}

// RecordMutation writes one data_mutation point.
func (s *InfluxSink) RecordMutation(m coremetrics.MutationReport) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("data_mutation").
		AddTag("entity", m.Entity).
		AddTag("entity_id", m.ID).
		AddField("applied", m.Applied).
		SetTime(m.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
