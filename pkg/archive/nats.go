package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
)

// Subjects for archived records and monthly reports.
const (
	SubjectArchivedRecords = "telemetry.archive.records"
	SubjectMonthlyReport   = "telemetry.reports.monthly"
)

// NATSSink publishes archived records and monthly reports to NATS for
// downstream warehousing.
type NATSSink struct {
	conn *nats.Conn
}

// NewNATSSink connects to the given NATS endpoint.
func NewNATSSink(url string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("direct-commerce-telemetry"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %v", err)
	}
	return &NATSSink{conn: nc}, nil
}

// Close drains the connection.
func (s *NATSSink) Close() {
	if s == nil || s.conn == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
}

// Archive publishes one message per archived record.
func (s *NATSSink) Archive(ctx context.Context, records []models.ActivityRecord) error {
	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("failed to encode archived record: %v", err)
		}
		if err := s.conn.Publish(SubjectArchivedRecords, data); err != nil {
			return fmt.Errorf("failed to publish archived record: %v", err)
		}
	}
	return s.conn.Flush()
}

// PublishReport pushes a monthly report summary.
func (s *NATSSink) PublishReport(ctx context.Context, report *models.MonthlyReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode monthly report: %v", err)
	}
	if err := s.conn.Publish(SubjectMonthlyReport, data); err != nil {
		return fmt.Errorf("failed to publish monthly report: %v", err)
	}
	return s.conn.Flush()
}
