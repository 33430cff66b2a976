package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafkaSinkPublishesJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Name != "records.conflict" || ev.OrganizationID != 4 {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})
	sink, err := NewKafkaSink(producer, "fleetops.audit")
	if err != nil {
		t.Fatalf("NewKafkaSink: %v", err)
	}
	if err := sink.Publish(context.Background(), Event{Name: "records.conflict", OrganizationID: 4}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestKafkaSinkReportsFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sink, _ := NewKafkaSink(producer, "fleetops.audit")
	err := sink.Publish(context.Background(), Event{Name: "authz.denied"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
	_ = producer.Close()
}

func TestKafkaSinkValidation(t *testing.T) {
	if _, err := NewKafkaSink(nil, "topic"); err == nil {
		t.Fatalf("expected error for nil producer")
	}
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	if _, err := NewKafkaSink(producer, " "); err == nil {
		t.Fatalf("expected error for blank topic")
	}
}
