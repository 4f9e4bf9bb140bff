package mainconfig

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/spa-booking-wizard/internal/config"
	"github.com/wolfman30/spa-booking-wizard/internal/events"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

func TestBuildBookingPublisherWithoutQueue(t *testing.T) {
	pub, err := BuildBookingPublisher(context.Background(), &appconfig.Config{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub != nil {
		t.Fatalf("expected nil publisher without a queue URL")
	}
}

func TestBuildBookingPublisherDevelopmentUsesMemoryQueue(t *testing.T) {
	cfg := &appconfig.Config{Env: "development"}
	pub, err := BuildBookingPublisher(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub == nil {
		t.Fatalf("expected in-memory publisher for development")
	}
	if err := pub.PublishBookingConfirmed(context.Background(), events.BookingConfirmedV1{BookingID: "b-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	cfg.Env = "production"
	pub, err = BuildBookingPublisher(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub != nil {
		t.Fatalf("expected nil publisher outside development")
	}
}

func TestBuildBookingPublisherSQS(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:             "us-east-1",
		AWSAccessKeyID:        "test",
		AWSSecretAccessKey:    "test",
		AWSEndpointOverride:   "http://localhost:4566",
		BookingEventsQueueURL: "http://localhost:4566/000000000000/booking-events",
	}

	pub, err := BuildBookingPublisher(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub == nil {
		t.Fatalf("expected publisher for SQS path")
	}
}
