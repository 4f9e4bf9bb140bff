package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/spa-booking-wizard/internal/config"
	"github.com/wolfman30/spa-booking-wizard/internal/events"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// LoadAWSConfig builds the SDK config, honouring static keys and a
// LocalStack endpoint override for SQS.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if service == sqs.ServiceID {
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			},
		)
	}

	return awsCfg, nil
}

// BuildBookingPublisher publishes to SQS when a queue URL is configured. Without
// one, development runs keep events in memory and other environments get nil.
func BuildBookingPublisher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*events.Publisher, error) {
	if strings.TrimSpace(cfg.BookingEventsQueueURL) == "" {
		if cfg.Env != "development" {
			return nil, nil
		}
		logger.Info("booking events kept in memory; set BOOKING_EVENTS_QUEUE_URL to publish to sqs")
		return events.NewPublisher(events.NewMemoryQueue(), logger), nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	queue := events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.BookingEventsQueueURL)
	logger.Info("booking events published to sqs", "queue_url", cfg.BookingEventsQueueURL)
	return events.NewPublisher(queue, logger), nil
}
