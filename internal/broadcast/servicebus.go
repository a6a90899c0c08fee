package broadcast

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/rideline/telemetry-service/config"
)

// ServiceBusSink delivers trip domain events to the dispatch application's
// Azure Service Bus queue
type ServiceBusSink struct {
	client  *azservicebus.Client
	sender  *azservicebus.Sender
	enabled bool
}

// NewServiceBusSink creates a service bus sink
func NewServiceBusSink(cfg *config.ServiceBusConfig) (*ServiceBusSink, error) {
	if !cfg.Enabled {
		return &ServiceBusSink{enabled: false}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender for queue %s: %w", cfg.QueueName, err)
	}

	return &ServiceBusSink{
		client:  client,
		sender:  sender,
		enabled: true,
	}, nil
}

// Publish sends the event to the dispatch queue with the event name as an
// application property
func (s *ServiceBusSink) Publish(ctx context.Context, name string, payload []byte) error {
	if !s.enabled {
		return nil
	}

	message := &azservicebus.Message{
		Body: payload,
		ApplicationProperties: map[string]interface{}{
			"event": name,
		},
	}

	if err := s.sender.SendMessage(ctx, message, nil); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close closes the sender and client
func (s *ServiceBusSink) Close(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	if err := s.sender.Close(ctx); err != nil {
		return err
	}
	return s.client.Close(ctx)
}
