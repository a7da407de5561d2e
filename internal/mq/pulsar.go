package mq

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/secondbreakfast/conductor/internal/config"
)

type PulsarMQ struct {
	client    pulsar.Client
	producers sync.Map
	consumers sync.Map
}

func NewPulsarMQ(config *config.PulsarConfig) (*PulsarMQ, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("pulsar config is not set")
	}

	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: config.URL})
	if err != nil {
		return nil, err
	}

	return &PulsarMQ{
		client: client,
	}, nil
}

func (mq *PulsarMQ) Publish(ctx context.Context, topic string, message []byte) error {
	producer, err := mq.getProducer(topic)
	if err != nil {
		return err
	}

	producerMsg := &pulsar.ProducerMessage{Payload: message}
	_, err = (*producer).Send(ctx, producerMsg)
	return err
}

func (mq *PulsarMQ) Receive(ctx context.Context, topic string) (interface{}, error) {
	consumer, err := mq.getConsumer(topic)
	if err != nil {
		return nil, err
	}

	return (*consumer).Receive(ctx)
}

func (mq *PulsarMQ) GetMessageData(message interface{}) ([]byte, error) {
	msg, ok := message.(pulsar.Message)
	if !ok {
		return nil, fmt.Errorf("unexpected message type %T", message)
	}

	return msg.Payload(), nil
}

func (mq *PulsarMQ) Ack(topic string, message interface{}) error {
	consumer, err := mq.getConsumer(topic)
	if err != nil {
		return err
	}

	return (*consumer).Ack(message.(pulsar.Message))
}

func (mq *PulsarMQ) CloseTopic(topic string) error {
	if producer, ok := mq.producers.Load(topic); ok {
		(*producer.(*pulsar.Producer)).Close()
		mq.producers.Delete(topic)
	}

	if consumer, ok := mq.consumers.Load(topic); ok {
		(*consumer.(*pulsar.Consumer)).Close()
		mq.consumers.Delete(topic)
	}

	return nil
}

func (mq *PulsarMQ) Close() error {
	mq.client.Close()
	return nil
}

func (mq *PulsarMQ) getProducer(topic string) (*pulsar.Producer, error) {
	value, ok := mq.producers.Load(topic)
	if ok {
		return value.(*pulsar.Producer), nil
	}

	producer, err := newProducer(mq.client, topic)
	if err != nil {
		return nil, err
	}

	mq.producers.Store(topic, producer)
	return producer, nil
}

func (mq *PulsarMQ) getConsumer(topic string) (*pulsar.Consumer, error) {
	value, ok := mq.consumers.Load(topic)
	if ok {
		return value.(*pulsar.Consumer), nil
	}

	consumer, err := newConsumer(mq.client, topic)
	if err != nil {
		return nil, err
	}

	mq.consumers.Store(topic, consumer)
	return consumer, nil
}

func newProducer(client pulsar.Client, topic string) (*pulsar.Producer, error) {
	options := pulsar.ProducerOptions{
		Topic: topic,
	}

	producer, err := client.CreateProducer(options)
	return &producer, err
}

func newConsumer(client pulsar.Client, topic string) (*pulsar.Consumer, error) {
	options := pulsar.ConsumerOptions{
		Topic:            topic,
		Type:             pulsar.Shared,
		SubscriptionName: strings.ReplaceAll(topic, "/", "-"),
	}

	consumer, err := client.Subscribe(options)
	return &consumer, err
}
