package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	kafkaPollTimeoutMS  = 250
	kafkaFlushTimeoutMS = 5000

	headerSource    = "chat-source"
	headerEventType = "chat-event-type"
)

// KafkaPubSub maps bus channels onto topics ("chat:groups" becomes
// "chat-groups"). The event key is the message key, so events about one
// conversation or group land on one partition and keep their order.
type KafkaPubSub struct {
	cfg      KafkaConfig
	buffer   int
	producer *kafka.Producer
	reports  chan struct{}

	mu        sync.Mutex
	consumers map[string]*kafkaConsumer
}

type kafkaConsumer struct {
	consumer *kafka.Consumer
	stop     context.CancelFunc
	done     chan struct{}
}

func NewKafkaPubSub(cfg KafkaConfig, buffer int) (*KafkaPubSub, error) {
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: kafka producer: %w", err)
	}

	k := &KafkaPubSub{
		cfg:       cfg,
		buffer:    buffer,
		producer:  producer,
		reports:   make(chan struct{}),
		consumers: make(map[string]*kafkaConsumer),
	}
	go k.drainReports()

	if err := k.createTopics(); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("pubsub: could not create kafka topics, relying on broker auto-create")
	}
	return k, nil
}

func topicFor(channel string) (string, error) {
	if channel == "" || strings.ContainsAny(channel, "*? ") {
		return "", fmt.Errorf("pubsub: %q is not a concrete channel", channel)
	}
	return strings.ReplaceAll(channel, ":", "-"), nil
}

// topicPattern turns a glob channel pattern into librdkafka's regex topic
// form, which must start with '^'.
func topicPattern(pattern string) (string, error) {
	if pattern == "" {
		return "", errors.New("pubsub: empty pattern")
	}
	if !strings.Contains(pattern, "*") {
		return topicFor(pattern)
	}
	pieces := strings.Split(strings.ReplaceAll(pattern, ":", "-"), "*")
	for i := range pieces {
		pieces[i] = regexp.QuoteMeta(pieces[i])
	}
	return "^" + strings.Join(pieces, ".*"), nil
}

func (k *KafkaPubSub) createTopics() error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return err
	}
	defer admin.Close()

	partitions := k.cfg.Partitions
	if partitions <= 0 {
		partitions = DefaultConfig().Kafka.Partitions
	}
	specs := make([]kafka.TopicSpecification, 0, len(Channels))
	for _, ch := range Channels {
		topic, _ := topicFor(ch)
		specs = append(specs, kafka.TopicSpecification{Topic: topic, NumPartitions: partitions, ReplicationFactor: 1})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return err
	}
	l := log.L()
	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			l.Warn().Str("topic", res.Topic).Str("error", res.Error.String()).Msg("pubsub: kafka topic not created")
		}
	}
	return nil
}

func (k *KafkaPubSub) drainReports() {
	defer close(k.reports)
	l := log.L()
	for e := range k.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok || msg.TopicPartition.Error == nil {
			continue
		}
		l.Error().
			Err(msg.TopicPartition.Error).
			Str("topic", *msg.TopicPartition.Topic).
			Str("key", string(msg.Key)).
			Msg("pubsub: kafka delivery failed")
	}
}

// Publish enqueues the event on the producer. Delivery failures surface in
// the log, not here.
func (k *KafkaPubSub) Publish(_ context.Context, channel string, event *Event) error {
	topic, err := topicFor(channel)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: encode %s: %w", event.Type, err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Key),
		Value:          data,
		Headers: []kafka.Header{
			{Key: headerSource, Value: []byte(event.Source)},
			{Key: headerEventType, Value: []byte(event.Type)},
		},
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("pubsub: produce to %s: %w", topic, err)
	}
	return nil
}

func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	topic, err := topicFor(channel)
	if err != nil {
		return nil, err
	}
	return k.consume(ctx, channel, topic)
}

func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	topic, err := topicPattern(pattern)
	if err != nil {
		return nil, err
	}
	return k.consume(ctx, pattern, topic)
}

// consume starts a consumer in its own group so each subscription sees every
// event from the latest offset on.
func (k *KafkaPubSub) consume(ctx context.Context, key, topic string) (<-chan *Event, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.cfg.Brokers,
		"group.id":                consumerGroup(k.cfg.GroupID, key),
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", topic, err)
	}

	subCtx, stop := context.WithCancel(ctx)
	sub := &kafkaConsumer{consumer: c, stop: stop, done: make(chan struct{})}

	k.mu.Lock()
	prev := k.consumers[key]
	k.consumers[key] = sub
	k.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	out := make(chan *Event, k.buffer)
	go sub.poll(subCtx, out)
	return out, nil
}

func (s *kafkaConsumer) poll(ctx context.Context, out chan<- *Event) {
	defer close(s.done)
	defer close(out)
	l := log.L()

	for ctx.Err() == nil {
		switch e := s.consumer.Poll(kafkaPollTimeoutMS).(type) {
		case nil:
		case *kafka.Message:
			evt, err := decodeEvent(e.Value)
			if err != nil {
				l.Warn().Err(err).Str("topic", *e.TopicPartition.Topic).Msg("pubsub: dropping undecodable kafka event")
				continue
			}
			if !forward(ctx, out, evt, DriverKafka) {
				return
			}
		case kafka.Error:
			l.Error().Err(e).Bool("fatal", e.IsFatal()).Msg("pubsub: kafka consumer error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// close stops the poll loop before closing the consumer, which must not be
// used concurrently with Poll.
func (s *kafkaConsumer) close() error {
	s.stop()
	<-s.done
	return s.consumer.Close()
}

func (k *KafkaPubSub) Unsubscribe(_ context.Context, channel string) error {
	k.mu.Lock()
	sub, ok := k.consumers[channel]
	delete(k.consumers, channel)
	k.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.close()
}

func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	subs := k.consumers
	k.consumers = make(map[string]*kafkaConsumer)
	k.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		errs = append(errs, sub.close())
	}
	if left := k.producer.Flush(kafkaFlushTimeoutMS); left > 0 {
		errs = append(errs, fmt.Errorf("pubsub: %d kafka events unflushed at close", left))
	}
	k.producer.Close()
	<-k.reports
	return errors.Join(errs...)
}

var unsafeGroupChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func consumerGroup(prefix, key string) string {
	if prefix == "" {
		prefix = DefaultConfig().Kafka.GroupID
	}
	return prefix + "-" + unsafeGroupChars.ReplaceAllString(key, "-")
}
