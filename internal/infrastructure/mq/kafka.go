package mq

import (
	"log"

	"payledger/internal/config"

	"github.com/IBM/sarama"
)

var KafkaProducer sarama.SyncProducer

// InitKafka 初始化 Kafka 生产者
func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}

	KafkaProducer = producer
	log.Println("Kafka 生产者创建成功")
	return producer
}

// NewProducerConfig 事件要按账本顺序投递：同一个 key 落同一分区，且同一时刻只有一个在途请求
func NewProducerConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	return kafkaConfig
}

// Publisher 把发件箱消息发到 Kafka
type Publisher struct {
	producer sarama.SyncProducer
}

func NewPublisher(producer sarama.SyncProducer) *Publisher {
	return &Publisher{producer: producer}
}

// Publish 发送一条消息，eventType 放在消息头里方便消费方路由
func (p *Publisher) Publish(topic, key, eventType, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

// CloseKafka 关闭 Kafka 生产者
func CloseKafka() {
	if KafkaProducer != nil {
		KafkaProducer.Close()
	}
}
