// Package rabbitmq delivers events to a RabbitMQ topic exchange.
//
// The core Publisher is written against a minimal Channel interface so unit
// tests need no broker; NewWithAMQPConn provides a concrete amqp091-go
// backed channel with automatic reconnect and exchange declaration.
package rabbitmq
